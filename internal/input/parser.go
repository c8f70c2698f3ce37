package input

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/passbi/ridepool/internal/models"
)

// ErrTruncated is returned when the stream ends before all declared demands were read
var ErrTruncated = errors.New("input ended early")

const maxDemandPrealloc = 1024

// Simulation is a parsed simulation input: parameters followed by the demand stream
type Simulation struct {
	Params  models.Params   `json:"params"`
	Demands []models.Demand `json:"demands"`
}

// ParseFile parses a simulation input file in the whitespace-separated text format
func ParseFile(filePath string) (*Simulation, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseSimulation(file)
}

// ParseSimulation reads the text format:
//
//	eta gamma delta alpha beta lambda demand_count
//	id time origin_x origin_y destination_x destination_y   (demand_count times)
//
// Tokens are whitespace separated; line breaks carry no meaning.
func ParseSimulation(reader io.Reader) (*Simulation, error) {
	tr := newTokenReader(reader)

	var sim Simulation
	var err error

	if sim.Params.Capacity, err = tr.readInt("eta"); err != nil {
		return nil, err
	}
	if sim.Params.Speed, err = tr.readFloat("gamma"); err != nil {
		return nil, err
	}
	if sim.Params.MaxTimeGap, err = tr.readFloat("delta"); err != nil {
		return nil, err
	}
	if sim.Params.MaxOriginDistance, err = tr.readFloat("alpha"); err != nil {
		return nil, err
	}
	if sim.Params.MaxDestinationDistance, err = tr.readFloat("beta"); err != nil {
		return nil, err
	}
	if sim.Params.MinEfficiency, err = tr.readFloat("lambda"); err != nil {
		return nil, err
	}
	if sim.Params.DemandCount, err = tr.readInt("demand_count"); err != nil {
		return nil, err
	}
	if err := sim.Params.Validate(); err != nil {
		return nil, err
	}

	// The declared count is untrusted until the records are actually read
	sim.Demands = make([]models.Demand, 0, min(sim.Params.DemandCount, maxDemandPrealloc))
	for i := 0; i < sim.Params.DemandCount; i++ {
		d, err := tr.demand()
		if err != nil {
			return nil, fmt.Errorf("demand %d of %d: %w", i+1, sim.Params.DemandCount, err)
		}
		sim.Demands = append(sim.Demands, d)
	}

	if tok, ok := tr.next(); ok {
		return nil, fmt.Errorf("unexpected trailing token %q after %d demands", tok, sim.Params.DemandCount)
	}
	if tr.err() != nil {
		return nil, tr.err()
	}

	return &sim, nil
}

// ParseDemandsCSV reads demands from a CSV file with a header row.
// Recognized columns: id, time, origin_x, origin_y, dest_x, dest_y.
func ParseDemandsCSV(reader io.Reader) ([]models.Demand, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	// Read header
	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colMap := makeColumnMap(header)
	for _, col := range []string{"id", "time", "origin_x", "origin_y", "dest_x", "dest_y"} {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var demands []models.Demand
	row := 1
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			log.Printf("Warning: skipping malformed demand row %d: %v", row, err)
			continue
		}

		d, err := demandFromRecord(record, colMap)
		if err != nil {
			log.Printf("Warning: skipping demand row %d: %v", row, err)
			continue
		}
		demands = append(demands, d)
	}

	return demands, nil
}

func demandFromRecord(record []string, colMap map[string]int) (models.Demand, error) {
	var d models.Demand
	var err error

	if d.ID, err = strconv.Atoi(getField(record, colMap, "id")); err != nil {
		return d, fmt.Errorf("invalid id: %w", err)
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{"time", &d.Time},
		{"origin_x", &d.Origin.X},
		{"origin_y", &d.Origin.Y},
		{"dest_x", &d.Destination.X},
		{"dest_y", &d.Destination.Y},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(getField(record, colMap, f.col), 64); err != nil {
			return d, fmt.Errorf("invalid %s: %w", f.col, err)
		}
	}

	return d, nil
}

// makeColumnMap maps header names to column indices
func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return colMap
}

// getField returns the trimmed value of a named column, or "" if absent
func getField(record []string, colMap map[string]int, field string) string {
	if idx, ok := colMap[field]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

// tokenReader splits a stream into whitespace-separated tokens
type tokenReader struct {
	scanner *bufio.Scanner
}

func newTokenReader(r io.Reader) *tokenReader {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	return &tokenReader{scanner: scanner}
}

func (t *tokenReader) next() (string, bool) {
	if !t.scanner.Scan() {
		return "", false
	}
	return t.scanner.Text(), true
}

func (t *tokenReader) err() error {
	return t.scanner.Err()
}

func (t *tokenReader) token(name string) (string, error) {
	tok, ok := t.next()
	if !ok {
		if err := t.err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		return "", fmt.Errorf("%w: missing %s", ErrTruncated, name)
	}
	return tok, nil
}

func (t *tokenReader) readInt(name string) (int, error) {
	tok, err := t.token(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, tok, err)
	}
	return v, nil
}

func (t *tokenReader) readFloat(name string) (float64, error) {
	tok, err := t.token(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, tok, err)
	}
	return v, nil
}

func (t *tokenReader) demand() (models.Demand, error) {
	var d models.Demand
	var err error

	if d.ID, err = t.readInt("id"); err != nil {
		return d, err
	}
	if d.Time, err = t.readFloat("time"); err != nil {
		return d, err
	}
	if d.Origin.X, err = t.readFloat("origin_x"); err != nil {
		return d, err
	}
	if d.Origin.Y, err = t.readFloat("origin_y"); err != nil {
		return d, err
	}
	if d.Destination.X, err = t.readFloat("destination_x"); err != nil {
		return d, err
	}
	if d.Destination.Y, err = t.readFloat("destination_y"); err != nil {
		return d, err
	}
	return d, nil
}
