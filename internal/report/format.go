package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/models"
)

// Formatter renders the outcome of a simulation run
type Formatter interface {
	Name() string
	ContentType() string
	Write(w io.Writer, result *dispatch.Result) error
}

// TextFormatter writes one line per ride:
// end time, distance, stop count, then the stop coordinates in route order
type TextFormatter struct{}

func (f *TextFormatter) Name() string {
	return "text"
}

func (f *TextFormatter) ContentType() string {
	return "text/plain; charset=utf-8"
}

func (f *TextFormatter) Write(w io.Writer, result *dispatch.Result) error {
	for _, rec := range result.Records {
		var b strings.Builder
		fmt.Fprintf(&b, "%.2f %.2f %d", rec.End, rec.Distance, rec.StopCount())
		for _, p := range rec.Stops {
			fmt.Fprintf(&b, " %.2f %.2f", p.X, p.Y)
		}
		b.WriteByte('\n')

		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// JSONFormatter writes the rides together with run statistics
type JSONFormatter struct {
	Indent bool
}

// JSONReport is the document written by JSONFormatter
type JSONReport struct {
	Rides      []models.RideRecord           `json:"rides"`
	Stats      Stats                         `json:"stats"`
	Rejections map[dispatch.RejectReason]int `json:"rejections,omitempty"`
}

func (f *JSONFormatter) Name() string {
	return "json"
}

func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

func (f *JSONFormatter) Write(w io.Writer, result *dispatch.Result) error {
	rides := result.Records
	if rides == nil {
		rides = []models.RideRecord{}
	}

	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(JSONReport{
		Rides:      rides,
		Stats:      Summarize(result.Records, result.Demands),
		Rejections: result.Rejections,
	})
}

// CSVFormatter writes a header and one row per ride.
// Stops are "x y" pairs joined by ';'.
type CSVFormatter struct{}

var csvHeader = []string{"ride_id", "start", "end", "distance", "efficiency", "demands", "stop_count", "stops"}

func (f *CSVFormatter) Name() string {
	return "csv"
}

func (f *CSVFormatter) ContentType() string {
	return "text/csv"
}

func (f *CSVFormatter) Write(w io.Writer, result *dispatch.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, rec := range result.Records {
		ids := make([]string, len(rec.DemandIDs))
		for i, id := range rec.DemandIDs {
			ids[i] = strconv.Itoa(id)
		}
		stops := make([]string, len(rec.Stops))
		for i, p := range rec.Stops {
			stops[i] = fmt.Sprintf("%.2f %.2f", p.X, p.Y)
		}

		row := []string{
			strconv.Itoa(rec.RideID),
			formatFloat(rec.Start),
			formatFloat(rec.End),
			formatFloat(rec.Distance),
			strconv.FormatFloat(rec.Efficiency, 'f', 4, 64),
			strings.Join(ids, ";"),
			strconv.Itoa(rec.StopCount()),
			strings.Join(stops, ";"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// GetFormatter returns a formatter by name, defaulting to text
func GetFormatter(name string) Formatter {
	switch strings.ToLower(name) {
	case "json":
		return &JSONFormatter{}
	case "csv":
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

// GetAllFormatters returns all available formatters
func GetAllFormatters() []Formatter {
	return []Formatter{
		&TextFormatter{},
		&JSONFormatter{},
		&CSVFormatter{},
	}
}
