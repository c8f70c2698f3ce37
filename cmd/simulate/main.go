package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/passbi/ridepool/internal/db"
	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/input"
	"github.com/passbi/ridepool/internal/models"
	"github.com/passbi/ridepool/internal/report"
)

type options struct {
	inputPath  string
	outputPath string
	format     string
	pretty     bool
	csvDemands string
	params     models.Params
	limits     dispatch.Limits
	verbose    bool
	stats      bool
	archive    bool
}

func main() {
	opts := parseFlags()

	if err := run(opts); err != nil {
		log.Printf("Simulation failed: %v", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	envLimits := dispatch.LoadLimitsFromEnv()

	flag.StringVar(&opts.inputPath, "input", "", "Input file in text format (default stdin)")
	flag.StringVar(&opts.outputPath, "output", "", "Output file (default stdout)")
	flag.StringVar(&opts.format, "format", "text", "Output format: text, json or csv")
	flag.BoolVar(&opts.pretty, "pretty", false, "Indent JSON output")
	flag.StringVar(&opts.csvDemands, "csv-demands", "", "Read demands from a CSV file; parameters come from flags")
	flag.IntVar(&opts.limits.MaxRides, "max-rides", envLimits.MaxRides, "Maximum number of rides per run")
	flag.IntVar(&opts.limits.MaxEvents, "max-events", envLimits.MaxEvents, "Event queue capacity")
	flag.BoolVar(&opts.verbose, "verbose", false, "Log dispatcher decisions to stderr")
	flag.BoolVar(&opts.stats, "stats", false, "Log run statistics to stderr")
	flag.BoolVar(&opts.archive, "archive", false, "Store the run in PostgreSQL (DB_* environment)")

	// Parameters for -csv-demands runs
	flag.IntVar(&opts.params.Capacity, "capacity", 4, "Vehicle capacity (eta)")
	flag.Float64Var(&opts.params.Speed, "speed", 1, "Vehicle speed (gamma)")
	flag.Float64Var(&opts.params.MaxTimeGap, "max-time-gap", 5, "Maximum request time gap (delta)")
	flag.Float64Var(&opts.params.MaxOriginDistance, "max-origin-distance", 1, "Maximum origin distance (alpha)")
	flag.Float64Var(&opts.params.MaxDestinationDistance, "max-destination-distance", 1, "Maximum destination distance (beta)")
	flag.Float64Var(&opts.params.MinEfficiency, "min-efficiency", 0.8, "Minimum pooling efficiency (lambda)")

	flag.Parse()

	if opts.inputPath != "" && opts.csvDemands != "" {
		fmt.Println("Usage: ridepool-simulate [--input=<file> | --csv-demands=<file.csv> --capacity=N ...] [--format=text|json|csv] [--pretty]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	return opts
}

func run(opts options) error {
	sim, err := loadSimulation(opts)
	if err != nil {
		return err
	}

	var logger *log.Logger
	if opts.verbose {
		logger = log.New(os.Stderr, "[dispatch] ", 0)
	}

	startTime := time.Now()
	result, runErr := dispatch.Simulate(sim.Params, opts.limits, sim.Demands, logger)
	if result == nil {
		return runErr
	}
	duration := time.Since(startTime)

	// Partial output is still written when the run fails
	if err := writeOutput(opts.outputPath, newFormatter(opts), result); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if opts.stats {
		s := report.Summarize(result.Records, result.Demands)
		log.Printf("Simulated %d demands into %d rides (%d pooled) in %s", s.Demands, s.Rides, s.PooledRides, duration)
		log.Printf("Mean efficiency %.3f, min %.3f, total distance %.2f, makespan %.2f, mean occupancy %.2f",
			s.MeanEfficiency, s.MinEfficiency, s.TotalDistance, s.Makespan, s.MeanOccupancy)
		for _, r := range report.SortedRejections(result.Rejections) {
			log.Printf("Rejections (%s): %d", r.Reason, r.Count)
		}
	}

	if opts.archive {
		if err := archiveRun(sim.Params, opts.limits, result, runErr); err != nil {
			log.Printf("Warning: failed to archive run: %v", err)
		}
	}

	return runErr
}

func loadSimulation(opts options) (*input.Simulation, error) {
	if opts.csvDemands != "" {
		if err := opts.params.Validate(); err != nil {
			return nil, err
		}

		file, err := os.Open(opts.csvDemands)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		demands, err := input.ParseDemandsCSV(file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse demands: %w", err)
		}

		sim := &input.Simulation{
			Params:  opts.params,
			Demands: input.ValidateDemands(demands),
		}
		sim.Params.DemandCount = len(sim.Demands)
		return sim, nil
	}

	var sim *input.Simulation
	var err error
	if opts.inputPath != "" {
		sim, err = input.ParseFile(opts.inputPath)
	} else {
		sim, err = input.ParseSimulation(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	sim.Demands = input.ValidateDemands(sim.Demands)
	return sim, nil
}

func newFormatter(opts options) report.Formatter {
	formatter := report.GetFormatter(opts.format)
	if jf, ok := formatter.(*report.JSONFormatter); ok {
		jf.Indent = opts.pretty
	}
	return formatter
}

// writeOutput writes to stdout when path is empty
func writeOutput(path string, formatter report.Formatter, result *dispatch.Result) error {
	if path == "" {
		return formatter.Write(os.Stdout, result)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := formatter.Write(file, result); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func archiveRun(params models.Params, limits dispatch.Limits, result *dispatch.Result, runErr error) error {
	pool, err := db.GetDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := db.NewRunStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	run := db.NewRun(params, limits, result, runErr)
	if err := store.SaveRun(ctx, run); err != nil {
		return err
	}

	log.Printf("Archived run %s", run.ID)
	return nil
}
