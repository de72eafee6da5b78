// KS test of final per-district crime averages against a Zipf curve.
//
// Usage:
//
//	go run ./cmd/kstest -steps out/steps.csv
//	go run ./cmd/kstest -db runs.db [-run <id>]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pthm-cable/precinct/telemetry"
	"github.com/pthm-cable/precinct/world"
)

func main() {
	stepsPath := flag.String("steps", "", "steps.csv written by --output-dir")
	dbPath := flag.String("db", "", "SQLite run archive written by --db")
	runID := flag.String("run", "", "Run id in the archive (empty = newest run)")
	alpha := flag.Float64("alpha", 0.05, "Significance level")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	averages, source, err := load(*stepsPath, *dbPath, *runID)
	if err != nil {
		slog.Error("kstest failed", "error", err)
		os.Exit(1)
	}

	var values []float64
	attrs := []any{"source", source}
	for _, d := range world.Districts() {
		if !d.Defined() {
			continue
		}
		values = append(values, averages[d])
		attrs = append(attrs, d.String(), averages[d])
	}
	slog.Info("district averages", attrs...)

	sum := telemetry.Summarize(values)
	res := telemetry.ZipfTest(values)
	slog.Info("zipf ks test",
		"mean", sum.Mean,
		"std_dev", sum.StdDev,
		"min", sum.Min,
		"max", sum.Max,
		"statistic", res.Statistic,
		"p_value", res.PValue,
		"reject", res.PValue < *alpha,
	)
}

func load(stepsPath, dbPath, runID string) ([world.NumDistricts]float64, string, error) {
	var zero [world.NumDistricts]float64
	switch {
	case stepsPath != "":
		rows, err := telemetry.ReadSteps(stepsPath)
		if err != nil {
			return zero, "", err
		}
		if len(rows) == 0 {
			return zero, "", fmt.Errorf("%s has no rows", stepsPath)
		}
		return rows[len(rows)-1].Averages(), stepsPath, nil

	case dbPath != "":
		store, err := telemetry.OpenStore(dbPath)
		if err != nil {
			return zero, "", err
		}
		defer store.Close()

		if runID == "" {
			runs, err := store.Runs()
			if err != nil {
				return zero, "", err
			}
			if len(runs) == 0 {
				return zero, "", fmt.Errorf("%s has no runs", dbPath)
			}
			runID = runs[0].ID
		}
		avg, err := store.FinalAverages(runID)
		return avg, runID, err

	default:
		return zero, "", errors.New("one of -steps or -db is required")
	}
}
