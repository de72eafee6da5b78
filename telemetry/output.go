package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/world"
)

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir       string
	stepsFile *os.File
	perfFile  *os.File

	// Track if headers have been written
	stepsHeaderWritten bool
	perfHeaderWritten  bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "steps.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating steps.csv: %w", err)
	}
	om.stepsFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.stepsFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteResourceMap saves the resource map the run was built from.
func (om *OutputManager) WriteResourceMap(m *world.ResourceMap) error {
	if om == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, "map.txt"))
	if err != nil {
		return fmt.Errorf("creating map.txt: %w", err)
	}
	defer f.Close()
	if _, err := m.WriteTo(f); err != nil {
		return fmt.Errorf("writing map.txt: %w", err)
	}
	return nil
}

// WriteStep appends a step record to steps.csv.
func (om *OutputManager) WriteStep(stats StepStats) error {
	if om == nil {
		return nil
	}

	records := []StepStats{stats}

	if !om.stepsHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.stepsFile); err != nil {
			return fmt.Errorf("writing steps: %w", err)
		}
		om.stepsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.stepsFile); err != nil {
			return fmt.Errorf("writing steps: %w", err)
		}
	}

	return nil
}

// WritePerf appends a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}

	records := []PerfRow{stats.Row(windowEnd)}

	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}

	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error

	if om.stepsFile != nil {
		if err := om.stepsFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// ReadSteps parses a steps.csv file written by OutputManager.
func ReadSteps(path string) ([]StepStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening steps: %w", err)
	}
	defer f.Close()

	var rows []StepStats
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing steps: %w", err)
	}
	return rows, nil
}
