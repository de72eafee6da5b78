package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/sim"
	"github.com/pthm-cable/precinct/telemetry"
	"github.com/pthm-cable/precinct/viewer"
	"github.com/pthm-cable/precinct/world"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mapPath := flag.String("map", "", "Resource map file (empty = generate one)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, then time-based)")
	steps := flag.Int("steps", 1000, "Number of steps to run")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	framesPath := flag.String("frames", "", "Write a zstd-compressed JSONL frame stream to this path")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	snapshotEvery := flag.Int("snapshot-every", 0, "Save a snapshot every N steps (0 = only at the end)")
	resume := flag.String("resume", "", "Resume from a snapshot file")
	dbPath := flag.String("db", "", "SQLite run archive (empty = disabled)")
	serve := flag.String("serve", "", "Serve the live view on this address, e.g. :8080")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(options{
		configPath:    *configPath,
		mapPath:       *mapPath,
		seed:          *seed,
		steps:         *steps,
		outputDir:     *outputDir,
		framesPath:    *framesPath,
		snapshotDir:   *snapshotDir,
		snapshotEvery: *snapshotEvery,
		resume:        *resume,
		dbPath:        *dbPath,
		serve:         *serve,
		logStats:      *logStats,
	}); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath    string
	mapPath       string
	seed          int64
	steps         int
	outputDir     string
	framesPath    string
	snapshotDir   string
	snapshotEvery int
	resume        string
	dbPath        string
	serve         string
	logStats      bool
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var snap *telemetry.Snapshot
	if opts.resume != "" {
		snap, err = telemetry.LoadSnapshot(opts.resume)
		if err != nil {
			return err
		}
	}

	// Set up seed
	rngSeed := opts.seed
	switch {
	case snap != nil:
		rngSeed = snap.Seed
	case rngSeed == 0 && cfg.Seed != 0:
		rngSeed = cfg.Seed
	case rngSeed == 0:
		rngSeed = time.Now().UnixNano()
	}
	cfg.Seed = rngSeed

	m, err := resourceMap(cfg, opts.mapPath, rngSeed)
	if err != nil {
		return err
	}

	var s *sim.Simulation
	if snap != nil {
		s, err = sim.Restore(cfg, m, snap)
	} else {
		s, err = sim.New(cfg, m, rngSeed)
	}
	if err != nil {
		return err
	}

	k, err := openSinks(cfg, m, s, opts)
	if err != nil {
		return err
	}

	var srv *http.Server
	if opts.serve != "" {
		srv = &http.Server{Addr: opts.serve, Handler: k.hub.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("viewer server failed", "error", err)
			}
		}()
		slog.Info("serving live view", "addr", opts.serve)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting simulation",
		"seed", rngSeed,
		"steps", opts.steps,
		"from_step", s.CurrentStep(),
		"actors", cfg.Population.Actors,
		"enforcers", cfg.Population.Enforcers,
		"districts", cfg.Derived.DistrictNames,
		"cells", cfg.Derived.Cells,
		"defined_cells", definedCells(cfg, m),
	)

	start := time.Now()
	runErr := s.Run(ctx, opts.steps, k.observe)
	elapsed := time.Since(start)
	if errors.Is(runErr, context.Canceled) {
		slog.Warn("interrupted", "step", s.CurrentStep())
		runErr = nil
	}

	k.saveSnapshot(s)
	k.close(s)
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}

	logSummary(s, elapsed)
	return runErr
}

// resourceMap loads the map file or generates one from the district table.
func resourceMap(cfg *config.Config, path string, seed int64) (*world.ResourceMap, error) {
	if path != "" {
		return world.LoadResourceMap(path, cfg.Grid.Width, cfg.Grid.Height)
	}
	table, err := world.NewDistrictTable(cfg.Districts)
	if err != nil {
		return nil, fmt.Errorf("district table: %w", err)
	}
	return world.GenerateResourceMap(cfg.Grid.Width, cfg.Grid.Height, table, cfg.MapGen, seed), nil
}

func definedCells(cfg *config.Config, m *world.ResourceMap) int {
	table, err := world.NewDistrictTable(cfg.Districts)
	if err != nil {
		return 0
	}
	return world.NewDistrictMap(m, table).Defined()
}

// openSinks creates the collaborators requested on the command line.
func openSinks(cfg *config.Config, m *world.ResourceMap, s *sim.Simulation, opts options) (*sinks, error) {
	k := &sinks{
		logStats:      opts.logStats,
		logEvery:      cfg.Telemetry.LogEvery,
		perfWindow:    cfg.Telemetry.PerfWindow,
		snapshotDir:   opts.snapshotDir,
		snapshotEvery: opts.snapshotEvery,
	}

	output, err := telemetry.NewOutputManager(opts.outputDir)
	if err != nil {
		return nil, err
	}
	k.output = output
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}
	if err := output.WriteResourceMap(m); err != nil {
		slog.Error("failed to write resource map", "error", err)
	}

	if opts.dbPath != "" {
		store, err := telemetry.OpenStore(opts.dbPath)
		if err != nil {
			output.Close()
			return nil, err
		}
		id, err := store.BeginRun(cfg)
		if err != nil {
			store.Close()
			output.Close()
			return nil, err
		}
		k.store = store
		k.runID = id
	}

	if opts.framesPath != "" {
		if dir := filepath.Dir(opts.framesPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				k.close(s)
				return nil, fmt.Errorf("creating frames directory: %w", err)
			}
		}
		fw, err := telemetry.NewFrameWriter(opts.framesPath)
		if err != nil {
			k.close(s)
			return nil, err
		}
		k.frames = fw
	}

	if opts.serve != "" {
		k.hub = viewer.NewHub(s.DistrictLayout())
	}
	return k, nil
}

func logSummary(s *sim.Simulation, elapsed time.Duration) {
	m := s.Metrics()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(s.CurrentStep()) / elapsed.Seconds()
	}

	attrs := []any{
		"steps", humanize.Comma(int64(s.CurrentStep())),
		"incidents", humanize.Comma(int64(m.Incidents)),
		"captures", humanize.Comma(int64(s.TotalCaptures())),
		"jailed", m.Jailed,
		"wealth", humanize.Comma(int64(m.Wealth)),
		"steps_per_sec", humanize.CommafWithDigits(rate, 1),
		"elapsed", elapsed.Round(time.Millisecond).String(),
	}
	for _, d := range world.Districts() {
		if d.Defined() {
			attrs = append(attrs, d.String()+"_avg", humanize.FtoaWithDigits(m.Averages[d], 3))
		}
	}
	slog.Info("run complete", attrs...)
}
