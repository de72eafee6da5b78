package telemetry

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/world"
)

// storeBatch is the number of step rows buffered before a write transaction.
const storeBatch = 100

// Store archives runs and their per-district step series in SQLite.
type Store struct {
	conn    *sqlx.DB
	runID   string
	pending []StepStats
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string         `db:"id"`
	Seed       int64          `db:"seed"`
	StartedAt  string         `db:"started_at"`
	FinishedAt sql.NullString `db:"finished_at"`
	Steps      int            `db:"steps"`
	Incidents  int            `db:"incidents"`
	Captures   int            `db:"captures"`
}

// OpenStore opens or creates a SQLite database at the given path.
func OpenStore(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		steps INTEGER NOT NULL DEFAULT 0,
		incidents INTEGER NOT NULL DEFAULT 0,
		captures INTEGER NOT NULL DEFAULT 0,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		actors INTEGER NOT NULL,
		jailed INTEGER NOT NULL,
		wealth INTEGER NOT NULL,
		incidents INTEGER NOT NULL,
		captures INTEGER NOT NULL,
		plan_valid INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS district_steps (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		district TEXT NOT NULL,
		tally INTEGER NOT NULL,
		average REAL NOT NULL,
		PRIMARY KEY (run_id, step, district)
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// BeginRun registers a new run and returns its id.
func (s *Store) BeginRun(cfg *config.Config) (string, error) {
	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	id := uuid.NewString()
	_, err = s.conn.Exec(
		"INSERT INTO runs (id, seed, started_at, config_yaml) VALUES (?, ?, ?, ?)",
		id, cfg.Seed, time.Now().UTC().Format(time.RFC3339), string(cfgYAML),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	s.runID = id
	s.pending = s.pending[:0]
	return id, nil
}

// RunID returns the id of the current run.
func (s *Store) RunID() string {
	return s.runID
}

// RecordStep buffers a step and writes a batch once enough are pending.
func (s *Store) RecordStep(stats StepStats) error {
	s.pending = append(s.pending, stats)
	if len(s.pending) < storeBatch {
		return nil
	}
	return s.Flush()
}

// Flush writes all buffered steps in one transaction.
func (s *Store) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	if s.runID == "" {
		return fmt.Errorf("flush: no run started")
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stepStmt, err := tx.Preparex(`INSERT OR REPLACE INTO steps
		(run_id, step, actors, jailed, wealth, incidents, captures, plan_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stepStmt.Close()

	districtStmt, err := tx.Preparex(`INSERT OR REPLACE INTO district_steps
		(run_id, step, district, tally, average)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer districtStmt.Close()

	for _, st := range s.pending {
		valid := 0
		if st.PlanValid {
			valid = 1
		}
		if _, err := stepStmt.Exec(s.runID, st.Step, st.Actors, st.Jailed, st.Wealth, st.Incidents, st.Captures, valid); err != nil {
			return fmt.Errorf("insert step %d: %w", st.Step, err)
		}

		tally, avg := st.Tally(), st.Averages()
		for _, d := range world.Districts() {
			if _, err := districtStmt.Exec(s.runID, st.Step, d.String(), tally[d], avg[d]); err != nil {
				return fmt.Errorf("insert district step %d: %w", st.Step, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	return nil
}

// FinishRun flushes pending steps and records the run totals.
func (s *Store) FinishRun(final StepStats, captures int) error {
	if err := s.Flush(); err != nil {
		return fmt.Errorf("flush steps: %w", err)
	}
	_, err := s.conn.Exec(
		"UPDATE runs SET finished_at = ?, steps = ?, incidents = ?, captures = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), final.Step, final.Incidents, captures, s.runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	slog.Info("run archived", "run_id", s.runID, "steps", final.Step)
	return nil
}

// Runs returns every archived run, newest first.
func (s *Store) Runs() ([]RunRecord, error) {
	var runs []RunRecord
	err := s.conn.Select(&runs,
		"SELECT id, seed, started_at, finished_at, steps, incidents, captures FROM runs ORDER BY started_at DESC, id",
	)
	return runs, err
}

// FinalAverages returns the per-district averages at the last archived step of a run.
func (s *Store) FinalAverages(runID string) ([world.NumDistricts]float64, error) {
	var out [world.NumDistricts]float64
	var rows []struct {
		District string  `db:"district"`
		Average  float64 `db:"average"`
	}
	err := s.conn.Select(&rows, `
		SELECT district, average FROM district_steps
		WHERE run_id = ? AND step = (SELECT MAX(step) FROM district_steps WHERE run_id = ?)`,
		runID, runID,
	)
	if err != nil {
		return out, err
	}
	for _, r := range rows {
		d, err := world.ParseDistrict(r.District)
		if err != nil {
			return out, err
		}
		out[d] = r.Average
	}
	return out, nil
}

// Close flushes pending steps and closes the database connection.
func (s *Store) Close() error {
	flushErr := s.Flush()
	if err := s.conn.Close(); err != nil {
		return err
	}
	return flushErr
}
