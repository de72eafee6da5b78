// Package sim wires the grid, the breed systems and the crime statistics into
// a steppable model.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/systems"
	"github.com/pthm-cable/precinct/telemetry"
	"github.com/pthm-cable/precinct/world"
)

// ErrNoDistricts is returned when no cell of the map belongs to a named district.
var ErrNoDistricts = errors.New("resource map has no cells in a named district")

// Simulation is a single run of the model. It is not safe for concurrent use;
// collaborators on other goroutines receive Frame copies.
type Simulation struct {
	cfg   *config.Config
	seed  int64
	state *systems.State
	crime *telemetry.CrimeStats
	perf  *telemetry.PerfCollector

	actorFilter    *ecs.Filter2[components.Position, components.Actor]
	enforcerFilter *ecs.Filter2[components.Position, components.Enforcer]

	step          int
	totalCaptures int
}

// New builds a simulation over the resource map and populates it.
func New(cfg *config.Config, m *world.ResourceMap, seed int64) (*Simulation, error) {
	s, err := build(cfg, m, seed, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	spawnActors(s.state, cfg)
	spawnEnforcers(s.state, cfg)
	return s, nil
}

func build(cfg *config.Config, m *world.ResourceMap, seed int64, rng *rand.Rand) (*Simulation, error) {
	if m.Width != cfg.Grid.Width || m.Height != cfg.Grid.Height {
		return nil, fmt.Errorf("%w: map is %dx%d, grid is %dx%d",
			world.ErrMapShape, m.Width, m.Height, cfg.Grid.Width, cfg.Grid.Height)
	}

	table, err := world.NewDistrictTable(cfg.Districts)
	if err != nil {
		return nil, fmt.Errorf("district table: %w", err)
	}

	st := systems.NewState(m, table, cfg, rng)
	if st.Districts.Defined() == 0 {
		return nil, ErrNoDistricts
	}

	return &Simulation{
		cfg:            cfg,
		seed:           seed,
		state:          st,
		crime:          telemetry.NewCrimeStats(cfg.Telemetry.BurnIn),
		perf:           telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		actorFilter:    ecs.NewFilter2[components.Position, components.Actor](st.World),
		enforcerFilter: ecs.NewFilter2[components.Position, components.Enforcer](st.World),
	}, nil
}

// Step advances the model by one step: resources regrow, every actor acts
// in random order, then every enforcer acts in random order.
func (s *Simulation) Step() {
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseResources)
	s.state.Captures = 0
	s.state.Grid.Regrow()

	s.perf.StartPhase(telemetry.PhaseActors)
	s.state.StepActors()

	s.perf.StartPhase(telemetry.PhaseEnforcers)
	s.state.StepEnforcers()

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.step++
	s.totalCaptures += s.state.Captures
	s.crime.Observe(s.step, s.state.IncidentsByDistrict())

	s.perf.EndTick()
}

// Run steps the model until steps have been taken or ctx is cancelled.
// Cancellation is checked between steps only. observe, if non-nil, is
// called after every step.
func (s *Simulation) Run(ctx context.Context, steps int, observe func(*Simulation)) error {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
		if observe != nil {
			observe(s)
		}
	}
	return nil
}

// CurrentStep returns the number of completed steps.
func (s *Simulation) CurrentStep() int {
	return s.step
}

// Seed returns the seed the run was created with.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// Config returns the configuration the run was built with.
func (s *Simulation) Config() *config.Config {
	return s.cfg
}

// Perf returns the rolling step timing collector.
func (s *Simulation) Perf() *telemetry.PerfCollector {
	return s.perf
}

// TotalCaptures returns the number of apprehensions since the run started.
func (s *Simulation) TotalCaptures() int {
	return s.totalCaptures
}
