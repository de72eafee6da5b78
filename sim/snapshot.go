package sim

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/systems"
	"github.com/pthm-cable/precinct/telemetry"
	"github.com/pthm-cable/precinct/world"
)

// Snapshot exports the full model state at the current step boundary.
func (s *Simulation) Snapshot(runID string) *telemetry.Snapshot {
	st := s.state
	snap := &telemetry.Snapshot{
		Header: telemetry.SnapshotHeader{Version: telemetry.SnapshotVersion, RunID: runID, Step: s.step},
		Seed:   s.seed,
		Width:  st.Grid.Width,
		Height: st.Grid.Height,
		Crime:  s.crime.State(),

		Amounts: make([]int, 0, s.cfg.Derived.Cells),
	}

	st.Grid.ForEachResource(func(_ components.Position, r *world.ResourceCell) {
		snap.Amounts = append(snap.Amounts, r.Amount)
	})
	for _, e := range st.Actors {
		snap.Actors = append(snap.Actors, telemetry.ActorState{Pos: *st.Positions.Get(e), Actor: *st.ActorData.Get(e)})
	}
	for _, e := range st.Enforcers {
		snap.Enforcers = append(snap.Enforcers, telemetry.EnforcerState{Pos: *st.Positions.Get(e), Enforcer: *st.EnforcerData.Get(e)})
	}

	rb := st.Rebalance
	snap.Rebalance = telemetry.RebalanceState{
		Valid:   rb.Plan.Valid,
		Target:  append([]int(nil), rb.Plan.Target[:]...),
		Delta:   append([]int(nil), rb.Plan.Delta[:]...),
		Made:    append([]int(nil), rb.Made[:]...),
		Stepped: rb.Stepped,
	}
	return snap
}

// Restore rebuilds a simulation from a snapshot taken over the same map.
// The random stream is reseeded from the snapshot's seed and step, so a
// resumed run is reproducible but differs from the uninterrupted one.
func Restore(cfg *config.Config, m *world.ResourceMap, snap *telemetry.Snapshot) (*Simulation, error) {
	if snap.Width != m.Width || snap.Height != m.Height || len(snap.Amounts) != m.Width*m.Height {
		return nil, fmt.Errorf("%w: snapshot is %dx%d, map is %dx%d",
			world.ErrMapShape, snap.Width, snap.Height, m.Width, m.Height)
	}

	rng := rand.New(rand.NewSource(snap.Seed + int64(snap.Header.Step)))
	s, err := build(cfg, m, snap.Seed, rng)
	if err != nil {
		return nil, err
	}
	st := s.state

	i := 0
	st.Grid.ForEachResource(func(_ components.Position, r *world.ResourceCell) {
		r.Amount = snap.Amounts[i]
		i++
	})
	for _, a := range snap.Actors {
		st.AddActor(a.Pos, a.Actor)
	}
	for _, e := range snap.Enforcers {
		st.AddEnforcer(e.Pos, e.Enforcer)
	}

	var plan systems.Plan
	plan.Valid = snap.Rebalance.Valid
	copy(plan.Target[:], snap.Rebalance.Target)
	copy(plan.Delta[:], snap.Rebalance.Delta)
	st.Rebalance.Reset(plan)
	copy(st.Rebalance.Made[:], snap.Rebalance.Made)
	st.Rebalance.Stepped = snap.Rebalance.Stepped

	s.crime = telemetry.RestoreCrimeStats(snap.Crime)
	s.step = snap.Header.Step
	return s, nil
}
