package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/world"
)

// StepActor runs one activation of an actor: serve jail time, or pick the
// best reachable cell, move there and possibly commit an incident.
func (s *State) StepActor(e ecs.Entity) {
	a := s.ActorData.Get(e)
	a.Committed = false
	if a.JailTime > 0 {
		a.JailTime--
		return
	}

	pos := *s.Positions.Get(e)
	target, utility := s.chooseCell(e, a, pos)

	// Cells reached through a confederate are approached one step at a time
	// and never robbed on arrival.
	confederate := false
	if chebyshev(pos, target) > a.SearchRadius {
		target = world.StepToward(pos, target)
		confederate = true
	}
	pos = s.move(e, components.KindActor, target)

	if !confederate {
		r := s.Grid.Resource(pos)
		if r.Amount > 0 && utility > 0 {
			a.Wealth += r.Deplete()
			a.Incidents++
			a.Committed = true
		}
	}

	a.Wealth -= s.ActorCfg.Upkeep
}

// chooseCell returns the candidate with the highest utility and that utility.
func (s *State) chooseCell(e ecs.Entity, a *components.Actor, pos components.Position) (components.Position, float64) {
	best := math.Inf(-1)
	var ties []components.Position
	for _, c := range s.candidates(e, a, pos) {
		u := s.Utility(a, pos, c)
		switch {
		case u > best:
			best = u
			ties = append(ties[:0], c)
		case u == best:
			ties = append(ties, c)
		}
	}
	if len(ties) == 1 {
		return ties[0], best
	}
	return ties[s.Rng.Intn(len(ties))], best
}

// candidates gathers the actor's own neighborhood plus those of its free
// confederates on other cells. Duplicates are dropped, first-seen order kept.
func (s *State) candidates(e ecs.Entity, a *components.Actor, pos components.Position) []components.Position {
	out := s.Grid.Neighborhood(pos, a.SearchRadius, true)
	seen := make(map[components.Position]struct{}, len(out))
	for _, c := range out {
		seen[c] = struct{}{}
	}

	for _, other := range s.Actors {
		if other == e {
			continue
		}
		b := s.ActorData.Get(other)
		if b.BuddyID != a.BuddyID || b.Jailed() {
			continue
		}
		bpos := *s.Positions.Get(other)
		if bpos == pos {
			continue
		}
		for _, c := range s.Grid.Neighborhood(bpos, a.SearchRadius, true) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Utility scores a cell for an actor standing at from.
func (s *State) Utility(a *components.Actor, from, cell components.Position) float64 {
	cfg := s.ActorCfg

	resource := float64(s.Grid.Resource(cell).Amount)
	risk := float64(s.Table.Surveillance[s.Districts.At(cell)]) * s.Pressure(cell, a.RiskRadius)

	dist := world.Distance(from, cell)
	if dist < cfg.NearDistance {
		dist = 0
	}

	wealthWeight := cfg.WealthWeight
	if a.Wealth < 0 {
		wealthWeight = cfg.DesperateWeight
	}

	return cfg.ResourceWeight*resource -
		a.RiskAversion*risk -
		cfg.DistanceWeight*dist -
		wealthWeight*float64(a.Wealth)
}

// Pressure is the enforcer presence felt at a cell: the sum of inverse
// distances to enforcers within radius. An enforcer on the cell itself
// yields the configured sentinel.
func (s *State) Pressure(cell components.Position, radius int) float64 {
	s.scratch = s.Grid.NeighborhoodInto(s.scratch[:0], cell, radius, true)
	total := 0.0
	for _, c := range s.scratch {
		for _, o := range s.Grid.Occupants(c) {
			if o.Kind != components.KindEnforcer {
				continue
			}
			d := world.Distance(cell, c)
			if d == 0 {
				return s.ActorCfg.RiskSentinel
			}
			total += 1 / d
		}
	}
	return total
}

func chebyshev(a, b components.Position) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}
