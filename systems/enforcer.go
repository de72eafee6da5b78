package systems

import (
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/world"
)

// StepEnforcer runs one activation of an enforcer: join the current
// reallocation sweep, then either move toward an understaffed district or
// patrol the own district.
func (s *State) StepEnforcer(e ecs.Entity) {
	enf := s.EnforcerData.Get(e)
	start := s.DistrictOf(e)
	enf.SurveillanceRadius = s.Table.Surveillance[start]

	s.advanceSweep()

	if enf.DistrictLock > 0 {
		s.patrol(e, enf)
		enf.DistrictLock--
	} else if !s.rebalance(e, start) {
		s.patrol(e, enf)
	}

	if s.DistrictOf(e) != start {
		enf.DistrictLock = s.EnforcerCfg.LockSteps
	}
}

// advanceSweep recomputes the allocation plan at the start of every sweep.
// A sweep ends once every enforcer has been activated.
func (s *State) advanceSweep() {
	rb := &s.Rebalance
	if rb.Stepped == 0 {
		rb.Reset(Apportion(s.IncidentsByDistrict(), s.EnforcersByDistrict(), len(s.Enforcers)))
		if !rb.Plan.Valid {
			slog.Debug("no incidents at sweep start, rebalancing skipped")
		}
	}
	rb.Stepped++
	if rb.Stepped >= len(s.Enforcers) {
		rb.Stepped = 0
	}
}

// rebalance moves the enforcer one step toward the nearest district still
// owed enforcers, if its own district was a surplus district at sweep start.
// It reports whether the enforcer moved.
func (s *State) rebalance(e ecs.Entity, source world.District) bool {
	rb := &s.Rebalance
	if !rb.Plan.Valid || rb.Made == rb.Plan.Delta || !rb.Surplus[source] {
		return false
	}

	pos := *s.Positions.Get(e)
	target, ok := s.nearestDeficit(pos)
	if !ok {
		return false
	}

	next := s.Grid.Clamp(world.StepToward(pos, s.Table.Centers[target]))
	if !s.Districts.At(next).Defined() {
		return false
	}

	rb.Made[target]++
	rb.Made[source]--
	next = s.move(e, components.KindEnforcer, next)
	s.Apprehend(next, 1)
	return true
}

// nearestDeficit returns the understaffed district with the closest center.
// Ties go to the earlier district.
func (s *State) nearestDeficit(pos components.Position) (world.District, bool) {
	rb := &s.Rebalance
	best := world.Undefined
	bestDist := math.Inf(1)
	for _, d := range world.Districts() {
		if !rb.Deficit[d] || !s.Table.HasCenter[d] || rb.Made[d] >= rb.Plan.Delta[d] {
			continue
		}
		if dist := world.Distance(pos, s.Table.Centers[d]); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best, best != world.Undefined
}

// patrol heads for the least-resourced cell in sight within the own
// district, taking strides of up to two cells per axis.
func (s *State) patrol(e ecs.Entity, enf *components.Enforcer) {
	pos := *s.Positions.Get(e)
	home := s.Districts.At(pos)

	minAmount := math.MaxInt
	var lowest []components.Position
	for _, c := range s.Grid.Neighborhood(pos, enf.SurveillanceRadius, false) {
		if s.Districts.At(c) != home {
			continue
		}
		amount := s.Grid.Resource(c).Amount
		switch {
		case amount < minAmount:
			minAmount = amount
			lowest = append(lowest[:0], c)
		case amount == minAmount:
			lowest = append(lowest, c)
		}
	}
	if len(lowest) == 0 {
		s.Apprehend(pos, enf.CatchRadius)
		return
	}
	target := lowest[s.Rng.Intn(len(lowest))]

	next := s.Grid.Clamp(components.Position{
		X: pos.X + stride(pos.X, target.X, s.Grid.Width),
		Y: pos.Y + stride(pos.Y, target.Y, s.Grid.Height),
	})
	next = s.alongBoundary(pos, next)

	if s.Grid.HasKind(next, components.KindEnforcer, e) {
		next = s.randomLocalMove(pos)
	}
	next = s.move(e, components.KindEnforcer, next)
	s.Apprehend(next, enf.CatchRadius)
}

// stride is the signed step along one axis toward target: two cells, or one
// when two would leave the grid.
func stride(from, target, size int) int {
	switch {
	case target > from:
		if from+2 < size {
			return 2
		}
		return 1
	case target < from:
		if from-2 >= 0 {
			return -2
		}
		return -1
	default:
		return 0
	}
}

// alongBoundary cancels the axis of a stride that crossed into another
// district, judged by which orthogonal neighbor of from lies in the new one.
func (s *State) alongBoundary(from, next components.Position) components.Position {
	home := s.Districts.At(from)
	landed := s.Districts.At(next)
	if landed == home {
		return next
	}

	probes := [...]struct {
		p      components.Position
		resetY bool
	}{
		{components.Position{X: from.X, Y: from.Y - 1}, true},
		{components.Position{X: from.X, Y: from.Y + 1}, true},
		{components.Position{X: from.X - 1, Y: from.Y}, false},
		{components.Position{X: from.X + 1, Y: from.Y}, false},
	}
	for _, pr := range probes {
		d := s.Districts.At(pr.p)
		if d == home || d != landed {
			continue
		}
		if pr.resetY {
			next.Y = from.Y
		} else {
			next.X = from.X
		}
		break
	}
	return next
}

// randomLocalMove picks a random same-district cell adjacent to from,
// or stays put when there is none.
func (s *State) randomLocalMove(from components.Position) components.Position {
	home := s.Districts.At(from)
	var options []components.Position
	for _, c := range s.Grid.Neighborhood(from, 1, false) {
		if s.Districts.At(c) == home {
			options = append(options, c)
		}
	}
	if len(options) == 0 {
		return from
	}
	return options[s.Rng.Intn(len(options))]
}
