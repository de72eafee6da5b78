package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/precinct/components"
)

// Apprehend jails one free actor that committed an incident this step and
// stands within radius of center. The actor is fined the ceiling of its cell.
// It reports whether a capture happened.
func (s *State) Apprehend(center components.Position, radius int) bool {
	var eligible []ecs.Entity
	for _, c := range s.Grid.Neighborhood(center, radius, true) {
		for _, o := range s.Grid.Occupants(c) {
			if o.Kind != components.KindActor {
				continue
			}
			a := s.ActorData.Get(o.E)
			if a.JailTime == 0 && a.Committed {
				eligible = append(eligible, o.E)
			}
		}
	}
	if len(eligible) == 0 {
		return false
	}

	caught := eligible[s.Rng.Intn(len(eligible))]
	a := s.ActorData.Get(caught)
	a.Wealth -= s.Grid.Resource(*s.Positions.Get(caught)).MaxAmount
	a.JailTime = s.EnforcerCfg.Sentence
	s.Captures++
	return true
}
