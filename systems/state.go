// Package systems implements the per-step decision logic of actors and enforcers.
package systems

import (
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/world"
)

// State is the mutable model shared by the breed systems.
// It is only touched from the goroutine that steps the simulation.
type State struct {
	World     *ecs.World
	Grid      *world.Grid
	Districts *world.DistrictMap
	Table     *world.DistrictTable
	Rng       *rand.Rand

	ActorCfg    config.ActorConfig
	EnforcerCfg config.EnforcerConfig

	Positions    *ecs.Map[components.Position]
	ActorData    *ecs.Map[components.Actor]
	EnforcerData *ecs.Map[components.Enforcer]

	actorMapper    *ecs.Map2[components.Position, components.Actor]
	enforcerMapper *ecs.Map2[components.Position, components.Enforcer]

	// Entities per breed in creation order
	Actors    []ecs.Entity
	Enforcers []ecs.Entity

	Rebalance Rebalance

	// Captures counts apprehensions during the current step.
	Captures int

	scratch []components.Position
}

// Rebalance is the sweep-wide reallocation bookkeeping shared by all enforcers.
type Rebalance struct {
	Plan    Plan
	Made    [world.NumDistricts]int
	Stepped int
	Deficit [world.NumDistricts]bool
	Surplus [world.NumDistricts]bool
}

// Reset starts a new sweep with plan p.
func (r *Rebalance) Reset(p Plan) {
	r.Plan = p
	r.Made = [world.NumDistricts]int{}
	r.Stepped = 0
	for d := range p.Delta {
		r.Deficit[d] = p.Valid && p.Delta[d] > 0
		r.Surplus[d] = p.Valid && p.Delta[d] < 0
	}
}

// NewState builds the grid and district map for a resource map.
func NewState(m *world.ResourceMap, table *world.DistrictTable, cfg *config.Config, rng *rand.Rand) *State {
	w := ecs.NewWorld()
	return &State{
		World:          w,
		Grid:           world.NewGrid(m),
		Districts:      world.NewDistrictMap(m, table),
		Table:          table,
		Rng:            rng,
		ActorCfg:       cfg.Actor,
		EnforcerCfg:    cfg.Enforcer,
		Positions:      ecs.NewMap[components.Position](w),
		ActorData:      ecs.NewMap[components.Actor](w),
		EnforcerData:   ecs.NewMap[components.Enforcer](w),
		actorMapper:    ecs.NewMap2[components.Position, components.Actor](w),
		enforcerMapper: ecs.NewMap2[components.Position, components.Enforcer](w),
	}
}

// AddActor creates an actor entity and places it on the grid.
func (s *State) AddActor(pos components.Position, a components.Actor) ecs.Entity {
	pos = s.Grid.Clamp(pos)
	e := s.actorMapper.NewEntity(&pos, &a)
	s.Grid.Place(world.Occupant{E: e, Kind: components.KindActor}, pos)
	s.Actors = append(s.Actors, e)
	return e
}

// AddEnforcer creates an enforcer entity and places it on the grid.
func (s *State) AddEnforcer(pos components.Position, enf components.Enforcer) ecs.Entity {
	pos = s.Grid.Clamp(pos)
	e := s.enforcerMapper.NewEntity(&pos, &enf)
	s.Grid.Place(world.Occupant{E: e, Kind: components.KindEnforcer}, pos)
	s.Enforcers = append(s.Enforcers, e)
	return e
}

// move relocates an agent on the grid and in its Position component.
func (s *State) move(e ecs.Entity, kind components.Kind, to components.Position) components.Position {
	pos := s.Positions.Get(e)
	*pos = s.Grid.Move(world.Occupant{E: e, Kind: kind}, *pos, to)
	return *pos
}

// DistrictOf returns the district an agent currently stands in.
func (s *State) DistrictOf(e ecs.Entity) world.District {
	return s.Districts.At(*s.Positions.Get(e))
}

// IncidentsByDistrict counts actors that committed an incident this step,
// grouped by the district they stand in.
func (s *State) IncidentsByDistrict() [world.NumDistricts]int {
	var out [world.NumDistricts]int
	for _, e := range s.Actors {
		if s.ActorData.Get(e).Committed {
			out[s.DistrictOf(e)]++
		}
	}
	return out
}

// EnforcersByDistrict counts enforcers per district.
func (s *State) EnforcersByDistrict() [world.NumDistricts]int {
	var out [world.NumDistricts]int
	for _, e := range s.Enforcers {
		out[s.DistrictOf(e)]++
	}
	return out
}

func (s *State) shuffled(src []ecs.Entity) []ecs.Entity {
	out := make([]ecs.Entity, len(src))
	copy(out, src)
	s.Rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// StepActors activates every actor once in random order.
func (s *State) StepActors() {
	for _, e := range s.shuffled(s.Actors) {
		s.StepActor(e)
	}
}

// StepEnforcers activates every enforcer once in random order.
func (s *State) StepEnforcers() {
	for _, e := range s.shuffled(s.Enforcers) {
		s.StepEnforcer(e)
	}
}
