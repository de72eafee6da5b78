package systems

import (
	"math/rand"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/world"
)

// newTestState builds a state over m with default config, after applying mutate.
func newTestState(t *testing.T, m *world.ResourceMap, mutate func(*config.Config)) *State {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	table, err := world.NewDistrictTable(cfg.Districts)
	if err != nil {
		t.Fatalf("NewDistrictTable failed: %v", err)
	}
	return NewState(m, table, cfg, rand.New(rand.NewSource(1)))
}

// splitMap is Centrum for x < split and Zuid from split on.
func splitMap(width, height, split int) *world.ResourceMap {
	m := world.NewResourceMap(width, height, 44)
	for x := split; x < width; x++ {
		for y := 0; y < height; y++ {
			m.Set(x, y, 49)
		}
	}
	return m
}

// withCenters moves the Centrum and Zuid centers onto a small grid.
func withCenters(centrum, zuid []int) func(*config.Config) {
	return func(cfg *config.Config) {
		c := cfg.Districts["Centrum"]
		c.Center = centrum
		cfg.Districts["Centrum"] = c
		z := cfg.Districts["Zuid"]
		z.Center = zuid
		cfg.Districts["Zuid"] = z
	}
}

// ---------- Apprehend ----------

func TestApprehend(t *testing.T) {
	tests := []struct {
		name      string
		actor     components.Actor
		at        components.Position
		wantCatch bool
	}{
		{"committed in reach", components.Actor{Wealth: 10, Committed: true}, components.Position{X: 1, Y: 1}, true},
		{"not committed", components.Actor{Wealth: 10}, components.Position{X: 1, Y: 1}, false},
		{"already jailed", components.Actor{Wealth: 10, Committed: true, JailTime: 3}, components.Position{X: 1, Y: 1}, false},
		{"out of reach", components.Actor{Wealth: 10, Committed: true}, components.Position{X: 4, Y: 4}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState(t, world.NewResourceMap(5, 5, 44), nil)
			e := s.AddActor(tt.at, tt.actor)

			got := s.Apprehend(components.Position{X: 2, Y: 2}, 1)
			if got != tt.wantCatch {
				t.Fatalf("Apprehend() = %v, want %v", got, tt.wantCatch)
			}

			a := s.ActorData.Get(e)
			if tt.wantCatch {
				if a.JailTime != s.EnforcerCfg.Sentence {
					t.Errorf("JailTime = %d, want %d", a.JailTime, s.EnforcerCfg.Sentence)
				}
				if a.Wealth != 10-44 {
					t.Errorf("Wealth = %d, want %d", a.Wealth, 10-44)
				}
				if s.Captures != 1 {
					t.Errorf("Captures = %d, want 1", s.Captures)
				}
			} else if a.Wealth != tt.actor.Wealth || a.JailTime != tt.actor.JailTime {
				t.Errorf("actor changed without capture: %+v", *a)
			}
		})
	}
}

func TestApprehend_OneCapturePerCall(t *testing.T) {
	s := newTestState(t, world.NewResourceMap(3, 3, 44), nil)
	for i := 0; i < 4; i++ {
		s.AddActor(components.Position{X: 1, Y: 1}, components.Actor{Committed: true})
	}

	s.Apprehend(components.Position{X: 1, Y: 1}, 1)

	jailed := 0
	for _, e := range s.Actors {
		if s.ActorData.Get(e).Jailed() {
			jailed++
		}
	}
	if jailed != 1 {
		t.Errorf("jailed = %d, want 1", jailed)
	}
}

// ---------- Enforcer movement ----------

func TestStride(t *testing.T) {
	tests := []struct {
		from, target, size, want int
	}{
		{3, 6, 10, 2},
		{3, 4, 10, 2}, // overshoot allowed
		{8, 9, 10, 1},
		{3, 0, 10, -2},
		{1, 0, 10, -1},
		{5, 5, 10, 0},
	}
	for _, tt := range tests {
		if got := stride(tt.from, tt.target, tt.size); got != tt.want {
			t.Errorf("stride(%d, %d, %d) = %d, want %d", tt.from, tt.target, tt.size, got, tt.want)
		}
	}
}

func TestAlongBoundary(t *testing.T) {
	s := newTestState(t, splitMap(5, 5, 3), nil)

	got := s.alongBoundary(components.Position{X: 2, Y: 2}, components.Position{X: 4, Y: 4})
	want := components.Position{X: 2, Y: 4}
	if got != want {
		t.Errorf("alongBoundary = %v, want %v", got, want)
	}

	// Moves that stay inside the district are untouched
	inside := components.Position{X: 0, Y: 4}
	if got := s.alongBoundary(components.Position{X: 2, Y: 2}, inside); got != inside {
		t.Errorf("alongBoundary = %v, want %v", got, inside)
	}
}

func TestPatrol_HeadsForEmptiestCell(t *testing.T) {
	s := newTestState(t, world.NewResourceMap(7, 7, 44), nil)
	s.Grid.Resource(components.Position{X: 6, Y: 6}).Deplete()
	e := s.AddEnforcer(components.Position{X: 3, Y: 3}, components.Enforcer{CatchRadius: 1})

	s.StepEnforcer(e)

	got := *s.Positions.Get(e)
	want := components.Position{X: 5, Y: 5}
	if got != want {
		t.Errorf("position = %v, want %v", got, want)
	}
	if s.EnforcerData.Get(e).SurveillanceRadius != 8 {
		t.Errorf("SurveillanceRadius = %d, want Centrum level 8", s.EnforcerData.Get(e).SurveillanceRadius)
	}
	if s.Rebalance.Plan.Valid {
		t.Error("plan should be invalid without incidents")
	}
}

func TestPatrol_AvoidsOtherEnforcer(t *testing.T) {
	s := newTestState(t, world.NewResourceMap(7, 7, 44), nil)
	s.Grid.Resource(components.Position{X: 6, Y: 6}).Deplete()
	e := s.AddEnforcer(components.Position{X: 3, Y: 3}, components.Enforcer{CatchRadius: 1})
	s.AddEnforcer(components.Position{X: 5, Y: 5}, components.Enforcer{CatchRadius: 1})

	s.StepEnforcer(e)

	got := *s.Positions.Get(e)
	if got == (components.Position{X: 5, Y: 5}) {
		t.Fatal("enforcer moved onto an occupied cell")
	}
	if chebyshev(got, components.Position{X: 3, Y: 3}) != 1 {
		t.Errorf("position = %v, want a neighbor of (3,3)", got)
	}
}

func TestRebalance_MovesTowardDeficit(t *testing.T) {
	s := newTestState(t, splitMap(10, 10, 5), withCenters([]int{2, 5}, []int{7, 5}))
	s.AddActor(components.Position{X: 8, Y: 8}, components.Actor{Committed: true})
	e := s.AddEnforcer(components.Position{X: 2, Y: 5}, components.Enforcer{CatchRadius: 1})
	s.AddEnforcer(components.Position{X: 1, Y: 5}, components.Enforcer{CatchRadius: 1})

	s.StepEnforcer(e)

	rb := s.Rebalance
	if !rb.Plan.Valid {
		t.Fatal("plan should be valid")
	}
	if rb.Plan.Target[world.Zuid] != 2 || rb.Plan.Delta[world.Centrum] != -2 {
		t.Errorf("plan = %+v", rb.Plan)
	}
	if got, want := *s.Positions.Get(e), (components.Position{X: 3, Y: 5}); got != want {
		t.Errorf("position = %v, want %v", got, want)
	}
	if rb.Made[world.Zuid] != 1 || rb.Made[world.Centrum] != -1 {
		t.Errorf("made = %v", rb.Made)
	}
	if rb.Stepped != 1 {
		t.Errorf("Stepped = %d, want 1", rb.Stepped)
	}
	if s.EnforcerData.Get(e).DistrictLock != 0 {
		t.Error("enforcer still in Centrum should not be locked")
	}
}

func TestRebalance_LocksOnDistrictChange(t *testing.T) {
	s := newTestState(t, splitMap(10, 10, 5), withCenters([]int{2, 5}, []int{7, 5}))
	s.AddActor(components.Position{X: 8, Y: 8}, components.Actor{Committed: true})
	e := s.AddEnforcer(components.Position{X: 4, Y: 5}, components.Enforcer{CatchRadius: 1})

	s.StepEnforcer(e)

	if got := s.DistrictOf(e); got != world.Zuid {
		t.Fatalf("district = %s, want Zuid", got)
	}
	if got := s.EnforcerData.Get(e).DistrictLock; got != s.EnforcerCfg.LockSteps {
		t.Errorf("DistrictLock = %d, want %d", got, s.EnforcerCfg.LockSteps)
	}
	// Single enforcer: every activation starts a new sweep
	if s.Rebalance.Stepped != 0 {
		t.Errorf("Stepped = %d, want 0", s.Rebalance.Stepped)
	}
}

func TestLockedEnforcerPatrols(t *testing.T) {
	s := newTestState(t, splitMap(10, 10, 5), withCenters([]int{2, 5}, []int{7, 5}))
	s.AddActor(components.Position{X: 8, Y: 8}, components.Actor{Committed: true})
	e := s.AddEnforcer(components.Position{X: 2, Y: 5}, components.Enforcer{CatchRadius: 1, DistrictLock: 3})

	s.StepEnforcer(e)

	if got := s.DistrictOf(e); got != world.Centrum {
		t.Errorf("locked enforcer left its district: %s", got)
	}
	if got := s.EnforcerData.Get(e).DistrictLock; got != 2 {
		t.Errorf("DistrictLock = %d, want 2", got)
	}
	if s.Rebalance.Made[world.Zuid] != 0 {
		t.Errorf("locked enforcer counted as rebalanced: %v", s.Rebalance.Made)
	}
}

// stripMap lays out Centrum (x < 4), West (4-5) and Zuid (x >= 6).
func stripMap() *world.ResourceMap {
	m := world.NewResourceMap(10, 10, 44)
	for x := 4; x < 10; x++ {
		v := 36.0
		if x >= 6 {
			v = 49
		}
		for y := 0; y < 10; y++ {
			m.Set(x, y, v)
		}
	}
	return m
}

func TestRebalance_EverySurplusEnforcerMoves(t *testing.T) {
	s := newTestState(t, stripMap(), withCenters([]int{1, 5}, []int{8, 5}))
	s.AddActor(components.Position{X: 0, Y: 0}, components.Actor{Committed: true})
	s.AddActor(components.Position{X: 8, Y: 8}, components.Actor{Committed: true})
	s.AddActor(components.Position{X: 9, Y: 9}, components.Actor{Committed: true})
	first := s.AddEnforcer(components.Position{X: 1, Y: 5}, components.Enforcer{CatchRadius: 1})
	second := s.AddEnforcer(components.Position{X: 2, Y: 5}, components.Enforcer{CatchRadius: 1})
	s.AddEnforcer(components.Position{X: 5, Y: 5}, components.Enforcer{CatchRadius: 1})

	s.StepEnforcer(first)
	s.StepEnforcer(second)

	rb := s.Rebalance
	want := [world.NumDistricts]int{}
	want[world.Centrum], want[world.West], want[world.Zuid] = -1, -1, 2
	if rb.Plan.Delta != want {
		t.Fatalf("delta = %v, want %v", rb.Plan.Delta, want)
	}
	if rb.Made[world.Centrum] != -2 || rb.Made[world.Zuid] != 2 {
		t.Errorf("made = %v, want Centrum -2 and Zuid 2", rb.Made)
	}
	if got, want := *s.Positions.Get(second), (components.Position{X: 3, Y: 5}); got != want {
		t.Errorf("second enforcer at %v, want %v", got, want)
	}
}

// undefinedGapMap is Centrum for x < 5, Undefined at x = 5 and Zuid beyond.
func undefinedGapMap() *world.ResourceMap {
	m := splitMap(10, 10, 6)
	for y := 0; y < 10; y++ {
		m.Set(5, y, 1)
	}
	return m
}

func TestStepEnforcer_SweepEdges(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) (*State, ecs.Entity)
		check func(t *testing.T, s *State, e ecs.Entity)
	}{
		{
			name: "sweep counter wraps after every enforcer",
			build: func(t *testing.T) (*State, ecs.Entity) {
				s := newTestState(t, splitMap(10, 10, 5), withCenters([]int{2, 5}, []int{7, 5}))
				s.AddActor(components.Position{X: 8, Y: 8}, components.Actor{})
				e := s.AddEnforcer(components.Position{X: 1, Y: 1}, components.Enforcer{CatchRadius: 1})
				s.AddEnforcer(components.Position{X: 1, Y: 8}, components.Enforcer{CatchRadius: 1})
				s.AddEnforcer(components.Position{X: 3, Y: 5}, components.Enforcer{CatchRadius: 1})
				return s, e
			},
			check: func(t *testing.T, s *State, _ ecs.Entity) {
				var stepped []int
				for _, e := range s.Enforcers {
					s.StepEnforcer(e)
					stepped = append(stepped, s.Rebalance.Stepped)
				}
				if stepped[0] != 1 || stepped[1] != 2 || stepped[2] != 0 {
					t.Errorf("Stepped sequence = %v, want [1 2 0]", stepped)
				}
				if s.Rebalance.Plan.Valid {
					t.Error("first sweep had no incidents but the plan is valid")
				}

				// The next activation opens a new sweep with fresh counts
				s.ActorData.Get(s.Actors[0]).Committed = true
				s.StepEnforcer(s.Enforcers[0])
				if s.Rebalance.Stepped != 1 || !s.Rebalance.Plan.Valid {
					t.Errorf("new sweep: Stepped = %d, valid = %v", s.Rebalance.Stepped, s.Rebalance.Plan.Valid)
				}
			},
		},
		{
			name: "no incidents leaves the plan invalid and the enforcer patrols",
			build: func(t *testing.T) (*State, ecs.Entity) {
				s := newTestState(t, splitMap(10, 10, 5), withCenters([]int{2, 5}, []int{7, 5}))
				s.AddActor(components.Position{X: 8, Y: 8}, components.Actor{})
				e := s.AddEnforcer(components.Position{X: 2, Y: 5}, components.Enforcer{CatchRadius: 1})
				s.AddEnforcer(components.Position{X: 1, Y: 5}, components.Enforcer{CatchRadius: 1})
				return s, e
			},
			check: func(t *testing.T, s *State, e ecs.Entity) {
				s.StepEnforcer(e)
				rb := s.Rebalance
				if rb.Plan.Valid {
					t.Error("plan should be invalid")
				}
				if rb.Made != ([world.NumDistricts]int{}) {
					t.Errorf("made = %v, want all zero", rb.Made)
				}
				if rb.Deficit != ([world.NumDistricts]bool{}) || rb.Surplus != ([world.NumDistricts]bool{}) {
					t.Error("invalid plan should leave deficit and surplus sets empty")
				}
				if got := s.DistrictOf(e); got != world.Centrum {
					t.Errorf("district = %s, want Centrum", got)
				}
				if got := *s.Positions.Get(e); got == (components.Position{X: 2, Y: 5}) {
					t.Error("enforcer did not patrol")
				}
			},
		},
		{
			name: "undefined landing cell falls back to patrol",
			build: func(t *testing.T) (*State, ecs.Entity) {
				s := newTestState(t, undefinedGapMap(), withCenters([]int{2, 5}, []int{8, 5}))
				s.AddActor(components.Position{X: 8, Y: 8}, components.Actor{Committed: true})
				e := s.AddEnforcer(components.Position{X: 4, Y: 5}, components.Enforcer{CatchRadius: 1})
				return s, e
			},
			check: func(t *testing.T, s *State, e ecs.Entity) {
				s.StepEnforcer(e)
				rb := s.Rebalance
				if !rb.Plan.Valid || rb.Plan.Delta[world.Zuid] != 1 {
					t.Fatalf("plan = %+v", rb.Plan)
				}
				if rb.Made != ([world.NumDistricts]int{}) {
					t.Errorf("made = %v, want all zero", rb.Made)
				}
				if got := s.DistrictOf(e); got != world.Centrum {
					t.Errorf("district = %s, want Centrum", got)
				}
				if s.EnforcerData.Get(e).DistrictLock != 0 {
					t.Error("patrolling enforcer should not be locked")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := tt.build(t)
			tt.check(t, s, e)
		})
	}
}

// ---------- Actor ----------

func TestStepActor_SingleActorExample(t *testing.T) {
	s := newTestState(t, world.NewResourceMap(5, 5, 44), func(cfg *config.Config) {
		cfg.Actor.Upkeep = 1
	})
	e := s.AddActor(components.Position{X: 2, Y: 2}, components.Actor{Wealth: 10, SearchRadius: 1, RiskRadius: 0})

	s.StepActor(e)

	a := s.ActorData.Get(e)
	pos := *s.Positions.Get(e)
	if chebyshev(pos, components.Position{X: 2, Y: 2}) > 1 {
		t.Errorf("actor moved to %v, outside its neighborhood", pos)
	}
	if a.Wealth != 10+44-1 {
		t.Errorf("Wealth = %d, want %d", a.Wealth, 10+44-1)
	}
	if !a.Committed || a.Incidents != 1 {
		t.Errorf("Committed = %v, Incidents = %d", a.Committed, a.Incidents)
	}
	if got := s.Grid.Resource(pos).Amount; got != 0 {
		t.Errorf("cell amount = %d, want 0", got)
	}
}

func TestStepActor_Jailed(t *testing.T) {
	s := newTestState(t, world.NewResourceMap(5, 5, 44), nil)
	start := components.Position{X: 2, Y: 2}
	e := s.AddActor(start, components.Actor{Wealth: 10, JailTime: 2, Committed: true, SearchRadius: 1})

	s.StepActor(e)

	a := s.ActorData.Get(e)
	if a.JailTime != 1 {
		t.Errorf("JailTime = %d, want 1", a.JailTime)
	}
	if a.Committed {
		t.Error("Committed should reset at the start of the step")
	}
	if a.Wealth != 10 {
		t.Errorf("jailed actor paid upkeep: wealth %d", a.Wealth)
	}
	if *s.Positions.Get(e) != start {
		t.Error("jailed actor moved")
	}
}

func TestStepActor_AvoidsEnforcer(t *testing.T) {
	s := newTestState(t, world.NewResourceMap(5, 5, 44), nil)
	e := s.AddActor(components.Position{X: 2, Y: 2}, components.Actor{Wealth: 10, SearchRadius: 1, RiskRadius: 1, RiskAversion: 1})
	s.AddEnforcer(components.Position{X: 1, Y: 1}, components.Enforcer{})

	s.StepActor(e)

	if got := *s.Positions.Get(e); got == (components.Position{X: 1, Y: 1}) {
		t.Error("actor moved onto the enforcer's cell")
	}
}

func TestStepActor_ConfederateMove(t *testing.T) {
	m := world.NewResourceMap(9, 9, 44)
	s := newTestState(t, m, nil)
	// Own neighborhood is empty; the buddy's is full
	for _, p := range s.Grid.Neighborhood(components.Position{X: 1, Y: 1}, 1, true) {
		s.Grid.Resource(p).Deplete()
	}
	e := s.AddActor(components.Position{X: 1, Y: 1}, components.Actor{Wealth: 10, SearchRadius: 1, BuddyID: 3})
	s.AddActor(components.Position{X: 7, Y: 7}, components.Actor{Wealth: 10, SearchRadius: 1, BuddyID: 3})

	s.StepActor(e)

	a := s.ActorData.Get(e)
	if got, want := *s.Positions.Get(e), (components.Position{X: 2, Y: 2}); got != want {
		t.Errorf("position = %v, want %v", got, want)
	}
	if a.Committed {
		t.Error("confederate move must not commit an incident")
	}
	if a.Wealth != 10-s.ActorCfg.Upkeep {
		t.Errorf("Wealth = %d, want %d", a.Wealth, 10-s.ActorCfg.Upkeep)
	}
}

func TestPressure(t *testing.T) {
	s := newTestState(t, world.NewResourceMap(5, 5, 44), nil)
	s.AddEnforcer(components.Position{X: 2, Y: 4}, components.Enforcer{})

	if got := s.Pressure(components.Position{X: 2, Y: 2}, 2); got != 0.5 {
		t.Errorf("Pressure = %v, want 0.5", got)
	}
	if got := s.Pressure(components.Position{X: 2, Y: 2}, 1); got != 0 {
		t.Errorf("Pressure outside radius = %v, want 0", got)
	}
	if got := s.Pressure(components.Position{X: 2, Y: 4}, 0); got != s.ActorCfg.RiskSentinel {
		t.Errorf("Pressure on enforcer cell = %v, want %v", got, s.ActorCfg.RiskSentinel)
	}
}
