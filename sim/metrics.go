package sim

import (
	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/telemetry"
	"github.com/pthm-cable/precinct/world"
)

// Metrics is the observable state right after a step.
type Metrics struct {
	Step      int                         `json:"step"`
	Actors    int                         `json:"actors"`
	Enforcers int                         `json:"enforcers"`
	Jailed    int                         `json:"jailed"`
	Wealth    int                         `json:"wealth"`
	Incidents int                         `json:"incidents"` // cumulative
	Captures  int                         `json:"captures"`  // this step
	PlanValid bool                        `json:"plan_valid"`
	Tally     [world.NumDistricts]int     `json:"tally"`
	Averages  [world.NumDistricts]float64 `json:"averages"`
	Wealths   []float64                   `json:"-"`
}

// Metrics collects the current metrics.
func (s *Simulation) Metrics() Metrics {
	m := Metrics{
		Step:      s.step,
		Enforcers: len(s.state.Enforcers),
		Captures:  s.state.Captures,
		PlanValid: s.state.Rebalance.Plan.Valid,
		Tally:     s.crime.Latest(),
		Averages:  s.crime.Averages(),
	}

	q := s.actorFilter.Query()
	for q.Next() {
		_, a := q.Get()
		m.Actors++
		m.Wealth += a.Wealth
		m.Incidents += a.Incidents
		if a.Jailed() {
			m.Jailed++
		}
		m.Wealths = append(m.Wealths, float64(a.Wealth))
	}
	return m
}

// Stats converts metrics into a CSV/log record.
func (m Metrics) Stats() telemetry.StepStats {
	st := telemetry.StepStats{
		Step:      m.Step,
		Actors:    m.Actors,
		Jailed:    m.Jailed,
		Incidents: m.Incidents,
		Captures:  m.Captures,
		PlanValid: m.PlanValid,
	}
	st.SetWealth(m.Wealths)
	st.SetDistricts(m.Tally, m.Averages)
	return st
}

// AgentView is the render-facing state of one agent.
type AgentView struct {
	Kind   string `json:"kind"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Jailed bool   `json:"jailed,omitempty"`
}

// Frame is an immutable copy of everything a renderer needs for one step.
type Frame struct {
	Step    int         `json:"step"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Amounts []int       `json:"amounts"` // x-major
	Agents  []AgentView `json:"agents"`
	Metrics Metrics     `json:"metrics"`
}

// Frame captures the current state for rendering collaborators.
func (s *Simulation) Frame() Frame {
	g := s.state.Grid
	f := Frame{
		Step:    s.step,
		Width:   g.Width,
		Height:  g.Height,
		Amounts: make([]int, 0, s.cfg.Derived.Cells),
		Agents:  make([]AgentView, 0, len(s.state.Actors)+len(s.state.Enforcers)),
		Metrics: s.Metrics(),
	}
	f.Metrics.Wealths = nil

	g.ForEachResource(func(_ components.Position, r *world.ResourceCell) {
		f.Amounts = append(f.Amounts, r.Amount)
	})

	aq := s.actorFilter.Query()
	for aq.Next() {
		pos, a := aq.Get()
		f.Agents = append(f.Agents, AgentView{Kind: components.KindActor.String(), X: pos.X, Y: pos.Y, Jailed: a.Jailed()})
	}
	eq := s.enforcerFilter.Query()
	for eq.Next() {
		pos, _ := eq.Get()
		f.Agents = append(f.Agents, AgentView{Kind: components.KindEnforcer.String(), X: pos.X, Y: pos.Y})
	}
	return f
}

// DistrictLayout returns the district name of every cell, x-major.
func (s *Simulation) DistrictLayout() []string {
	g := s.state.Grid
	out := make([]string, 0, s.cfg.Derived.Cells)
	g.ForEachResource(func(p components.Position, _ *world.ResourceCell) {
		out = append(out, s.state.Districts.At(p).String())
	})
	return out
}
