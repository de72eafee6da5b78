package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one stage of a simulation step.
type Phase int

// Step phases in execution order.
const (
	PhaseResources Phase = iota
	PhaseActors
	PhaseEnforcers
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{"resources", "actors", "enforcers", "telemetry"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

type stepTiming struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps a ring of the most recent step timings.
type PerfCollector struct {
	ring  []stepTiming
	next  int
	count int

	cur        stepTiming
	stepStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool
}

// NewPerfCollector creates a collector averaging over window steps.
// A window below 1 falls back to 100.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 100
	}
	return &PerfCollector{ring: make([]stepTiming, window)}
}

// StartTick begins timing a new simulation step.
func (p *PerfCollector) StartTick() {
	p.cur = stepTiming{}
	p.stepStart = time.Now()
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and opens ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phase, p.phaseStart, p.inPhase = ph, now, true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndTick closes the step and stores it in the ring.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.inPhase = false
	p.cur.total = now.Sub(p.stepStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	if p.count < len(p.ring) {
		p.count++
	}
}

// PerfStats summarizes the steps currently in the window.
type PerfStats struct {
	Steps int

	Avg, Min, Max time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // share of the average step, 0-100

	StepsPerSecond float64
}

// Stats aggregates the window. An empty window yields zero stats.
func (p *PerfCollector) Stats() PerfStats {
	st := PerfStats{Steps: p.count}
	if p.count == 0 {
		return st
	}

	var total time.Duration
	var phaseTotal [numPhases]time.Duration
	for i, t := range p.ring[:p.count] {
		total += t.total
		if i == 0 || t.total < st.Min {
			st.Min = t.total
		}
		st.Max = max(st.Max, t.total)
		for ph, d := range t.phases {
			phaseTotal[ph] += d
		}
	}

	n := time.Duration(p.count)
	st.Avg = total / n
	for ph := range phaseTotal {
		st.PhaseAvg[ph] = phaseTotal[ph] / n
		if st.Avg > 0 {
			st.PhasePct[ph] = 100 * float64(st.PhaseAvg[ph]) / float64(st.Avg)
		}
	}
	if st.Avg > 0 {
		st.StepsPerSecond = float64(time.Second) / float64(st.Avg)
	}
	return st
}

// LogStats emits one "perf" line. Phases under 0.1% are omitted.
func (s PerfStats) LogStats() {
	args := []any{
		"avg_step_us", s.Avg.Microseconds(),
		"min_step_us", s.Min.Microseconds(),
		"max_step_us", s.Max.Microseconds(),
		"steps_per_sec", int(s.StepsPerSecond),
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		if pct := s.PhasePct[ph]; pct > 0.1 {
			args = append(args, ph.String()+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", args...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("steps", s.Steps),
		slog.Int64("avg_step_us", s.Avg.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.PhasePct[ph]))
	}
	return slog.GroupValue(attrs...)
}

// PerfRow is one line of perf.csv.
type PerfRow struct {
	WindowEnd    int     `csv:"window_end"`
	Steps        int     `csv:"steps"`
	AvgStepUS    int64   `csv:"avg_step_us"`
	MinStepUS    int64   `csv:"min_step_us"`
	MaxStepUS    int64   `csv:"max_step_us"`
	StepsPerSec  float64 `csv:"steps_per_sec"`
	ResourcesPct float64 `csv:"resources_pct"`
	ActorsPct    float64 `csv:"actors_pct"`
	EnforcersPct float64 `csv:"enforcers_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

func (r *PerfRow) phaseFields() [numPhases]*float64 {
	return [numPhases]*float64{&r.ResourcesPct, &r.ActorsPct, &r.EnforcersPct, &r.TelemetryPct}
}

// Row flattens the stats for the window ending at step windowEnd.
func (s PerfStats) Row(windowEnd int) PerfRow {
	r := PerfRow{
		WindowEnd:   windowEnd,
		Steps:       s.Steps,
		AvgStepUS:   s.Avg.Microseconds(),
		MinStepUS:   s.Min.Microseconds(),
		MaxStepUS:   s.Max.Microseconds(),
		StepsPerSec: s.StepsPerSecond,
	}
	for ph, f := range r.phaseFields() {
		*f = s.PhasePct[ph]
	}
	return r
}
