package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/precinct/world"
)

// StepStats holds the observable state of the model after one step.
// Column names for the per-district tallies follow the district display names.
type StepStats struct {
	Step int `csv:"step"`

	// Population at step end
	Actors int `csv:"criminal_count"`
	Jailed int `csv:"criminal_in_jail"`

	// Wealth distribution over all actors
	Wealth     int     `csv:"criminal_wealth"`
	WealthMean float64 `csv:"wealth_mean"`
	WealthP10  float64 `csv:"wealth_p10"`
	WealthP50  float64 `csv:"wealth_p50"`
	WealthP90  float64 `csv:"wealth_p90"`

	// Crime
	Incidents int  `csv:"crimes_committed"` // cumulative
	Captures  int  `csv:"captures"`         // this step
	PlanValid bool `csv:"plan_valid"`

	// Incidents this step per district
	Centrum   int `csv:"Centrum"`
	NieuwWest int `csv:"Nieuw-West"`
	Noord     int `csv:"Noord"`
	Oost      int `csv:"Oost"`
	West      int `csv:"West"`
	Zuid      int `csv:"Zuid"`
	Zuidoost  int `csv:"Zuidoost"`
	Undefined int `csv:"Undefined"`

	// Mean incidents per step per district since burn-in
	CentrumAvg   float64 `csv:"Centrum_Avg"`
	NieuwWestAvg float64 `csv:"Nieuw-West_Avg"`
	NoordAvg     float64 `csv:"Noord_Avg"`
	OostAvg      float64 `csv:"Oost_Avg"`
	WestAvg      float64 `csv:"West_Avg"`
	ZuidAvg      float64 `csv:"Zuid_Avg"`
	ZuidoostAvg  float64 `csv:"Zuidoost_Avg"`
	UndefinedAvg float64 `csv:"Undefined_Avg"`
}

func (s *StepStats) tallyFields() [world.NumDistricts]*int {
	return [world.NumDistricts]*int{
		world.Centrum:   &s.Centrum,
		world.NieuwWest: &s.NieuwWest,
		world.Noord:     &s.Noord,
		world.Oost:      &s.Oost,
		world.West:      &s.West,
		world.Zuid:      &s.Zuid,
		world.Zuidoost:  &s.Zuidoost,
		world.Undefined: &s.Undefined,
	}
}

func (s *StepStats) avgFields() [world.NumDistricts]*float64 {
	return [world.NumDistricts]*float64{
		world.Centrum:   &s.CentrumAvg,
		world.NieuwWest: &s.NieuwWestAvg,
		world.Noord:     &s.NoordAvg,
		world.Oost:      &s.OostAvg,
		world.West:      &s.WestAvg,
		world.Zuid:      &s.ZuidAvg,
		world.Zuidoost:  &s.ZuidoostAvg,
		world.Undefined: &s.UndefinedAvg,
	}
}

// SetDistricts fills the per-district columns.
func (s *StepStats) SetDistricts(tally [world.NumDistricts]int, avg [world.NumDistricts]float64) {
	for d, f := range s.tallyFields() {
		*f = tally[d]
	}
	for d, f := range s.avgFields() {
		*f = avg[d]
	}
}

// Tally returns the per-district incidents of the step.
func (s StepStats) Tally() [world.NumDistricts]int {
	var out [world.NumDistricts]int
	for d, f := range s.tallyFields() {
		out[d] = *f
	}
	return out
}

// Averages returns the per-district running averages.
func (s StepStats) Averages() [world.NumDistricts]float64 {
	var out [world.NumDistricts]float64
	for d, f := range s.avgFields() {
		out[d] = *f
	}
	return out
}

// SetWealth fills the wealth columns from the actors' wealth values.
func (s *StepStats) SetWealth(values []float64) {
	total := 0.0
	for _, v := range values {
		total += v
	}
	s.Wealth = int(total)
	s.WealthMean, s.WealthP10, s.WealthP50, s.WealthP90 = ComputeWealthStats(values)
}

// ComputeWealthStats calculates mean and empirical percentiles.
func ComputeWealthStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("step", s.Step),
		slog.Int("actors", s.Actors),
		slog.Int("jailed", s.Jailed),
		slog.Int("wealth", s.Wealth),
		slog.Float64("wealth_p50", s.WealthP50),
		slog.Int("incidents", s.Incidents),
		slog.Int("captures", s.Captures),
		slog.Bool("plan_valid", s.PlanValid),
	}
	avg := s.Averages()
	for _, d := range world.Districts() {
		attrs = append(attrs, slog.Float64(d.String()+"_avg", avg[d]))
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the step stats using slog.
func (s StepStats) LogStats() {
	slog.Info("stats",
		"step", s.Step,
		"actors", s.Actors,
		"jailed", s.Jailed,
		"wealth", s.Wealth,
		"incidents", s.Incidents,
		"captures", s.Captures,
		"plan_valid", s.PlanValid,
		"tally", s.Tally(),
	)
}
