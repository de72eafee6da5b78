package telemetry

import "github.com/pthm-cable/precinct/world"

// CrimeStats accumulates per-district incident tallies into running averages.
// Steps up to and including the burn-in are recorded as latest tally only.
type CrimeStats struct {
	burnIn  int
	latest  [world.NumDistricts]int
	totals  [world.NumDistricts]int
	elapsed int
}

// NewCrimeStats creates an aggregator that starts averaging after burnIn steps.
func NewCrimeStats(burnIn int) *CrimeStats {
	return &CrimeStats{burnIn: burnIn}
}

// Observe records the tally of the step that just completed.
func (c *CrimeStats) Observe(step int, tally [world.NumDistricts]int) {
	c.latest = tally
	if step <= c.burnIn {
		return
	}
	for d, n := range tally {
		c.totals[d] += n
	}
	c.elapsed++
}

// Latest returns the most recent tally.
func (c *CrimeStats) Latest() [world.NumDistricts]int {
	return c.latest
}

// Average returns the mean incidents per step of d since burn-in.
func (c *CrimeStats) Average(d world.District) float64 {
	if c.elapsed == 0 {
		return 0
	}
	return float64(c.totals[d]) / float64(c.elapsed)
}

// Averages returns Average for every district.
func (c *CrimeStats) Averages() [world.NumDistricts]float64 {
	var out [world.NumDistricts]float64
	for _, d := range world.Districts() {
		out[d] = c.Average(d)
	}
	return out
}

// Elapsed returns the number of steps averaged so far.
func (c *CrimeStats) Elapsed() int {
	return c.elapsed
}

// CrimeStatsState is the serializable form of CrimeStats.
type CrimeStatsState struct {
	BurnIn  int   `json:"burn_in"`
	Latest  []int `json:"latest"`
	Totals  []int `json:"totals"`
	Elapsed int   `json:"elapsed"`
}

// State exports the aggregator for snapshots.
func (c *CrimeStats) State() CrimeStatsState {
	return CrimeStatsState{
		BurnIn:  c.burnIn,
		Latest:  append([]int(nil), c.latest[:]...),
		Totals:  append([]int(nil), c.totals[:]...),
		Elapsed: c.elapsed,
	}
}

// RestoreCrimeStats rebuilds an aggregator from a snapshot.
func RestoreCrimeStats(s CrimeStatsState) *CrimeStats {
	c := &CrimeStats{burnIn: s.BurnIn, elapsed: s.Elapsed}
	copy(c.latest[:], s.Latest)
	copy(c.totals[:], s.Totals)
	return c
}
