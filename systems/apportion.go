package systems

import (
	"sort"

	"github.com/pthm-cable/precinct/world"
)

// Plan is a target allocation of enforcers across districts.
type Plan struct {
	Target [world.NumDistricts]int
	Delta  [world.NumDistricts]int // Target - current
	Valid  bool
}

// Apportion distributes total enforcers proportionally to incidents using the
// largest remainder method. Arithmetic is exact: each district's quota is
// total*inc/sum, split into an integer floor and a remainder numerator.
// Leftover seats go to the largest remainders, earlier districts first on ties.
// With no incidents at all the plan is invalid.
func Apportion(incidents, current [world.NumDistricts]int, total int) Plan {
	sum := 0
	for _, n := range incidents {
		sum += n
	}
	if sum <= 0 || total < 0 {
		return Plan{}
	}

	var p Plan
	var rem [world.NumDistricts]int
	assigned := 0
	for d, n := range incidents {
		p.Target[d] = total * n / sum
		rem[d] = total * n % sum
		assigned += p.Target[d]
	}

	order := make([]int, world.NumDistricts)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return rem[order[i]] > rem[order[j]]
	})
	for i := 0; assigned < total; i = (i + 1) % len(order) {
		p.Target[order[i]]++
		assigned++
	}

	for d := range p.Target {
		p.Delta[d] = p.Target[d] - current[d]
	}
	p.Valid = true
	return p
}
