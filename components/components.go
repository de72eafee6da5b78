// Package components defines ECS components for the simulation.
package components

// Kind identifies the breed of a mobile agent.
type Kind uint8

const (
	KindActor Kind = iota
	KindEnforcer
)

// String returns the breed name used in frames and logs.
func (k Kind) String() string {
	switch k {
	case KindActor:
		return "actor"
	case KindEnforcer:
		return "enforcer"
	default:
		return "unknown"
	}
}

// Position is a cell coordinate on the grid.
type Position struct {
	X, Y int
}

// Actor holds the state of a criminal agent.
type Actor struct {
	Wealth       int     // may go negative after upkeep or fines
	RiskAversion float64 // weight on district risk in the utility function
	SearchRadius int
	RiskRadius   int
	JailTime     int  // steps left incapacitated, 0 = free
	Incidents    int  // lifetime incident count
	Committed    bool // committed an incident during the current step
	BuddyID      int  // affinity group shared with confederates
}

// Jailed reports whether the actor is currently incapacitated.
func (a *Actor) Jailed() bool {
	return a.JailTime > 0
}

// Enforcer holds the state of a cop agent.
type Enforcer struct {
	CatchRadius        int
	Sentence           int // jail time imposed on capture
	SurveillanceRadius int // refreshed from the current district each step
	DistrictLock       int // steps left before another district switch is allowed
}
