package sim

import (
	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/systems"
)

// randomDefinedCell draws positions until one lies in a named district.
// The caller guarantees the map has at least one such cell.
func randomDefinedCell(st *systems.State) components.Position {
	for {
		p := components.Position{X: st.Rng.Intn(st.Grid.Width), Y: st.Rng.Intn(st.Grid.Height)}
		if st.Districts.At(p).Defined() {
			return p
		}
	}
}

// spawnActors creates the initial criminals with drawn wealth, risk aversion
// and affinity group.
func spawnActors(st *systems.State, cfg *config.Config) {
	ac := cfg.Actor
	for i := 0; i < cfg.Population.Actors; i++ {
		pos := randomDefinedCell(st)

		a := components.Actor{
			Wealth:       ac.MinWealth + st.Rng.Intn(ac.MaxWealth-ac.MinWealth),
			SearchRadius: ac.SearchRadius,
			RiskRadius:   ac.RiskRadius,
		}
		if ac.RiskAversion > 0 {
			a.RiskAversion = float64(st.Rng.Intn(ac.RiskAversion))
		}
		if ac.Disconnectivity > 0 {
			a.BuddyID = st.Rng.Intn(ac.Disconnectivity + 1)
		}

		st.AddActor(pos, a)
	}
}

// spawnEnforcers creates the initial cops.
func spawnEnforcers(st *systems.State, cfg *config.Config) {
	for i := 0; i < cfg.Population.Enforcers; i++ {
		pos := randomDefinedCell(st)
		st.AddEnforcer(pos, components.Enforcer{
			CatchRadius:        cfg.Enforcer.CatchRadius,
			Sentence:           cfg.Enforcer.Sentence,
			SurveillanceRadius: st.Table.Surveillance[st.Districts.At(pos)],
		})
	}
}
