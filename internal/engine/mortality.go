// Mortality: accidents, natural death, and the widowing side effect of a
// death.
package engine

import (
	"github.com/talgya/lifesim/internal/agents"
	"github.com/talgya/lifesim/internal/entropy"
)

// defaultAccidentType labels accidents when no types are configured.
const defaultAccidentType = "accident"

// Kill marks b dead. When b is a married human, a living spouse becomes
// widowed and both spouse links are cleared. Killing a dead agent is a no-op
// and returns false.
func Kill(pop *agents.Population, b agents.Being) bool {
	if !b.Core().Alive {
		return false
	}
	b.Die()

	if h, ok := b.(*agents.Human); ok && h.SpouseID != nil {
		// A spouse id that no longer resolves is treated as no spouse.
		if spouse := pop.Human(*h.SpouseID); spouse != nil && spouse.Alive {
			spouse.MaritalStatus = agents.StatusWidowed
			spouse.SpouseID = nil
		}
		h.SpouseID = nil
	}
	return true
}

// processAccidents gives every agent alive at the start of the pass one
// accident draw. A hit is counted as an accident; a second draw decides
// whether it is fatal.
func (e *Engine) processAccidents(pop *agents.Population, res *YearResult) {
	for _, b := range pop.Alive() {
		if !b.Core().Alive {
			continue
		}
		if !entropy.Chance(e.rng, e.cfg.AccidentAnnualProbability) {
			continue
		}
		res.Accidents++

		kind, ok := entropy.Pick(e.rng, e.cfg.AccidentTypes)
		if !ok {
			kind = defaultAccidentType
		}

		if !entropy.Chance(e.rng, e.cfg.AccidentFatalityProbability) {
			continue
		}
		if Kill(pop, b) {
			res.Deaths++
			c := b.Core()
			res.logf("#%d %s (%s) died in an accident (%s)", c.ID, c.Name, b.Kind(), kind)
		}
	}
}

// processNaturalDeaths draws each surviving agent's age-based death
// probability. Agents killed by an accident this tick are not evaluated.
func (e *Engine) processNaturalDeaths(pop *agents.Population, res *YearResult) {
	for _, b := range pop.Alive() {
		if !b.Core().Alive {
			continue
		}
		if !entropy.Chance(e.rng, b.DeathProbability(e.cfg)) {
			continue
		}
		if Kill(pop, b) {
			res.Deaths++
			c := b.Core()
			res.logf("#%d %s (%s) died of old age (age %d)", c.ID, c.Name, b.Kind(), c.Age)
		}
	}
}
