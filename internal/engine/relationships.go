// Marriage matching between living single or widowed humans.
package engine

import (
	"github.com/talgya/lifesim/internal/agents"
	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/entropy"
)

// marriageCandidates returns the living single or widowed humans inside the
// candidate age window, split by gender.
func (e *Engine) marriageCandidates(pop *agents.Population) (men, women []*agents.Human) {
	for _, h := range pop.Humans() {
		if !h.Alive {
			continue
		}
		if h.MaritalStatus != agents.StatusSingle && h.MaritalStatus != agents.StatusWidowed {
			continue
		}
		if h.Age < e.cfg.MarriageCandidateMinAge || h.Age > e.cfg.MarriageCandidateMaxAge {
			continue
		}
		if h.Gender == agents.GenderMale {
			men = append(men, h)
		} else {
			women = append(women, h)
		}
	}
	return men, women
}

// processMarriages pairs candidates first-fit in shuffled order. Both
// partners must pass their own age-band draw, and each candidate marries at
// most once per tick.
func (e *Engine) processMarriages(pop *agents.Population, res *YearResult) {
	men, women := e.marriageCandidates(pop)
	if len(men) == 0 || len(women) == 0 {
		return
	}

	e.rng.Shuffle(len(men), func(i, j int) { men[i], men[j] = men[j], men[i] })
	e.rng.Shuffle(len(women), func(i, j int) { women[i], women[j] = women[j], women[i] })

	used := make(map[agents.AgentID]bool, len(women))
	for _, m := range men {
		if !entropy.Chance(e.rng, e.marriageProbability(m.Age)) {
			continue
		}

		var match *agents.Human
		for _, w := range women {
			if used[w.ID] || absInt(w.Age-m.Age) > e.cfg.MarriageMaxAgeGap {
				continue
			}
			match = w
			break
		}
		if match == nil {
			continue
		}

		if !entropy.Chance(e.rng, e.marriageProbability(match.Age)) {
			continue
		}

		agents.Marry(m, match)
		used[match.ID] = true
		res.Marriages++
		res.logf("#%d %s and #%d %s got married", m.ID, m.Name, match.ID, match.Name)
	}
}

// marriageProbability is 0 for ages outside every configured band.
func (e *Engine) marriageProbability(age int) float64 {
	return config.BandProbability(e.cfg.MarriageAgeBands, age, 0)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
