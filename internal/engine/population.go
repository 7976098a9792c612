// Population dynamics: aging and births.
package engine

import (
	"github.com/talgya/lifesim/internal/agents"
	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/entropy"
)

// ageAgents increments the age of every living agent. It must run exactly
// once per tick.
func ageAgents(pop *agents.Population) {
	for _, b := range pop.All() {
		b.Core().AgeOneYear()
	}
}

// LitterSize draws the number of offspring of one successful birth. The two
// thresholds are independent: below TripletProbability is 3, otherwise below
// TwinProbability is 2, otherwise 1. With triplet 0.05 and twin 0.20 the twin
// rate is 15%, not 20%.
func LitterSize(rng entropy.Source, cfg *config.Config) int {
	r := rng.Float64()
	switch {
	case r < cfg.TripletProbability:
		return 3
	case r < cfg.TwinProbability:
		return 2
	default:
		return 1
	}
}

// processBirths runs the human and animal passes and returns the newborns.
// Nothing is added to pop here, so neither pass sees this tick's newborns.
func (e *Engine) processBirths(pop *agents.Population) ([]agents.Being, error) {
	humans, err := e.humanBirths(pop)
	if err != nil {
		return nil, err
	}
	animals, err := e.animalBirths(pop)
	if err != nil {
		return nil, err
	}
	return append(humans, animals...), nil
}

// checkBirthNames fails when a birth this tick could need a name from an
// empty pool. It runs before aging, so ages are taken one year ahead, and it
// ignores marital status because marriages happen earlier in the tick.
func (e *Engine) checkBirthNames(pop *agents.Population) error {
	if e.cfg.BirthAnnualProbability > 0 {
		var mother, father bool
		for _, h := range pop.Humans() {
			if !h.Alive {
				continue
			}
			minAge, maxAge := h.ReproductionWindow(e.cfg)
			if h.Age+1 < minAge || h.Age+1 > maxAge {
				continue
			}
			if h.Gender == agents.GenderFemale {
				mother = true
			} else {
				father = true
			}
		}
		if mother && father {
			if err := e.spawner.CheckHumanPools(); err != nil {
				return err
			}
		}
	}

	if e.cfg.AnimalBreedAnnualProbability > 0 {
		var order []string
		breeders := make(map[string][2]bool)
		for _, a := range pop.Animals() {
			if !a.Alive {
				continue
			}
			minAge, maxAge := a.ReproductionWindow(e.cfg)
			if a.Age+1 < minAge || a.Age+1 > maxAge {
				continue
			}
			b, seen := breeders[a.Species]
			if !seen {
				order = append(order, a.Species)
			}
			b[a.Gender] = true
			breeders[a.Species] = b
		}
		for _, sp := range order {
			if b := breeders[sp]; b[agents.GenderMale] && b[agents.GenderFemale] {
				if err := e.spawner.CheckAnimalPool(sp); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type couple struct {
	mother, father agents.AgentID
}

// humanBirths gives each eligible married couple one chance per tick.
func (e *Engine) humanBirths(pop *agents.Population) ([]agents.Being, error) {
	var mothers []*agents.Human
	for _, h := range pop.Humans() {
		if h.Gender == agents.GenderFemale && h.CanReproduce(e.cfg) {
			mothers = append(mothers, h)
		}
	}

	var babies []agents.Being
	seen := make(map[couple]bool)
	for _, mother := range mothers {
		if mother.SpouseID == nil {
			continue
		}
		father := pop.Human(*mother.SpouseID)
		if father == nil || !father.Alive || !father.CanReproduce(e.cfg) {
			continue
		}

		key := couple{mother: mother.ID, father: father.ID}
		if seen[key] {
			continue
		}
		seen[key] = true

		if !entropy.Chance(e.rng, e.cfg.BirthAnnualProbability) {
			continue
		}

		n := LitterSize(e.rng, e.cfg)
		for i := 0; i < n; i++ {
			baby, err := e.spawner.SpawnHumanChild(mother.ID, father.ID)
			if err != nil {
				return nil, err
			}
			babies = append(babies, baby)
		}
	}
	return babies, nil
}

// animalBirths pairs each eligible female with the first eligible male of
// her species. Males are not exclusive: one male may sire several litters in
// the same tick.
func (e *Engine) animalBirths(pop *agents.Population) ([]agents.Being, error) {
	var females, males []*agents.Animal
	for _, a := range pop.Animals() {
		if !a.CanReproduce(e.cfg) {
			continue
		}
		if a.Gender == agents.GenderFemale {
			females = append(females, a)
		} else {
			males = append(males, a)
		}
	}

	var babies []agents.Being
	for _, female := range females {
		var sire *agents.Animal
		for _, m := range males {
			if m.Species == female.Species {
				sire = m
				break
			}
		}
		if sire == nil {
			continue
		}

		if !entropy.Chance(e.rng, e.cfg.AnimalBreedAnnualProbability) {
			continue
		}

		n := LitterSize(e.rng, e.cfg)
		for i := 0; i < n; i++ {
			baby, err := e.spawner.SpawnAnimalChild(female.ID, sire.ID, female.Species)
			if err != nil {
				return nil, err
			}
			babies = append(babies, baby)
		}
	}
	return babies, nil
}
