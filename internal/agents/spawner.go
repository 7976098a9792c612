// Agent spawning: id allocation, name draws, the initial population and
// newborns.
package agents

import (
	"sort"

	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/entropy"
)

// Spawner creates agents. It owns the id cursor, so every agent created
// through one spawner gets a unique, monotonically increasing id.
type Spawner struct {
	cfg    *config.Config
	rng    entropy.Source
	nextID AgentID
}

// NewSpawner creates a spawner whose first id is 1.
func NewSpawner(cfg *config.Config, rng entropy.Source) *Spawner {
	return &Spawner{
		cfg:    cfg,
		rng:    rng,
		nextID: 1,
	}
}

// NextID returns the id the next spawned agent will receive.
func (s *Spawner) NextID() AgentID {
	return s.nextID
}

// SetNextID moves the id cursor forward to id. The cursor never moves
// backwards.
func (s *Spawner) SetNextID(id AgentID) {
	if id > s.nextID {
		s.nextID = id
	}
}

func (s *Spawner) allocate() AgentID {
	id := s.nextID
	s.nextID++
	return id
}

// RandomGender draws male or female with equal probability.
func (s *Spawner) RandomGender() Gender {
	if s.rng.Float64() < 0.5 {
		return GenderMale
	}
	return GenderFemale
}

// HumanName draws a name from the pool for the given gender.
func (s *Spawner) HumanName(g Gender) (string, error) {
	pool, names := "male_names", s.cfg.MaleNames
	if g == GenderFemale {
		pool, names = "female_names", s.cfg.FemaleNames
	}
	name, ok := entropy.Pick(s.rng, names)
	if !ok {
		return "", &config.PoolError{Pool: pool}
	}
	return name, nil
}

// CheckHumanPools reports a *config.PoolError when a newborn human could not
// be named. Newborn gender is random, so both pools are required.
func (s *Spawner) CheckHumanPools() error {
	if len(s.cfg.MaleNames) == 0 {
		return &config.PoolError{Pool: "male_names"}
	}
	if len(s.cfg.FemaleNames) == 0 {
		return &config.PoolError{Pool: "female_names"}
	}
	return nil
}

// CheckAnimalPool reports a *config.PoolError when an animal of species
// could not be named.
func (s *Spawner) CheckAnimalPool(species string) error {
	if len(s.cfg.AnimalNamesBySpecies[species]) == 0 && len(s.cfg.AnimalNames) == 0 {
		return &config.PoolError{Pool: "animal_names_by_species." + species}
	}
	return nil
}

// AnimalName draws from the species pool, falling back to the general
// animal pool.
func (s *Spawner) AnimalName(species string) (string, error) {
	if names := s.cfg.AnimalNamesBySpecies[species]; len(names) > 0 {
		name, _ := entropy.Pick(s.rng, names)
		return name, nil
	}
	name, ok := entropy.Pick(s.rng, s.cfg.AnimalNames)
	if !ok {
		return "", &config.PoolError{Pool: "animal_names_by_species." + species}
	}
	return name, nil
}

// SpeciesPool returns the species used for the initial population: the
// sorted keys of the per-species name pools, or the configured species list.
func (s *Spawner) SpeciesPool() []string {
	if len(s.cfg.AnimalNamesBySpecies) > 0 {
		species := make([]string, 0, len(s.cfg.AnimalNamesBySpecies))
		for sp := range s.cfg.AnimalNamesBySpecies {
			species = append(species, sp)
		}
		sort.Strings(species)
		return species
	}
	return s.cfg.Species
}

// SpawnHuman creates a human of the given age and gender with a drawn name.
func (s *Spawner) SpawnHuman(age int, g Gender) (*Human, error) {
	name, err := s.HumanName(g)
	if err != nil {
		return nil, err
	}
	return NewHuman(s.allocate(), name, age, g), nil
}

// SpawnAnimal creates an animal of the given age, gender and species.
func (s *Spawner) SpawnAnimal(age int, g Gender, species string) (*Animal, error) {
	name, err := s.AnimalName(species)
	if err != nil {
		return nil, err
	}
	return NewAnimal(s.allocate(), name, age, g, species), nil
}

// SpawnHumanChild creates a newborn human: age 0, single, random gender.
func (s *Spawner) SpawnHumanChild(motherID, fatherID AgentID) (*Human, error) {
	child, err := s.SpawnHuman(0, s.RandomGender())
	if err != nil {
		return nil, err
	}
	child.MotherID = &motherID
	child.FatherID = &fatherID
	return child, nil
}

// SpawnAnimalChild creates a newborn of the mother's species.
func (s *Spawner) SpawnAnimalChild(motherID, fatherID AgentID, species string) (*Animal, error) {
	child, err := s.SpawnAnimal(0, s.RandomGender(), species)
	if err != nil {
		return nil, err
	}
	child.MotherID = &motherID
	child.FatherID = &fatherID
	return child, nil
}

// SpawnPopulation creates the initial population: humanCount/2 men, the rest
// women, then animalCount animals of random gender and species.
func (s *Spawner) SpawnPopulation(humanCount, animalCount int) (*Population, error) {
	pop := NewPopulation()

	maleCount := humanCount / 2
	for i := 0; i < humanCount; i++ {
		g := GenderMale
		if i >= maleCount {
			g = GenderFemale
		}
		name, err := s.HumanName(g)
		if err != nil {
			return nil, err
		}
		age := s.ageIn(s.cfg.InitialHumanMinAge, s.cfg.InitialHumanMaxAge)
		pop.Append(NewHuman(s.allocate(), name, age, g))
	}

	if animalCount > 0 {
		species := s.SpeciesPool()
		if len(species) == 0 {
			return nil, &config.PoolError{Pool: "species"}
		}
		for i := 0; i < animalCount; i++ {
			g := s.RandomGender()
			sp, _ := entropy.Pick(s.rng, species)
			name, err := s.AnimalName(sp)
			if err != nil {
				return nil, err
			}
			age := s.ageIn(s.cfg.InitialAnimalMinAge, s.cfg.InitialAnimalMaxAge)
			pop.Append(NewAnimal(s.allocate(), name, age, g, sp))
		}
	}

	return pop, nil
}

// ageIn draws an age in [minAge, maxAge).
func (s *Spawner) ageIn(minAge, maxAge int) int {
	if maxAge <= minAge {
		return minAge
	}
	return minAge + s.rng.Intn(maxAge-minAge)
}
