// Package agents provides the agent data model: the Human and Animal
// variants, their mortality and reproduction capabilities, the population
// collection, and the spawner that allocates ids and names.
package agents

import "github.com/talgya/lifesim/internal/config"

// AgentID is a unique identifier for an agent. Ids are never reused.
type AgentID uint64

// Gender of an agent.
type Gender uint8

const (
	GenderMale   Gender = 0
	GenderFemale Gender = 1
)

func (g Gender) String() string {
	if g == GenderFemale {
		return "female"
	}
	return "male"
}

// MaritalStatus applies to humans only.
type MaritalStatus uint8

const (
	StatusSingle  MaritalStatus = 0
	StatusMarried MaritalStatus = 1
	StatusWidowed MaritalStatus = 2
)

func (m MaritalStatus) String() string {
	switch m {
	case StatusMarried:
		return "married"
	case StatusWidowed:
		return "widowed"
	default:
		return "single"
	}
}

// Kind tags the closed set of agent variants.
type Kind uint8

const (
	KindHuman  Kind = 0
	KindAnimal Kind = 1
)

func (k Kind) String() string {
	if k == KindAnimal {
		return "Animal"
	}
	return "Human"
}

// Mortal is implemented by agents that can die and have an annual
// natural-death probability.
type Mortal interface {
	Die()
	DeathProbability(cfg *config.Config) float64
}

// Reproductive is implemented by agents that can produce offspring.
type Reproductive interface {
	// ReproductionWindow returns the inclusive age window for breeding.
	ReproductionWindow(cfg *config.Config) (minAge, maxAge int)
	CanReproduce(cfg *config.Config) bool
}

// Being is a Human or an Animal. Only types in this package implement it.
type Being interface {
	Core() *Base
	Kind() Kind
	Mortal
	Reproductive
}

// Base holds the attributes shared by every variant. Parent links are ids,
// never pointers, so the agent graph cannot form ownership cycles.
type Base struct {
	ID       AgentID  `json:"id"`
	Name     string   `json:"name"`
	Age      int      `json:"age"`
	Alive    bool     `json:"alive"`
	Gender   Gender   `json:"gender"`
	MotherID *AgentID `json:"mother_id,omitempty"`
	FatherID *AgentID `json:"father_id,omitempty"`
}

// Core returns the shared attributes.
func (b *Base) Core() *Base {
	return b
}

// AgeOneYear increments the age of a living agent. Dead agents keep the age
// they died at.
func (b *Base) AgeOneYear() {
	if b.Alive {
		b.Age++
	}
}

// Die marks the agent dead. Death is terminal.
func (b *Base) Die() {
	b.Alive = false
}

func (b *Base) inWindow(minAge, maxAge int) bool {
	return b.Alive && b.Age >= minAge && b.Age <= maxAge
}

// Human is a person. SpouseID is a mutual back-reference by id, valid only
// while both partners are alive and married to each other.
type Human struct {
	Base
	MaritalStatus MaritalStatus `json:"marital_status"`
	SpouseID      *AgentID      `json:"spouse_id,omitempty"`
}

// NewHuman creates a living, single human.
func NewHuman(id AgentID, name string, age int, gender Gender) *Human {
	return &Human{
		Base: Base{
			ID:     id,
			Name:   name,
			Age:    age,
			Alive:  true,
			Gender: gender,
		},
		MaritalStatus: StatusSingle,
	}
}

// Kind implements Being.
func (h *Human) Kind() Kind { return KindHuman }

// DeathProbability looks up the human death bands, falling back to the
// configured default when no band covers the age.
func (h *Human) DeathProbability(cfg *config.Config) float64 {
	return config.BandProbability(cfg.DeathBands, h.Age, cfg.DefaultDeathProbability)
}

// ReproductionWindow depends on gender: mothers and fathers have separate
// configured windows.
func (h *Human) ReproductionWindow(cfg *config.Config) (int, int) {
	if h.Gender == GenderFemale {
		return cfg.BirthMotherMinAge, cfg.BirthMotherMaxAge
	}
	return cfg.BirthFatherMinAge, cfg.BirthFatherMaxAge
}

// CanReproduce requires the human to be alive, married, and inside the
// gender-specific window.
func (h *Human) CanReproduce(cfg *config.Config) bool {
	if h.MaritalStatus != StatusMarried {
		return false
	}
	minAge, maxAge := h.ReproductionWindow(cfg)
	return h.inWindow(minAge, maxAge)
}

// Marry links two humans as spouses.
func Marry(a, b *Human) {
	aid, bid := a.ID, b.ID
	a.MaritalStatus = StatusMarried
	a.SpouseID = &bid
	b.MaritalStatus = StatusMarried
	b.SpouseID = &aid
}

// Animal is a non-human agent of a given species.
type Animal struct {
	Base
	Species string `json:"species"`
}

// NewAnimal creates a living animal.
func NewAnimal(id AgentID, name string, age int, gender Gender, species string) *Animal {
	return &Animal{
		Base: Base{
			ID:     id,
			Name:   name,
			Age:    age,
			Alive:  true,
			Gender: gender,
		},
		Species: species,
	}
}

// Kind implements Being.
func (a *Animal) Kind() Kind { return KindAnimal }

// DeathProbability uses the species-specific bands when configured,
// otherwise the generic animal bands. An age outside every band is treated
// as the oldest band.
func (a *Animal) DeathProbability(cfg *config.Config) float64 {
	bands := cfg.AnimalDeathBands
	if sb, ok := cfg.SpeciesDeathBands[a.Species]; ok && len(sb) > 0 {
		bands = sb
	}
	if len(bands) == 0 {
		return 0
	}
	return config.BandProbability(bands, a.Age, bands[len(bands)-1].Probability)
}

// ReproductionWindow is the same for every species.
func (a *Animal) ReproductionWindow(cfg *config.Config) (int, int) {
	return cfg.AnimalBreedMinAge, cfg.AnimalBreedMaxAge
}

// CanReproduce requires the animal to be alive and inside the window.
func (a *Animal) CanReproduce(cfg *config.Config) bool {
	minAge, maxAge := a.ReproductionWindow(cfg)
	return a.inWindow(minAge, maxAge)
}
