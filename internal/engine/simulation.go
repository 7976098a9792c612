// Package engine runs the yearly population transition pipeline and the
// controller that drives it on demand or on a timer.
package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/lifesim/internal/agents"
	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/entropy"
)

// YearResult records one tick. It is never modified after it is produced.
type YearResult struct {
	Year int `json:"year"`

	TotalPopulation int            `json:"total_population"`
	AliveHumans     int            `json:"alive_humans"`
	AliveAnimals    int            `json:"alive_animals"`
	AliveBySpecies  map[string]int `json:"alive_by_species,omitempty"`

	// Marital breakdown of living humans. Single = AliveHumans - Married - Widowed.
	Married int `json:"married"`
	Widowed int `json:"widowed"`
	Single  int `json:"single"`

	Marriages int `json:"marriages"`
	Births    int `json:"births"`
	Deaths    int `json:"deaths"`
	Accidents int `json:"accidents"`

	EventLog []string `json:"event_log"`
}

// Clone returns a deep copy.
func (r YearResult) Clone() YearResult {
	out := r
	out.EventLog = slices.Clone(r.EventLog)
	if r.AliveBySpecies != nil {
		out.AliveBySpecies = make(map[string]int, len(r.AliveBySpecies))
		for k, v := range r.AliveBySpecies {
			out.AliveBySpecies[k] = v
		}
	}
	return out
}

// logf appends a narrative event prefixed with the year.
func (r *YearResult) logf(format string, args ...any) {
	r.EventLog = append(r.EventLog, fmt.Sprintf("%d: ", r.Year)+fmt.Sprintf(format, args...))
}

// Census returns a YearResult holding only the population counts for year.
// It is used for the initial history entry.
func Census(pop *agents.Population, year int) YearResult {
	r := YearResult{Year: year, EventLog: []string{}}
	r.takeCensus(pop)
	return r
}

func (r *YearResult) takeCensus(pop *agents.Population) {
	r.TotalPopulation, r.AliveHumans, r.AliveAnimals = 0, 0, 0
	r.Married, r.Widowed = 0, 0
	r.AliveBySpecies = nil

	for _, b := range pop.All() {
		if !b.Core().Alive {
			continue
		}
		r.TotalPopulation++
		switch v := b.(type) {
		case *agents.Human:
			r.AliveHumans++
			switch v.MaritalStatus {
			case agents.StatusMarried:
				r.Married++
			case agents.StatusWidowed:
				r.Widowed++
			}
		case *agents.Animal:
			r.AliveAnimals++
			if r.AliveBySpecies == nil {
				r.AliveBySpecies = make(map[string]int)
			}
			r.AliveBySpecies[v.Species]++
		}
	}
	r.Single = r.AliveHumans - r.Married - r.Widowed
}

// Engine composes the yearly steps. It owns the spawner, and with it the id
// cursor, for the population it created.
type Engine struct {
	cfg     *config.Config
	rng     entropy.Source
	spawner *agents.Spawner
}

// NewEngine creates an engine. The configuration is treated as read-only and
// rng is shared by every stochastic step.
func NewEngine(cfg *config.Config, rng entropy.Source) *Engine {
	return &Engine{
		cfg:     cfg,
		rng:     rng,
		spawner: agents.NewSpawner(cfg, rng),
	}
}

// Spawner returns the engine's spawner.
func (e *Engine) Spawner() *agents.Spawner {
	return e.spawner
}

// CreateInitialPopulation creates the starting population. It fails with a
// *config.PoolError when a required name pool is empty.
func (e *Engine) CreateInitialPopulation(humanCount, animalCount int) (*agents.Population, error) {
	pop, err := e.spawner.SpawnPopulation(humanCount, animalCount)
	if err != nil {
		return nil, fmt.Errorf("create initial population: %w", err)
	}
	return pop, nil
}

// AdvanceOneYear runs one tick over pop in the fixed order aging, marriage,
// birth, accident, natural death, statistics. pop is mutated in place.
// Newborns are appended after both birth passes and before the mortality
// passes.
//
// Name pools a birth could draw from are checked before anything changes,
// so a *config.PoolError leaves pop untouched.
func (e *Engine) AdvanceOneYear(pop *agents.Population, year int) (YearResult, error) {
	res := YearResult{Year: year, EventLog: []string{}}

	// Newborn ids must not collide with agents created elsewhere.
	e.spawner.SetNextID(pop.MaxID() + 1)
	if err := e.checkBirthNames(pop); err != nil {
		return YearResult{}, fmt.Errorf("year %d births: %w", year, err)
	}

	ageAgents(pop)

	e.processMarriages(pop, &res)

	newborns, err := e.processBirths(pop)
	if err != nil {
		return YearResult{}, fmt.Errorf("year %d births: %w", year, err)
	}
	pop.Append(newborns...)
	for _, b := range newborns {
		c := b.Core()
		res.logf("#%d %s (%s) was born", c.ID, c.Name, b.Kind())
	}
	res.Births = len(newborns)

	e.processAccidents(pop, &res)
	e.processNaturalDeaths(pop, &res)

	res.takeCensus(pop)

	slog.Debug("year processed",
		"year", year,
		"alive", res.TotalPopulation,
		"marriages", res.Marriages,
		"births", res.Births,
		"deaths", res.Deaths,
		"accidents", res.Accidents,
	)
	return res, nil
}
