// Package config holds the model parameters for the population simulation
// (probability bands, age windows, name pools) and the runtime settings that
// drive it. Configuration is loaded once and treated as read-only afterwards.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AgeBand maps an inclusive age range to a probability.
type AgeBand struct {
	MinAge      int     `json:"min_age" yaml:"min_age"`
	MaxAge      int     `json:"max_age" yaml:"max_age"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Contains reports whether age falls inside the band.
func (b AgeBand) Contains(age int) bool {
	return age >= b.MinAge && age <= b.MaxAge
}

// BandProbability returns the probability of the first band containing age,
// or fallback when no band matches.
func BandProbability(bands []AgeBand, age int, fallback float64) float64 {
	for _, b := range bands {
		if b.Contains(age) {
			return b.Probability
		}
	}
	return fallback
}

// Config contains every model parameter consumed by the simulation engine.
type Config struct {
	// Names
	MaleNames            []string            `json:"male_names" yaml:"male_names"`
	FemaleNames          []string            `json:"female_names" yaml:"female_names"`
	AnimalNames          []string            `json:"animal_names" yaml:"animal_names"`
	AnimalNamesBySpecies map[string][]string `json:"animal_names_by_species" yaml:"animal_names_by_species"`

	// Species is the species pool used for the initial population when
	// AnimalNamesBySpecies is empty.
	Species []string `json:"species" yaml:"species"`

	// Marriage
	MarriageAgeBands        []AgeBand `json:"marriage_age_bands" yaml:"marriage_age_bands"`
	MarriageCandidateMinAge int       `json:"marriage_candidate_min_age" yaml:"marriage_candidate_min_age"`
	MarriageCandidateMaxAge int       `json:"marriage_candidate_max_age" yaml:"marriage_candidate_max_age"`
	MarriageMaxAgeGap       int       `json:"marriage_max_age_gap" yaml:"marriage_max_age_gap"`

	// Human births
	BirthAnnualProbability float64 `json:"birth_annual_probability" yaml:"birth_annual_probability"`
	BirthMotherMinAge      int     `json:"birth_mother_min_age" yaml:"birth_mother_min_age"`
	BirthMotherMaxAge      int     `json:"birth_mother_max_age" yaml:"birth_mother_max_age"`
	BirthFatherMinAge      int     `json:"birth_father_min_age" yaml:"birth_father_min_age"`
	BirthFatherMaxAge      int     `json:"birth_father_max_age" yaml:"birth_father_max_age"`

	// Litter size. These are independent thresholds, not cumulative ranges:
	// a draw below TripletProbability yields 3, else below TwinProbability 2.
	TwinProbability    float64 `json:"twin_probability" yaml:"twin_probability"`
	TripletProbability float64 `json:"triplet_probability" yaml:"triplet_probability"`

	// Animal births
	AnimalBreedAnnualProbability float64 `json:"animal_breed_annual_probability" yaml:"animal_breed_annual_probability"`
	AnimalBreedMinAge            int     `json:"animal_breed_min_age" yaml:"animal_breed_min_age"`
	AnimalBreedMaxAge            int     `json:"animal_breed_max_age" yaml:"animal_breed_max_age"`

	// Natural death
	DeathBands              []AgeBand            `json:"death_bands" yaml:"death_bands"`
	DefaultDeathProbability float64              `json:"default_death_probability" yaml:"default_death_probability"`
	AnimalDeathBands        []AgeBand            `json:"animal_death_bands" yaml:"animal_death_bands"`
	SpeciesDeathBands       map[string][]AgeBand `json:"species_death_bands,omitempty" yaml:"species_death_bands,omitempty"`

	// Accidents
	AccidentAnnualProbability   float64  `json:"accident_annual_probability" yaml:"accident_annual_probability"`
	AccidentFatalityProbability float64  `json:"accident_fatality_probability" yaml:"accident_fatality_probability"`
	AccidentTypes               []string `json:"accident_types" yaml:"accident_types"`

	// Initial population ages, half-open [min, max).
	InitialHumanMinAge  int `json:"initial_human_min_age" yaml:"initial_human_min_age"`
	InitialHumanMaxAge  int `json:"initial_human_max_age" yaml:"initial_human_max_age"`
	InitialAnimalMinAge int `json:"initial_animal_min_age" yaml:"initial_animal_min_age"`
	InitialAnimalMaxAge int `json:"initial_animal_max_age" yaml:"initial_animal_max_age"`

	// Runtime settings for the controller, CLI and dashboard.
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// RuntimeConfig controls how a simulation is run rather than what it models.
type RuntimeConfig struct {
	// Seed for the random source. Zero means an unseeded crypto source.
	Seed int64 `json:"seed" yaml:"seed"`

	// Interval between autoplay ticks.
	Interval time.Duration `json:"interval" yaml:"interval"`

	HumanCount  int `json:"human_count" yaml:"human_count"`
	AnimalCount int `json:"animal_count" yaml:"animal_count"`
	StartYear   int `json:"start_year" yaml:"start_year"`

	DBPath   string `json:"db_path" yaml:"db_path"`
	Port     int    `json:"port" yaml:"port"`
	AdminKey string `json:"admin_key,omitempty" yaml:"admin_key,omitempty"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Default returns a Config with the stock demographic model.
func Default() *Config {
	return &Config{
		MaleNames:   []string{"Ahmet", "Mehmet", "Ali", "Can", "Emre", "John", "Luca", "Noah", "Omar", "Kenji"},
		FemaleNames: []string{"Ayse", "Fatma", "Zeynep", "Elif", "Mary", "Sofia", "Emma", "Lena", "Yuki", "Amara"},
		AnimalNames: []string{"Pamuk", "Boncuk", "Karabas", "Minnos", "Tekir"},
		Species:     []string{"dog", "cat", "bird"},

		MarriageAgeBands: []AgeBand{
			{MinAge: 18, MaxAge: 24, Probability: 0.15},
			{MinAge: 25, MaxAge: 34, Probability: 0.30},
			{MinAge: 35, MaxAge: 49, Probability: 0.15},
			{MinAge: 50, MaxAge: 65, Probability: 0.05},
		},
		MarriageCandidateMinAge: 18,
		MarriageCandidateMaxAge: 65,
		MarriageMaxAgeGap:       25,

		BirthAnnualProbability: 0.50,
		BirthMotherMinAge:      18,
		BirthMotherMaxAge:      50,
		BirthFatherMinAge:      18,
		BirthFatherMaxAge:      70,
		TwinProbability:        0.20,
		TripletProbability:     0.05,

		AnimalBreedAnnualProbability: 0.5,
		AnimalBreedMinAge:            2,
		AnimalBreedMaxAge:            10,

		DeathBands: []AgeBand{
			{MinAge: 0, MaxAge: 4, Probability: 0.005},
			{MinAge: 5, MaxAge: 39, Probability: 0.001},
			{MinAge: 40, MaxAge: 59, Probability: 0.005},
			{MinAge: 60, MaxAge: 69, Probability: 0.02},
			{MinAge: 70, MaxAge: 79, Probability: 0.06},
			{MinAge: 80, MaxAge: 89, Probability: 0.15},
			{MinAge: 90, MaxAge: 200, Probability: 0.35},
		},
		DefaultDeathProbability: 0.001,
		AnimalDeathBands: []AgeBand{
			{MinAge: 0, MaxAge: 2, Probability: 0.01},
			{MinAge: 3, MaxAge: 6, Probability: 0.05},
			{MinAge: 7, MaxAge: 11, Probability: 0.15},
			{MinAge: 12, MaxAge: 1000, Probability: 0.30},
		},

		AccidentAnnualProbability:   0.01,
		AccidentFatalityProbability: 0.30,
		AccidentTypes:               []string{"traffic accident", "fall", "drowning", "fire"},

		InitialHumanMinAge:  18,
		InitialHumanMaxAge:  30,
		InitialAnimalMinAge: 1,
		InitialAnimalMaxAge: 5,

		Runtime: RuntimeConfig{
			Interval:    2 * time.Second,
			HumanCount:  100,
			AnimalCount: 20,
			StartYear:   2025,
			DBPath:      "data/lifesim.db",
			Port:        8080,
			LogLevel:    "info",
		},
	}
}

// Load loads configuration in order: defaults -> file (if path is non-empty)
// -> environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
// JSON files are accepted as well.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks probabilities, age windows and required name pools.
func (c *Config) Validate() error {
	probs := map[string]float64{
		"birth_annual_probability":        c.BirthAnnualProbability,
		"twin_probability":                c.TwinProbability,
		"triplet_probability":             c.TripletProbability,
		"animal_breed_annual_probability": c.AnimalBreedAnnualProbability,
		"default_death_probability":       c.DefaultDeathProbability,
		"accident_annual_probability":     c.AccidentAnnualProbability,
		"accident_fatality_probability":   c.AccidentFatalityProbability,
	}
	for name, p := range probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, p)
		}
	}

	windows := []struct {
		name     string
		min, max int
	}{
		{"marriage_candidate", c.MarriageCandidateMinAge, c.MarriageCandidateMaxAge},
		{"birth_mother", c.BirthMotherMinAge, c.BirthMotherMaxAge},
		{"birth_father", c.BirthFatherMinAge, c.BirthFatherMaxAge},
		{"animal_breed", c.AnimalBreedMinAge, c.AnimalBreedMaxAge},
		{"initial_human", c.InitialHumanMinAge, c.InitialHumanMaxAge - 1},
		{"initial_animal", c.InitialAnimalMinAge, c.InitialAnimalMaxAge - 1},
	}
	for _, w := range windows {
		if w.min < 0 || w.min > w.max {
			return fmt.Errorf("%s age window is invalid: [%d, %d]", w.name, w.min, w.max)
		}
	}

	if c.MarriageMaxAgeGap < 0 {
		return fmt.Errorf("marriage_max_age_gap must be non-negative, got %d", c.MarriageMaxAgeGap)
	}

	if err := validateBands("marriage_age_bands", c.MarriageAgeBands); err != nil {
		return err
	}
	if err := validateBands("death_bands", c.DeathBands); err != nil {
		return err
	}
	if err := validateBands("animal_death_bands", c.AnimalDeathBands); err != nil {
		return err
	}
	for species, bands := range c.SpeciesDeathBands {
		if err := validateBands("species_death_bands."+species, bands); err != nil {
			return err
		}
	}

	if len(c.MaleNames) == 0 {
		return &PoolError{Pool: "male_names"}
	}
	if len(c.FemaleNames) == 0 {
		return &PoolError{Pool: "female_names"}
	}

	if c.Runtime.Interval < 0 {
		return fmt.Errorf("runtime.interval must be non-negative, got %v", c.Runtime.Interval)
	}

	return nil
}

func validateBands(name string, bands []AgeBand) error {
	for i, b := range bands {
		if b.MinAge > b.MaxAge {
			return fmt.Errorf("%s[%d]: min_age %d > max_age %d", name, i, b.MinAge, b.MaxAge)
		}
		if b.Probability < 0 || b.Probability > 1 {
			return fmt.Errorf("%s[%d]: probability must be between 0 and 1, got %f", name, i, b.Probability)
		}
	}
	return nil
}
