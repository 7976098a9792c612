package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/lifesim/internal/agents"
	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/entropy"
)

// DefaultInterval is the autoplay period used when none is configured.
const DefaultInterval = 2 * time.Second

// Options configure a Controller.
type Options struct {
	Interval    time.Duration
	HumanCount  int
	AnimalCount int
	StartYear   int

	// NewSource returns the random source for a run. It is called on every
	// Reset. When nil, a seeded source is used if Seed is non-zero and a
	// crypto-backed one otherwise.
	NewSource func() entropy.Source
	Seed      int64
}

// OptionsFromConfig derives controller options from the runtime section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	rt := cfg.Runtime
	return Options{
		Interval:    rt.Interval,
		HumanCount:  rt.HumanCount,
		AnimalCount: rt.AnimalCount,
		StartYear:   rt.StartYear,
		Seed:        rt.Seed,
	}
}

// Snapshot is a consistent copy of the controller's state.
type Snapshot struct {
	RunID       string       `json:"run_id"`
	StartYear   int          `json:"start_year"`
	CurrentYear int          `json:"current_year"`
	IsRunning   bool         `json:"is_running"`
	State       RunState     `json:"state"`
	History     []YearResult `json:"history"`
}

// Latest returns the most recent history entry.
func (s Snapshot) Latest() (YearResult, bool) {
	if len(s.History) == 0 {
		return YearResult{}, false
	}
	return s.History[len(s.History)-1], true
}

// RunExport is the archive form of one run.
type RunExport struct {
	RunID         string       `json:"run_id"`
	StartYear     int          `json:"start_year"`
	EndYear       int          `json:"end_year"`
	GeneratedAt   time.Time    `json:"generated_at"`
	YearlyResults []YearResult `json:"yearly_results"`
}

// Controller owns one live run and serialises every operation on it.
// Autoplay ticks run on a background goroutine and take the same lock as
// Start, Pause, Step and Reset.
type Controller struct {
	cfg  *config.Config
	opts Options

	mu          sync.Mutex
	engine      *Engine
	pop         *agents.Population
	history     []YearResult
	startYear   int
	currentYear int
	runID       string
	machine     *runMachine
	stop        chan struct{} // non-nil while autoplay is active

	subMu   sync.Mutex
	subs    map[int]chan Notification
	nextSub int
}

// NewController creates a paused controller with a fresh run built from the
// default counts in opts.
func NewController(cfg *config.Config, opts Options) (*Controller, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	c := &Controller{
		cfg:  cfg,
		opts: opts,
		subs: make(map[int]chan Notification),
	}
	if err := c.resetLocked(opts.HumanCount, opts.AnimalCount, opts.StartYear); err != nil {
		return nil, err
	}
	return c, nil
}

// Defaults returns the counts and start year used by ResetDefaults.
func (c *Controller) Defaults() (humans, animals, startYear int) {
	return c.opts.HumanCount, c.opts.AnimalCount, c.opts.StartYear
}

// Interval returns the autoplay period.
func (c *Controller) Interval() time.Duration {
	return c.opts.Interval
}

// Start begins autoplay. It does nothing unless the controller is paused.
func (c *Controller) Start() {
	c.mu.Lock()
	if !c.machine.can(evStart) {
		c.mu.Unlock()
		return
	}
	c.machine.fire(evStart)
	stop := make(chan struct{})
	c.stop = stop
	go c.autoplay(stop, c.opts.Interval)

	slog.Info("autoplay started", "run", c.runID, "year", c.currentYear, "interval", c.opts.Interval)
	c.unlockAndDispatch([]Notification{c.stateNoteLocked()})
}

// Pause stops autoplay. Pausing a controller that is not running emits
// nothing.
func (c *Controller) Pause() {
	c.mu.Lock()
	c.unlockAndDispatch(c.pauseLocked())
}

// Step pauses autoplay if needed and advances exactly one year. It returns
// nil without error when the run is completed or the population was already
// extinct.
func (c *Controller) Step() (*YearResult, error) {
	c.mu.Lock()
	if c.machine.done() {
		c.mu.Unlock()
		return nil, nil
	}
	notes := c.pauseLocked()
	res, more, err := c.tickLocked()
	notes = append(notes, more...)
	c.unlockAndDispatch(notes)
	return res, err
}

// ResetDefaults resets using the counts and start year from Options.
func (c *Controller) ResetDefaults() error {
	return c.Reset(c.opts.HumanCount, c.opts.AnimalCount, c.opts.StartYear)
}

// Reset stops autoplay and discards the current run in favour of a fresh
// population. A new run id is assigned. On error the previous run is kept,
// paused.
func (c *Controller) Reset(humanCount, animalCount, startYear int) error {
	if humanCount < 0 || animalCount < 0 {
		return fmt.Errorf("reset: negative population count (%d humans, %d animals)", humanCount, animalCount)
	}
	c.mu.Lock()
	c.stopAutoplayLocked()
	if err := c.resetLocked(humanCount, animalCount, startYear); err != nil {
		var notes []Notification
		if c.machine.can(evPause) {
			c.machine.fire(evPause)
			notes = append(notes, c.stateNoteLocked())
		}
		c.unlockAndDispatch(notes)
		return err
	}
	c.unlockAndDispatch([]Notification{c.stateNoteLocked()})
	return nil
}

// GetSnapshot returns a deep copy of the current state.
func (c *Controller) GetSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current run state.
func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.state()
}

// Export returns the current run in archive form.
func (c *Controller) Export() RunExport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RunExport{
		RunID:         c.runID,
		StartYear:     c.startYear,
		EndYear:       c.currentYear,
		GeneratedAt:   time.Now().UTC(),
		YearlyResults: cloneHistory(c.history),
	}
}

// Close stops autoplay and closes every subscriber channel.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopAutoplayLocked()
	c.mu.Unlock()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// autoplay ticks immediately and then once per interval until stop is
// closed.
func (c *Controller) autoplay(stop <-chan struct{}, interval time.Duration) {
	c.onTimer(stop)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.onTimer(stop)
		}
	}
}

func (c *Controller) onTimer(stop <-chan struct{}) {
	c.mu.Lock()
	// Pause or Reset may have won the lock after this tick fired.
	if c.stop == nil || c.stop != stop || c.machine.state() != StateRunning {
		c.mu.Unlock()
		return
	}
	_, notes, err := c.tickLocked()
	if err != nil {
		slog.Error("tick failed, pausing autoplay", "run", c.runID, "year", c.currentYear+1, "error", err)
		notes = append(notes, c.pauseLocked()...)
	}
	c.unlockAndDispatch(notes)
}

// tickLocked advances one year. When nobody is alive it completes the run
// instead and returns a nil result.
func (c *Controller) tickLocked() (*YearResult, []Notification, error) {
	if c.pop.AliveCount() == 0 {
		return nil, c.completeLocked(), nil
	}

	year := c.currentYear + 1
	res, err := c.engine.AdvanceOneYear(c.pop, year)
	if err != nil {
		return nil, nil, err
	}
	c.currentYear = year
	c.history = append(c.history, res)

	slog.Info("year report",
		"run", c.runID,
		"year", year,
		"alive", res.TotalPopulation,
		"humans", res.AliveHumans,
		"animals", res.AliveAnimals,
		"births", res.Births,
		"deaths", res.Deaths,
		"marriages", res.Marriages,
	)

	var notes []Notification
	if res.TotalPopulation == 0 {
		notes = append(notes, c.completeLocked()...)
	}
	notes = append(notes, Notification{
		Type: NotifyYearAdvanced,
		Update: &YearUpdate{
			Result:      res.Clone(),
			IsRunning:   c.machine.state() == StateRunning,
			CurrentYear: c.currentYear,
		},
	})

	out := res.Clone()
	return &out, notes, nil
}

func (c *Controller) pauseLocked() []Notification {
	if !c.machine.can(evPause) {
		return nil
	}
	c.stopAutoplayLocked()
	c.machine.fire(evPause)
	slog.Info("autoplay paused", "run", c.runID, "year", c.currentYear)
	return []Notification{c.stateNoteLocked()}
}

func (c *Controller) completeLocked() []Notification {
	if !c.machine.can(evExtinct) {
		return nil
	}
	c.stopAutoplayLocked()
	c.machine.fire(evExtinct)
	slog.Info("population extinct", "run", c.runID, "year", c.currentYear)
	return []Notification{c.stateNoteLocked()}
}

func (c *Controller) stopAutoplayLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// resetLocked builds the new run before touching any state, so a failure
// leaves the current run intact.
func (c *Controller) resetLocked(humanCount, animalCount, startYear int) error {
	eng := NewEngine(c.cfg, c.newSource())
	pop, err := eng.CreateInitialPopulation(humanCount, animalCount)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	machine, err := newRunMachine()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	c.engine = eng
	c.pop = pop
	c.startYear = startYear
	c.currentYear = startYear
	c.history = []YearResult{Census(pop, startYear)}
	c.runID = uuid.NewString()
	c.machine = machine

	slog.Info("run reset", "run", c.runID, "humans", humanCount, "animals", animalCount, "start_year", startYear)
	return nil
}

func (c *Controller) newSource() entropy.Source {
	if c.opts.NewSource != nil {
		return c.opts.NewSource()
	}
	return entropy.ForSeed(c.opts.Seed)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		RunID:       c.runID,
		StartYear:   c.startYear,
		CurrentYear: c.currentYear,
		IsRunning:   c.machine.state() == StateRunning,
		State:       c.machine.state(),
		History:     cloneHistory(c.history),
	}
}

func (c *Controller) stateNoteLocked() Notification {
	snap := c.snapshotLocked()
	return Notification{Type: NotifyStateChanged, Snapshot: &snap}
}

func cloneHistory(h []YearResult) []YearResult {
	out := make([]YearResult, len(h))
	for i, r := range h {
		out[i] = r.Clone()
	}
	return out
}
