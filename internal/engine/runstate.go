package engine

import (
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/statekit"
)

// RunState is the controller's externally visible state.
type RunState string

const (
	StateIdle      RunState = "idle"
	StatePaused    RunState = "paused"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
)

// Statechart events.
const (
	evReady   = "READY"
	evStart   = "START"
	evPause   = "PAUSE"
	evExtinct = "EXTINCT"
)

// runTransitions mirrors the statechart below. Events missing from it are
// never sent, so the interpreter only ever sees legal transitions.
var runTransitions = map[RunState]map[statekit.EventType]RunState{
	StateIdle:    {evReady: StatePaused},
	StatePaused:  {evStart: StateRunning, evExtinct: StateCompleted},
	StateRunning: {evPause: StatePaused, evExtinct: StateCompleted},
}

// runContext is carried through the statechart.
type runContext struct {
	Transitions int
	LastEvent   statekit.EventType
}

func recordTransition(ctx **runContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).Transitions++
	(*ctx).LastEvent = event.Type
}

func logCompletion(ctx **runContext, event statekit.Event) {
	slog.Info("run completed", "event", string(event.Type))
}

func newRunMachineConfig() (*statekit.MachineConfig[*runContext], error) {
	idle := statekit.StateID(StateIdle)
	paused := statekit.StateID(StatePaused)
	running := statekit.StateID(StateRunning)
	completed := statekit.StateID(StateCompleted)

	return statekit.NewMachine[*runContext]("controller").
		WithInitial(idle).
		WithContext(&runContext{}).
		WithAction("recordTransition", recordTransition).
		WithAction("logCompletion", logCompletion).
		State(idle).
			On(evReady).Target(paused).Do("recordTransition").
			Done().
		State(paused).
			On(evStart).Target(running).Do("recordTransition").
			On(evExtinct).Target(completed).Do("recordTransition").
			Done().
		State(running).
			On(evPause).Target(paused).Do("recordTransition").
			On(evExtinct).Target(completed).Do("recordTransition").
			Done().
		State(completed).
			Final().
			OnEntry("logCompletion").
			Done().
		Build()
}

// runMachine wraps a statekit interpreter for one run. Reset discards it and
// builds a fresh one.
type runMachine struct {
	interp *statekit.Interpreter[*runContext]
	ctx    *runContext
}

// newRunMachine returns a started machine already moved out of Idle.
func newRunMachine() (*runMachine, error) {
	cfg, err := newRunMachineConfig()
	if err != nil {
		return nil, fmt.Errorf("build run state machine: %w", err)
	}
	ctx := &runContext{}
	interp := statekit.NewInterpreter(cfg)
	interp.UpdateContext(func(c **runContext) {
		*c = ctx
	})
	interp.Start()

	m := &runMachine{interp: interp, ctx: ctx}
	if !m.fire(evReady) {
		return nil, fmt.Errorf("run state machine stuck in %s", m.state())
	}
	return m, nil
}

func (m *runMachine) state() RunState {
	return RunState(m.interp.State().Value)
}

// fire sends ev if it is legal in the current state and reports whether the
// machine reached the expected state.
func (m *runMachine) fire(ev statekit.EventType) bool {
	next, ok := runTransitions[m.state()][ev]
	if !ok {
		return false
	}
	m.interp.Send(statekit.Event{Type: ev})
	return m.state() == next
}

// can reports whether ev is legal in the current state.
func (m *runMachine) can(ev statekit.EventType) bool {
	_, ok := runTransitions[m.state()][ev]
	return ok
}

// done reports whether the run reached its final state.
func (m *runMachine) done() bool {
	return m.interp.Done()
}
