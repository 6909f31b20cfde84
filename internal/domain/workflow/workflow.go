// Package workflow is the submission state machine shared by the submit and
// revert paths.
package workflow

import (
	"fmt"
	"sync"
)

// State is one stage of the submission lifecycle.
type State string

const (
	StateEditable   State = "editable"
	StateConfirming State = "confirming"
	StateSubmitting State = "submitting"
	StateLocked     State = "locked"
	StateReverting  State = "reverting"
)

// Event drives a transition.
type Event string

const (
	EventSubmitRequested Event = "submit_requested"
	EventConfirmed       Event = "confirmed"
	EventCancelled       Event = "cancelled"
	EventSubmitSucceeded Event = "submit_succeeded"
	EventSubmitFailed    Event = "submit_failed"
	EventRevertRequested Event = "revert_requested"
	EventRevertSucceeded Event = "revert_succeeded"
	EventRevertFailed    Event = "revert_failed"
	// EventSynced forces the state reported by the store on load.
	EventSynced          Event = "synced"
)

type edge struct {
	from  State
	event Event
}

var transitions = map[edge]State{
	{StateEditable, EventSubmitRequested}:   StateConfirming,
	{StateConfirming, EventConfirmed}:       StateSubmitting,
	{StateConfirming, EventCancelled}:       StateEditable,
	{StateSubmitting, EventSubmitSucceeded}: StateLocked,
	{StateSubmitting, EventSubmitFailed}:    StateEditable,
	{StateLocked, EventRevertRequested}:     StateReverting,
	{StateReverting, EventCancelled}:        StateLocked,
	{StateReverting, EventRevertSucceeded}:  StateEditable,
	{StateReverting, EventRevertFailed}:     StateLocked,
}

// Busy reports whether s is an in-flight stage that blocks edits and a
// second submit or revert.
func (s State) Busy() bool {
	return s == StateConfirming || s == StateSubmitting || s == StateReverting
}

// Machine holds the current state and the last surfaced error.
type Machine struct {
	mu      sync.RWMutex
	state   State
	lastErr error
}

// New returns a machine in StateEditable.
func New() *Machine {
	return &Machine{state: StateEditable}
}

// Fire applies ev. Failure events record err as the last error; every other
// successful transition clears it.
func (m *Machine) Fire(ev Event, err error) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[edge{m.state, ev}]
	if !ok {
		return m.state, fmt.Errorf("%s on %s: %w", ev, m.state, ErrInvalidTransition)
	}
	m.state = next
	switch ev {
	case EventSubmitFailed, EventRevertFailed:
		m.lastErr = err
	default:
		m.lastErr = nil
	}
	return next, nil
}

// Sync overwrites the state with what the store reports. Only Editable and
// Locked are accepted and an in-flight operation is never interrupted.
func (m *Machine) Sync(locked bool) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Busy() {
		return m.state, fmt.Errorf("%s on %s: %w", EventSynced, m.state, ErrInvalidTransition)
	}
	if locked {
		m.state = StateLocked
	} else {
		m.state = StateEditable
	}
	m.lastErr = nil
	return m.state, nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the error recorded by the last failed operation, if any.
func (m *Machine) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
