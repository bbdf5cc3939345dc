package harvest

import (
	"fmt"
	"sync"
)

// State of the exhaustive-fetch driver.
type State int

const (
	StateReady State = iota
	StateFetching
	StateAccumulating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateFetching:
		return "FETCHING"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// validTransitions encodes the driver lifecycle:
// READY -> FETCHING -> (ACCUMULATING -> FETCHING)* -> DONE, any -> FAILED.
var validTransitions = map[State][]State{
	StateReady:        {StateFetching, StateFailed},
	StateFetching:     {StateAccumulating, StateDone, StateFailed},
	StateAccumulating: {StateFetching, StateDone, StateFailed},
	StateDone:         {},
	StateFailed:       {},
}

// StateMachine tracks the driver state and enforces valid transitions.
type StateMachine struct {
	mu           sync.Mutex
	current      State
	onTransition func(from, to State)
}

// NewStateMachine starts in READY.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateReady}
}

// Current returns the current state.
func (m *StateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnTransition registers a callback invoked after every transition.
func (m *StateMachine) OnTransition(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// TransitionTo moves to the given state, or errors if the transition is not
// part of the lifecycle.
func (m *StateMachine) TransitionTo(to State) error {
	m.mu.Lock()
	from := m.current
	allowed := false
	for _, s := range validTransitions[from] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		m.mu.Unlock()
		return fmt.Errorf("invalid state transition: %s -> %s", from, to)
	}
	m.current = to
	fn := m.onTransition
	m.mu.Unlock()

	if fn != nil {
		fn(from, to)
	}
	return nil
}

// Terminal reports whether the machine reached DONE or FAILED.
func (m *StateMachine) Terminal() bool {
	s := m.Current()
	return s == StateDone || s == StateFailed
}
