package agent

import (
	"sync"
	"time"
)

// State is the position of a session in the conversation loop.
type State int

const (
	StateAwaitingUser State = iota
	StateInvoking
	StateClassifying
	StateDispatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingUser:
		return "AWAITING_USER"
	case StateInvoking:
		return "INVOKING"
	case StateClassifying:
		return "CLASSIFYING"
	case StateDispatching:
		return "DISPATCHING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// StateChange represents a state transition event.
type StateChange struct {
	SessionID string
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes session state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(StateChange)

func (f StateListenerFunc) OnStateChange(event StateChange) { f(event) }

var validTransitions = map[State][]State{
	StateAwaitingUser: {StateInvoking},
	// back to AwaitingUser aborts the turn
	StateInvoking:    {StateClassifying, StateAwaitingUser},
	StateClassifying: {StateDispatching, StateDone, StateInvoking, StateAwaitingUser},
	StateDispatching: {StateInvoking, StateAwaitingUser},
	StateDone:        {StateAwaitingUser},
}

type stateMachine struct {
	mu        sync.RWMutex
	sessionID string
	current   State
	listeners []StateListener
}

func newStateMachine(sessionID string) *stateMachine {
	return &stateMachine{sessionID: sessionID, current: StateAwaitingUser}
}

func (sm *stateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to state, rejecting moves the loop never makes.
// Listeners are notified without the lock held.
func (sm *stateMachine) Transition(state State, reason string) error {
	sm.mu.Lock()
	if !transitionValid(sm.current, state) {
		from := sm.current
		sm.mu.Unlock()
		return &InvalidTransitionError{From: from, To: state}
	}
	event := StateChange{
		SessionID: sm.sessionID,
		FromState: sm.current,
		ToState:   state,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	sm.current = state
	listeners := make([]StateListener, len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	for _, l := range listeners {
		l.OnStateChange(event)
	}
	return nil
}

// abort returns to AwaitingUser from wherever the turn stopped.
func (sm *stateMachine) abort(reason string) {
	if sm.State() == StateAwaitingUser {
		return
	}
	_ = sm.Transition(StateAwaitingUser, reason)
}

func (sm *stateMachine) AddListener(l StateListener) {
	if l == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, l)
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
