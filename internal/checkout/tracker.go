package checkout

import (
	"errors"
	"sync"
)

var (
	ErrIllegalTransition  = errors.New("illegal transition of session state")
	ErrCompletionInFlight = errors.New("a completion for this session is already in flight")
)

// Tracker enforces the session state machine per token. It is the guard
// behind two invariants: a terminal token never transitions again, and at
// most one completion is in flight per token at any moment.
type Tracker struct {
	mu     sync.Mutex
	states map[string]SessionState
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]SessionState)}
}

// State returns the tracked state; an unseen token is Resolving.
func (t *Tracker) State(token string) SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[token]; ok {
		return s
	}
	return StateResolving
}

// observe records the outcome of a resolve. Terminal states stick: a token
// that already completed or died never goes back to Active.
func (t *Tracker) observe(token string, state SessionState) SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.states[token]; ok && (cur.IsTerminal() || cur == StateCompleting) {
		return cur
	}
	t.states[token] = state
	return state
}

// BeginCompletion transitions Active → Completing. It refuses a second
// completion for a token that is already completing, and any completion for
// a terminal token.
func (t *Tracker) BeginCompletion(token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch cur := t.states[token]; {
	case cur == StateCompleting:
		return ErrCompletionInFlight
	case cur == StateActive:
		t.states[token] = StateCompleting
		return nil
	default:
		return ErrIllegalTransition
	}
}

// FinishCompletion leaves Completing: to Completed on success, back to
// Active on a recoverable failure so the user may resubmit.
func (t *Tracker) FinishCompletion(token string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states[token] != StateCompleting {
		return
	}
	if success {
		t.states[token] = StateCompleted
	} else {
		t.states[token] = StateActive
	}
}

// Invalidate forces a terminal state, e.g. when a completion answers 410.
func (t *Tracker) Invalidate(token string, state SessionState) {
	if !state.IsTerminal() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[token] = state
}
