package checkout

// SessionState is the client-side lifecycle of a checkout session token.
type SessionState string

const (
	StateResolving  SessionState = "RESOLVING"
	StateActive     SessionState = "ACTIVE"
	StateCompleting SessionState = "COMPLETING"
	StateCompleted  SessionState = "COMPLETED"
	StateExpired    SessionState = "EXPIRED"
	StateNotFound   SessionState = "NOT_FOUND"
	StateFailed     SessionState = "FAILED"
)

// IsTerminal reports whether no further transition is permitted. A terminal
// token cannot be revived; the user must restart checkout.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateExpired, StateNotFound, StateFailed:
		return true
	}
	return false
}

// String representation (for logging)
func (s SessionState) String() string {
	return string(s)
}
