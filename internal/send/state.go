package send

// State is the send session state.
type State int

// Session states.
const (
	StateClosed State = iota
	StateInitializing
	StateReady
	StateEstimating
	StateAwaitingConfirm
	StateConfirming
	StateMfaChallenge
	StateSucceeded
	StateFailed
)

var stateNames = map[State]string{
	StateClosed:          "closed",
	StateInitializing:    "initializing",
	StateReady:           "ready",
	StateEstimating:      "estimating",
	StateAwaitingConfirm: "awaiting_confirm",
	StateConfirming:      "confirming",
	StateMfaChallenge:    "mfa_challenge",
	StateSucceeded:       "succeeded",
	StateFailed:          "failed",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// editable reports whether inputs may change in this state.
func (s State) editable() bool {
	switch s {
	case StateInitializing, StateReady, StateAwaitingConfirm, StateFailed:
		return true
	default:
		return false
	}
}

// busy reports whether a remote call is outstanding.
func (s State) busy() bool {
	return s == StateEstimating || s == StateConfirming
}
