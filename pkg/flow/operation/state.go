package operation

import "github.com/ib-77/errflow/pkg/flow"

// State is the lifecycle position of an Operation.
type State string

const (
	StatePending   State = "pending"   // created or scheduled, body not started
	StateRunning   State = "running"   // body holds the baton
	StateSuspended State = "suspended" // waiting on an awaited call
	StateSettled   State = "settled"   // outcome produced, handlers not yet applied
	StateFinalized State = "finalized" // handlers applied, outcome consumed
)

var validTransitions = map[State]map[State]bool{
	StatePending: {
		StateRunning: true,
		StateSettled: true, // cancelled before start
	},
	StateRunning: {
		StateSuspended: true,
		StateSettled:   true,
	},
	StateSuspended: {
		StateRunning: true,
		StateSettled: true, // cancelled while suspended
	},
	StateSettled: {
		StateFinalized: true,
	},
	StateFinalized: {},
}

// ValidateTransition checks if a state transition is valid.
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return flow.Newf(flow.InvalidState, "unknown source state: %s", from)
	}
	if !allowed[to] {
		return flow.Newf(flow.InvalidState, "invalid transition from %s to %s", from, to)
	}
	return nil
}

func IsTerminalState(state State) bool {
	return state == StateFinalized
}

// CanCancel reports whether an operation in state may be cancelled.
func CanCancel(state State) bool {
	return state == StatePending || state == StateSuspended
}
