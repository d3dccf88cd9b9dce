package credmine

// State is the user-facing lifecycle state of a mining task.
// It is derived from the task flags; use the exported constants instead of raw strings.
type State string

const (
	// StatePending contains tasks waiting for a credential to be created.
	StatePending State = "pending"
	// StateFailed contains tasks whose last cycle failed and that will be retried.
	StateFailed State = "failed"
	// StateCreated contains tasks that produced a stored credential.
	StateCreated State = "created"
	// StateDiscarded contains tasks the user discarded.
	StateDiscarded State = "discarded"
)

// AllStates lists every valid task state in a stable order.
var AllStates = []State{StatePending, StateFailed, StateCreated, StateDiscarded}

// String returns the raw string value of the state.
func (s State) String() string { return string(s) }

// ParseState converts a string into a State, returning an error for unknown values.
func ParseState(s string) (State, error) {
	switch s {
	case string(StatePending):
		return StatePending, nil
	case string(StateFailed):
		return StateFailed, nil
	case string(StateCreated):
		return StateCreated, nil
	case string(StateDiscarded):
		return StateDiscarded, nil
	default:
		return "", ErrUnknownState
	}
}

// State derives the lifecycle state from the task flags.
func (t *Task) State() State {
	switch {
	case t.Accepted && t.Discarded:
		return StateDiscarded
	case t.Accepted:
		return StateCreated
	case t.Feedback != "":
		return StateFailed
	default:
		return StatePending
	}
}
