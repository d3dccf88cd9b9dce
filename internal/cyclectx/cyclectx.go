package cyclectx

import "context"

// State describes the processing cycle a context belongs to.
type State struct {
	TaskID  string
	Attempt int
}

type ctxKey struct{}

// WithState returns a child context carrying the cycle state.
func WithState(parent context.Context, s State) context.Context {
	return context.WithValue(parent, ctxKey{}, s)
}

// From extracts the cycle state from context if present.
func From(ctx context.Context) (State, bool) {
	st, ok := ctx.Value(ctxKey{}).(State)
	return st, ok
}
