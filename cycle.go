package credmine

import (
	"context"

	"github.com/passlink/credmine/internal/cyclectx"
)

// CycleFunc runs one processing cycle for a task and returns the task as last
// seen in the queue.
type CycleFunc func(ctx context.Context, t *Task) (*Task, error)

// Middleware is a function that wraps a CycleFunc to provide cross-cutting concerns.
type Middleware func(CycleFunc) CycleFunc

func chain(fn CycleFunc, mws []Middleware) CycleFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		fn = mws[i](fn)
	}
	return fn
}

// CycleInfo returns the task id and attempt number of the processing cycle
// that owns ctx. ok is false outside a cycle.
func CycleInfo(ctx context.Context) (taskID string, attempt int, ok bool) {
	st, ok := cyclectx.From(ctx)
	if !ok {
		return "", 0, false
	}
	return st.TaskID, st.Attempt, true
}
