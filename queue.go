package credmine

import "context"

// DefaultQueue is the queue name used for password mining tasks.
const DefaultQueue = "mining"

// FeedbackQueue is the manager side of the persisted, named task queue.
//
// Records are split into partitions by owner. Push writes the manager-owned
// state (new, accepted, feedback, attempts) with last-writer-wins semantics and
// returns the authoritative record, including any discard or result edit the
// UI applied since the previous push. The captured fields are written on the
// first push and afterwards only through Amend.
type FeedbackQueue interface {
	// Name returns the queue name.
	Name() string
	// Push upserts the task keyed by its ID and returns the current version.
	// It returns ErrTaskFinalized if the stored task is already accepted.
	Push(ctx context.Context, t *Task) (*Task, error)
	// Items returns a snapshot of the pending (not accepted) tasks ordered by creation.
	Items(ctx context.Context) ([]*Task, error)
	// Amend replaces the captured fields of a pending task.
	Amend(ctx context.Context, id string, f Fields) error
}

// Review is the UI side of the queue: it observes tasks and mutates the
// user-owned partition. Mutations are seen by the manager on its next Push.
type Review interface {
	// Get returns a task by ID or ErrTaskNotFound.
	Get(ctx context.Context, id string) (*Task, error)
	// List returns pending tasks, or every task when all is true.
	List(ctx context.Context, all bool) ([]*Task, error)
	// Discard marks a pending task as discarded.
	Discard(ctx context.Context, id string) error
	// Edit replaces the result fields of a pending task.
	Edit(ctx context.Context, id string, f Fields) error
	// Remove deletes a task (the UI acknowledged its outcome).
	Remove(ctx context.Context, id string) error
}

// Queue is implemented by every backend in this package.
type Queue interface {
	FeedbackQueue
	Review
	Close() error
}

func pendingOnly(in []*Task) []*Task {
	out := make([]*Task, 0, len(in))
	for _, t := range in {
		if !t.Accepted {
			out = append(out, t)
		}
	}
	return out
}
