package credmine

import (
	"context"
	"sort"
	"sync"
)

// MemoryQueue is an in-process Queue. It is safe for concurrent use.
type MemoryQueue struct {
	name    string
	mu      sync.Mutex
	records map[string]*record
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(name string) *MemoryQueue {
	if name == "" {
		name = DefaultQueue
	}
	return &MemoryQueue{name: name, records: make(map[string]*record)}
}

// Name returns the queue name.
func (q *MemoryQueue) Name() string { return q.name }

// Push implements FeedbackQueue.
func (q *MemoryQueue) Push(_ context.Context, t *Task) (*Task, error) {
	now := nowMillis()
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.records[t.ID]
	if !ok {
		r = newRecord(t, now)
		q.records[t.ID] = r
		return r.task(q.name), nil
	}
	if r.State.Accepted {
		return nil, ErrTaskFinalized
	}
	r.State = stateOf(t)
	r.Version++
	r.UpdatedAt = now
	return r.task(q.name), nil
}

// Items implements FeedbackQueue.
func (q *MemoryQueue) Items(ctx context.Context) ([]*Task, error) {
	return q.List(ctx, false)
}

// Amend implements FeedbackQueue.
func (q *MemoryQueue) Amend(_ context.Context, id string, f Fields) error {
	return q.mutate(id, func(r *record) { r.Capture = f })
}

// Get implements Review.
func (q *MemoryQueue) Get(_ context.Context, id string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return r.task(q.name), nil
}

// List implements Review.
func (q *MemoryQueue) List(_ context.Context, all bool) ([]*Task, error) {
	q.mu.Lock()
	out := make([]*Task, 0, len(q.records))
	for _, r := range q.records {
		out = append(out, r.task(q.name))
	}
	q.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	if all {
		return out, nil
	}
	return pendingOnly(out), nil
}

// Discard implements Review.
func (q *MemoryQueue) Discard(_ context.Context, id string) error {
	return q.mutate(id, func(r *record) { r.Discarded = true })
}

// Edit implements Review.
func (q *MemoryQueue) Edit(_ context.Context, id string, f Fields) error {
	return q.mutate(id, func(r *record) { r.Result = &f })
}

// Remove implements Review.
func (q *MemoryQueue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.records[id]; !ok {
		return ErrTaskNotFound
	}
	delete(q.records, id)
	return nil
}

// Close is a no-op.
func (q *MemoryQueue) Close() error { return nil }

func (q *MemoryQueue) mutate(id string, fn func(*record)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.records[id]
	if !ok {
		return ErrTaskNotFound
	}
	if r.State.Accepted {
		return ErrTaskFinalized
	}
	fn(r)
	r.Version++
	r.UpdatedAt = nowMillis()
	return nil
}
