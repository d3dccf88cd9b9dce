package credmine

import (
	"context"
	"errors"

	ikeys "github.com/passlink/credmine/internal/keys"
	"github.com/passlink/credmine/internal/rstore"
	"github.com/redis/go-redis/v9"
)

// RedisQueue stores tasks in Redis: one hash per task plus a creation-ordered index.
// Writes are single Lua scripts, so a push never interleaves with a UI mutation.
type RedisQueue struct {
	rdb   redis.UniversalClient
	keys  ikeys.Queue
	codec partitionCodec
	own   bool
}

// NewRedisQueue creates a queue named name on rdb.
func NewRedisQueue(rdb redis.UniversalClient, name string) *RedisQueue {
	if name == "" {
		name = DefaultQueue
	}
	return &RedisQueue{rdb: rdb, keys: ikeys.For(name), codec: newPartitionCodec(nil)}
}

// WithEncoder replaces the partition encoder and returns q.
func (q *RedisQueue) WithEncoder(enc Encoder) *RedisQueue {
	q.codec = newPartitionCodec(enc)
	return q
}

// Name returns the queue name.
func (q *RedisQueue) Name() string { return q.keys.Name }

// Push implements FeedbackQueue.
func (q *RedisQueue) Push(ctx context.Context, t *Task) (*Task, error) {
	capture, err := q.codec.encodeCapture(t.Fields)
	if err != nil {
		return nil, err
	}
	state, err := q.codec.encodeState(stateOf(t))
	if err != nil {
		return nil, err
	}
	result, err := q.codec.encodeResult(t.Result)
	if err != nil {
		return nil, err
	}
	raw, err := rstore.Push(ctx, q.rdb, q.keys, t.ID, rstore.Partitions{
		Capture:   capture,
		State:     state,
		Accepted:  t.Accepted,
		Discarded: t.Discarded,
		Result:    result,
	}, nowMillis())
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return q.toTask(t.ID, raw)
}

// Items implements FeedbackQueue.
func (q *RedisQueue) Items(ctx context.Context) ([]*Task, error) {
	return q.List(ctx, false)
}

// Amend implements FeedbackQueue.
func (q *RedisQueue) Amend(ctx context.Context, id string, f Fields) error {
	b, err := q.codec.encodeCapture(f)
	if err != nil {
		return err
	}
	return q.setField(ctx, id, rstore.FieldCapture, string(b))
}

// Get implements Review.
func (q *RedisQueue) Get(ctx context.Context, id string) (*Task, error) {
	raw, err := rstore.Get(ctx, q.rdb, q.keys, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return q.toTask(id, raw)
}

// List implements Review.
func (q *RedisQueue) List(ctx context.Context, all bool) ([]*Task, error) {
	raws, err := rstore.List(ctx, q.rdb, q.keys)
	if err != nil {
		return nil, err
	}
	out := make([]*Task, 0, len(raws))
	for _, raw := range raws {
		t, err := q.toTask(raw[rstore.FieldID], raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if all {
		return out, nil
	}
	return pendingOnly(out), nil
}

// Discard implements Review.
func (q *RedisQueue) Discard(ctx context.Context, id string) error {
	return q.setField(ctx, id, rstore.FieldDiscarded, "1")
}

// Edit implements Review.
func (q *RedisQueue) Edit(ctx context.Context, id string, f Fields) error {
	b, err := q.codec.encodeResult(&f)
	if err != nil {
		return err
	}
	return q.setField(ctx, id, rstore.FieldResult, string(b))
}

// Remove implements Review.
func (q *RedisQueue) Remove(ctx context.Context, id string) error {
	return mapStoreErr(rstore.Remove(ctx, q.rdb, q.keys, id))
}

// Close closes the client only when OpenQueue created it.
func (q *RedisQueue) Close() error {
	if q.own {
		return q.rdb.Close()
	}
	return nil
}

func (q *RedisQueue) setField(ctx context.Context, id, field, value string) error {
	return mapStoreErr(rstore.SetField(ctx, q.rdb, q.keys, id, field, value, nowMillis()))
}

func (q *RedisQueue) toTask(id string, raw rstore.Raw) (*Task, error) {
	r := &record{
		ID:        id,
		Discarded: raw.Bool(rstore.FieldDiscarded),
		Version:   raw.Int(rstore.FieldVersion),
		CreatedAt: raw.Int(rstore.FieldCreatedAt),
		UpdatedAt: raw.Int(rstore.FieldUpdatedAt),
	}
	err := q.codec.decode(r,
		[]byte(raw[rstore.FieldCapture]),
		[]byte(raw[rstore.FieldState]),
		[]byte(raw[rstore.FieldResult]),
	)
	if err != nil {
		return nil, err
	}
	// the flag field is authoritative for finalization
	r.State.Accepted = raw.Bool(rstore.FieldAccepted)
	return r.task(q.keys.Name), nil
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rstore.ErrNotFound):
		return ErrTaskNotFound
	case errors.Is(err, rstore.ErrFinalized):
		return ErrTaskFinalized
	default:
		return err
	}
}
