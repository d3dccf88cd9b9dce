package rstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/passlink/credmine/internal/keys"
	"github.com/redis/go-redis/v9"
)

// Hash fields of a task record.
const (
	FieldID        = "id"
	FieldCapture   = "capture"
	FieldState     = "state"
	FieldAccepted  = "accepted"
	FieldDiscarded = "discarded"
	FieldResult    = "result"
	FieldVersion   = "version"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var (
	// ErrNotFound is returned when the record does not exist.
	ErrNotFound = errors.New("rstore: record not found")
	// ErrFinalized is returned when the record is accepted and therefore immutable.
	ErrFinalized = errors.New("rstore: record finalized")
)

// Raw is a record as stored in its Redis hash.
type Raw map[string]string

// Partitions are the encoded values written by Push.
// Capture, Discarded and Result are only written when the record is created.
type Partitions struct {
	Capture   []byte
	State     []byte
	Accepted  bool
	Discarded bool
	Result    []byte
}

// pushScript inserts the record on first write, otherwise overwrites only the
// manager-owned state. It returns 0 for an accepted record, else the full hash.
var pushScript = redis.NewScript(
	// language=Lua
	`
	local k = KEYS[1]
	if redis.call('EXISTS', k) == 0 then
	  redis.call('HSET', k, 'id', ARGV[1], 'capture', ARGV[2], 'discarded', ARGV[5], 'result', ARGV[6], 'created_at', ARGV[7])
	  redis.call('ZADD', KEYS[2], ARGV[7], ARGV[1])
	elseif redis.call('HGET', k, 'accepted') == '1' then
	  return 0
	end
	redis.call('HSET', k, 'state', ARGV[3], 'accepted', ARGV[4], 'updated_at', ARGV[7])
	redis.call('HINCRBY', k, 'version', 1)
	return redis.call('HGETALL', k)
	`,
)

// setFieldScript overwrites one partition of a pending record.
// It returns -1 when missing, 0 when accepted and 1 on success.
var setFieldScript = redis.NewScript(
	// language=Lua
	`
	local k = KEYS[1]
	if redis.call('EXISTS', k) == 0 then return -1 end
	if redis.call('HGET', k, 'accepted') == '1' then return 0 end
	redis.call('HSET', k, ARGV[1], ARGV[2], 'updated_at', ARGV[3])
	redis.call('HINCRBY', k, 'version', 1)
	return 1
	`,
)

// Push upserts a record atomically and returns its stored form.
func Push(ctx context.Context, rdb redis.UniversalClient, k keys.Queue, id string, p Partitions, nowMs int64) (Raw, error) {
	res, err := pushScript.Run(ctx, rdb, []string{k.Task(id), k.Index},
		id,
		p.Capture,
		p.State,
		boolFlag(p.Accepted),
		boolFlag(p.Discarded),
		p.Result,
		strconv.FormatInt(nowMs, 10),
	).Result()
	if err != nil {
		return nil, err
	}
	switch v := res.(type) {
	case int64:
		return nil, ErrFinalized
	case []any:
		return pairs(v)
	default:
		return nil, fmt.Errorf("rstore: unexpected push reply %T", res)
	}
}

// SetField overwrites a single partition of a pending record.
func SetField(ctx context.Context, rdb redis.UniversalClient, k keys.Queue, id, field, value string, nowMs int64) error {
	n, err := setFieldScript.Run(ctx, rdb, []string{k.Task(id)}, field, value, strconv.FormatInt(nowMs, 10)).Int64()
	if err != nil {
		return err
	}
	switch n {
	case -1:
		return ErrNotFound
	case 0:
		return ErrFinalized
	}
	return nil
}

// Get returns the stored record.
func Get(ctx context.Context, rdb redis.UniversalClient, k keys.Queue, id string) (Raw, error) {
	m, err := rdb.HGetAll(ctx, k.Task(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return Raw(m), nil
}

// List returns every record in creation order.
func List(ctx context.Context, rdb redis.UniversalClient, k keys.Queue) ([]Raw, error) {
	ids, err := rdb.ZRange(ctx, k.Index, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, k.Task(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Raw, 0, len(ids))
	for _, c := range cmds {
		m, err := c.Result()
		if err != nil {
			return nil, err
		}
		// index entries can outlive a removed record
		if len(m) == 0 {
			continue
		}
		out = append(out, Raw(m))
	}
	return out, nil
}

// Remove deletes a record and its index entry.
func Remove(ctx context.Context, rdb redis.UniversalClient, k keys.Queue, id string) error {
	var del *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, k.Task(id))
		p.ZRem(ctx, k.Index, id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Int returns an integer field, or 0 when absent or malformed.
func (r Raw) Int(field string) int64 {
	n, _ := strconv.ParseInt(r[field], 10, 64)
	return n
}

// Bool returns a flag field.
func (r Raw) Bool(field string) bool { return r[field] == "1" }

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func pairs(v []any) (Raw, error) {
	if len(v)%2 != 0 {
		return nil, fmt.Errorf("rstore: odd HGETALL reply length %d", len(v))
	}
	out := make(Raw, len(v)/2)
	for i := 0; i < len(v); i += 2 {
		key, ok := v[i].(string)
		if !ok {
			return nil, fmt.Errorf("rstore: unexpected field type %T", v[i])
		}
		val, _ := v[i+1].(string)
		out[key] = val
	}
	return out, nil
}
