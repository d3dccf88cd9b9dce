package credmine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"
)

// QueueFactory opens a Queue for a DSN whose scheme it was registered under.
type QueueFactory func(ctx context.Context, dsn, name string) (Queue, error)

var queueFactories = struct {
	mu sync.RWMutex
	m  map[string]QueueFactory
}{m: map[string]QueueFactory{
	"memory":     openMemoryQueue,
	"redis":      openRedisQueue,
	"rediss":     openRedisQueue,
	"sqlite":     openSQLiteQueue,
	"postgres":   openPostgresQueue,
	"postgresql": openPostgresQueue,
}}

// RegisterQueueFactory adds or replaces the factory for a DSN scheme.
func RegisterQueueFactory(scheme string, f QueueFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || f == nil {
		return
	}
	queueFactories.mu.Lock()
	defer queueFactories.mu.Unlock()
	queueFactories.m[scheme] = f
}

// OpenQueue opens the backend selected by the DSN scheme:
// memory://, redis://host:port/db, sqlite:///path/to/file.db or postgres://...
func OpenQueue(ctx context.Context, dsn, name string) (Queue, error) {
	dsn = strings.TrimSpace(dsn)
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
	}
	queueFactories.mu.RLock()
	f, ok := queueFactories.m[normalizeScheme(scheme)]
	queueFactories.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedDSN, scheme)
	}
	return f(ctx, dsn, name)
}

func normalizeScheme(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func openMemoryQueue(_ context.Context, _, name string) (Queue, error) {
	return NewMemoryQueue(name), nil
}

// redisConnectTimeout bounds the connect retries of openRedisQueue.
var redisConnectTimeout = 30 * time.Second

func openRedisQueue(ctx context.Context, dsn, name string) (Queue, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis dsn: %w", err)
	}
	rdb := redis.NewClient(opt)

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond
	expBackoff.MaxElapsedTime = redisConnectTimeout
	operation := func() error { return rdb.Ping(ctx).Err() }
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis after retries: %w", err)
	}
	q := NewRedisQueue(rdb, name)
	q.own = true
	return q, nil
}

func openSQLiteQueue(ctx context.Context, dsn, name string) (Queue, error) {
	_, path, _ := strings.Cut(dsn, "://")
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", ErrUnsupportedDSN)
	}
	return OpenSQLQueue(ctx, DialectSQLite, path, name)
}

func openPostgresQueue(ctx context.Context, dsn, name string) (Queue, error) {
	return OpenSQLQueue(ctx, DialectPostgres, dsn, name)
}
