// Package settings provides the Setting Cache: a memoizing façade over a
// settings backend. Values read once are kept for the lifetime of the Cache and
// change only through Set and Reset on the same Cache; writes that bypass it
// leave cached values stale.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrUnknownSetting is returned by a backend for a name without value or default.
var ErrUnknownSetting = errors.New("settings: unknown setting")

// Backend stores setting values.
type Backend interface {
	Get(ctx context.Context, name string) (any, error)
	Set(ctx context.Context, name string, value any) error
	// Reset restores the default and returns it.
	Reset(ctx context.Context, name string) (any, error)
}

// Setting is a named value shared by every reader of the same Cache.
type Setting struct {
	name  string
	mu    sync.RWMutex
	value any
}

// NewSetting creates a detached setting, e.g. for Cache.SetSetting.
func NewSetting(name string, value any) *Setting {
	return &Setting{name: name, value: value}
}

// Name returns the setting name.
func (s *Setting) Name() string { return s.name }

// Value returns the current value.
func (s *Setting) Value() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// SetValue replaces the value locally without writing the backend.
func (s *Setting) SetValue(v any) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

// Cache memoizes settings read from a Backend.
type Cache struct {
	backend Backend
	mu      sync.Mutex
	cache   map[string]*Setting
}

// New creates a Cache over backend.
func New(backend Backend) *Cache {
	return &Cache{backend: backend, cache: make(map[string]*Setting)}
}

// Get returns the setting, reading the backend only on first use.
func (c *Cache) Get(ctx context.Context, name string) (*Setting, error) {
	c.mu.Lock()
	s, ok := c.cache[name]
	c.mu.Unlock()
	if ok {
		return s, nil
	}
	v, err := c.backend.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// a concurrent reader may have populated it first
	if s, ok := c.cache[name]; ok {
		return s, nil
	}
	s = NewSetting(name, v)
	c.cache[name] = s
	return s, nil
}

// Value returns the raw value of the setting.
func (c *Cache) Value(ctx context.Context, name string) (any, error) {
	s, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.Value(), nil
}

// Set writes through to the backend, then updates a cached setting.
func (c *Cache) Set(ctx context.Context, name string, value any) error {
	if err := c.backend.Set(ctx, name, value); err != nil {
		return fmt.Errorf("set setting %s: %w", name, err)
	}
	c.mu.Lock()
	s, ok := c.cache[name]
	c.mu.Unlock()
	if ok {
		s.SetValue(value)
	}
	return nil
}

// SetSetting writes s by its name and value.
func (c *Cache) SetSetting(ctx context.Context, s *Setting) error {
	return c.Set(ctx, s.Name(), s.Value())
}

// Reset restores the backend default and returns the new value.
func (c *Cache) Reset(ctx context.Context, name string) (any, error) {
	v, err := c.backend.Reset(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("reset setting %s: %w", name, err)
	}
	c.mu.Lock()
	s, ok := c.cache[name]
	c.mu.Unlock()
	if ok {
		s.SetValue(v)
	}
	return v, nil
}

// ResetSetting resets s, updates it in place and returns it.
func (c *Cache) ResetSetting(ctx context.Context, s *Setting) (*Setting, error) {
	v, err := c.Reset(ctx, s.Name())
	if err != nil {
		return nil, err
	}
	s.SetValue(v)
	return s, nil
}

// Int returns the setting as an integer. Strings are parsed.
func (c *Cache) Int(ctx context.Context, name string) (int64, error) {
	v, err := c.Value(ctx, name)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("setting %s: %w", name, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("setting %s: unsupported type %T", name, v)
	}
}

// Duration returns the setting as a duration. Strings use time.ParseDuration
// and numbers are milliseconds.
func (c *Cache) Duration(ctx context.Context, name string) (time.Duration, error) {
	v, err := c.Value(ctx, name)
	if err != nil {
		return 0, err
	}
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("setting %s: %w", name, err)
		}
		return d, nil
	}
	ms, err := c.Int(ctx, name)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
