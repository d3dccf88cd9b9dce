package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	*MemoryBackend
	gets int
}

func (c *countingBackend) Get(ctx context.Context, name string) (any, error) {
	c.gets++
	return c.MemoryBackend.Get(ctx, name)
}

func TestCache_MemoizesGet(t *testing.T) {
	b := &countingBackend{MemoryBackend: NewMemoryBackend(map[string]any{"a": "1"})}
	c := New(b)
	ctx := context.Background()

	s1, err := c.Get(ctx, "a")
	require.NoError(t, err)
	s2, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Same(t, s1, s2)
	require.Equal(t, 1, b.gets)
}

func TestCache_SetUpdatesCachedSetting(t *testing.T) {
	c := New(NewMemoryBackend(map[string]any{"a": "1"}))
	ctx := context.Background()

	s, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "a", "2"))
	require.Equal(t, "2", s.Value())

	require.NoError(t, c.SetSetting(ctx, NewSetting("a", "3")))
	v, err := c.Value(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "3", v)
}

func TestCache_Reset(t *testing.T) {
	c := New(NewMemoryBackend(map[string]any{"a": "default"}))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "custom"))
	s, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "custom", s.Value())

	v, err := c.Reset(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "default", v)
	require.Equal(t, "default", s.Value())

	detached := NewSetting("a", "other")
	got, err := c.ResetSetting(ctx, detached)
	require.NoError(t, err)
	require.Same(t, detached, got)
	require.Equal(t, "default", detached.Value())
}

func TestCache_StaleWhenBypassed(t *testing.T) {
	b := NewMemoryBackend(map[string]any{"a": "1"})
	c := New(b)
	ctx := context.Background()

	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "a", "2"))
	v, err := c.Value(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}

func TestCache_UnknownSetting(t *testing.T) {
	c := New(NewMemoryBackend(nil))
	_, err := c.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrUnknownSetting))
}

func TestCache_TypedHelpers(t *testing.T) {
	c := New(NewMemoryBackend(map[string]any{
		"delay.str": "250ms",
		"delay.ms":  int64(500),
		"count":     "7",
	}))
	ctx := context.Background()

	d, err := c.Duration(ctx, "delay.str")
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)

	d, err = c.Duration(ctx, "delay.ms")
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, d)

	n, err := c.Int(ctx, "count")
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
}

func TestFileBackend_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.toml")
	ctx := context.Background()

	b, err := OpenFileBackend(path, Defaults())
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, MiningRetryDelay, "5s"))
	require.NoError(t, b.Set(ctx, "custom.flag", true))

	reopened, err := OpenFileBackend(path, Defaults())
	require.NoError(t, err)
	v, err := reopened.Get(ctx, MiningRetryDelay)
	require.NoError(t, err)
	require.Equal(t, "5s", v)
	require.Contains(t, reopened.Names(), "custom.flag")

	def, err := reopened.Reset(ctx, MiningRetryDelay)
	require.NoError(t, err)
	require.Equal(t, "1s", def)

	again, err := OpenFileBackend(path, Defaults())
	require.NoError(t, err)
	v, err = again.Get(ctx, MiningRetryDelay)
	require.NoError(t, err)
	require.Equal(t, "1s", v)
}
