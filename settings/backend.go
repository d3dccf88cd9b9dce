package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// Names of the settings read by the mining pipeline.
const (
	MiningRetryDelay = "mining.retry.delay"
	MiningRetryMax   = "mining.retry.max"
)

// Defaults returns the built-in default values.
func Defaults() map[string]any {
	return map[string]any{
		MiningRetryDelay: "1s",
		MiningRetryMax:   int64(0),
	}
}

// MemoryBackend keeps overrides in memory on top of fixed defaults.
type MemoryBackend struct {
	mu        sync.RWMutex
	defaults  map[string]any
	overrides map[string]any
}

// NewMemoryBackend creates a backend with the given defaults.
func NewMemoryBackend(defaults map[string]any) *MemoryBackend {
	d := make(map[string]any, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &MemoryBackend{defaults: d, overrides: make(map[string]any)}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, name string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.overrides[name]; ok {
		return v, nil
	}
	if v, ok := m.defaults[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, name string, value any) error {
	m.mu.Lock()
	m.overrides[name] = value
	m.mu.Unlock()
	return nil
}

// Reset implements Backend.
func (m *MemoryBackend) Reset(_ context.Context, name string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, name)
	return m.defaults[name], nil
}

// Names returns every known setting name, sorted.
func (m *MemoryBackend) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{}, len(m.defaults)+len(m.overrides))
	for k := range m.defaults {
		seen[k] = struct{}{}
	}
	for k := range m.overrides {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryBackend) snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.overrides))
	for k, v := range m.overrides {
		out[k] = v
	}
	return out
}

// FileBackend persists overrides in a TOML file. Each write rewrites the file
// under an advisory lock so concurrent processes do not interleave.
type FileBackend struct {
	*MemoryBackend
	path string
	lock *flock.Flock
}

// OpenFileBackend loads overrides from path. A missing file is treated as empty.
func OpenFileBackend(path string, defaults map[string]any) (*FileBackend, error) {
	b := &FileBackend{
		MemoryBackend: NewMemoryBackend(defaults),
		path:          path,
		lock:          flock.New(path + ".lock"),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var overrides map[string]any
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	for k, v := range overrides {
		b.overrides[k] = v
	}
	return b, nil
}

// Set implements Backend.
func (f *FileBackend) Set(ctx context.Context, name string, value any) error {
	if err := f.MemoryBackend.Set(ctx, name, value); err != nil {
		return err
	}
	return f.persist()
}

// Reset implements Backend.
func (f *FileBackend) Reset(ctx context.Context, name string) (any, error) {
	v, err := f.MemoryBackend.Reset(ctx, name)
	if err != nil {
		return nil, err
	}
	return v, f.persist()
}

func (f *FileBackend) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock settings: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	data, err := toml.Marshal(f.snapshot())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, f.path)
}
