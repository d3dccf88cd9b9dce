// Package tabs provides tab-scoped key-value stores, such as the set of
// credential ids autofilled during the current browsing interaction.
package tabs

import "sync"

// AutofillIDs is the key holding the []string of credential ids autofilled in a tab.
const AutofillIDs = "autofill.ids"

// Store is a tab-scoped key-value store.
type Store interface {
	// Get returns the value for key or def when absent.
	Get(key string, def any) any
	Has(key string) bool
	Set(key string, value any)
	Remove(key string)
}

// MemoryStore is an in-memory Store. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]any)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.data[key]; ok {
		return v
	}
	return def
}

// Has implements Store.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Set implements Store.
func (s *MemoryStore) Set(key string, value any) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

// Remove implements Store.
func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Strings returns the value for key as a string slice, or nil.
func Strings(s Store, key string) []string {
	switch v := s.Get(key, nil).(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if str, ok := x.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Registry hands out one Store per tab id.
type Registry struct {
	mu   sync.Mutex
	tabs map[string]*MemoryStore
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tabs: make(map[string]*MemoryStore)}
}

// For returns the store of tab id, creating it on first use.
func (r *Registry) For(id string) Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.tabs[id]
	if !ok {
		s = NewMemoryStore()
		r.tabs[id] = s
	}
	return s
}

// Close drops the store of a closed tab.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.tabs, id)
	r.mu.Unlock()
}
