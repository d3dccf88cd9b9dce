package search

import "sync"

// Index executes queries against indexed records and accepts new ones.
type Index interface {
	// Execute returns matching records in insertion order.
	Execute(q *Query) []Record
	// AddItem indexes r, replacing a record with the same type and ID.
	AddItem(r Record)
}

// MemoryIndex is an in-process Index. It is safe for concurrent use.
type MemoryIndex struct {
	mu      sync.RWMutex
	records []Record
	pos     map[string]int
}

// NewMemoryIndex returns an index seeded with records.
func NewMemoryIndex(records ...Record) *MemoryIndex {
	idx := &MemoryIndex{pos: make(map[string]int)}
	for _, r := range records {
		idx.AddItem(r)
	}
	return idx
}

// AddItem implements Index.
func (m *MemoryIndex) AddItem(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.Type + "/" + r.ID
	if i, ok := m.pos[key]; ok {
		m.records[i] = r
		return
	}
	m.pos[key] = len(m.records)
	m.records = append(m.records, r)
}

// Execute implements Index.
func (m *MemoryIndex) Execute(q *Query) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if !q.Matches(r) {
			continue
		}
		out = append(out, r)
		if q.limit > 0 && len(out) == q.limit {
			break
		}
	}
	return out
}

// Len returns the number of indexed records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
