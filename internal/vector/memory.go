package vector

import "sync"

// MemoryIndex is a brute-force in-memory Index. Insertion order is preserved
// and is the tie-break order for equal similarity scores, so searches are
// deterministic for a fixed ingestion sequence.
type MemoryIndex struct {
	keys []string
	vecs [][]float32
	pos  map[string]int
	mu   sync.RWMutex
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{pos: make(map[string]int)}
}

// Put stores a copy of vec under chunkKey. Putting an existing key replaces
// its vector in place, keeping the original insertion position.
func (m *MemoryIndex) Put(chunkKey string, vec []float32) {
	cp := make([]float32, len(vec))
	copy(cp, vec)
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.pos[chunkKey]; ok {
		m.vecs[i] = cp
		return
	}
	m.pos[chunkKey] = len(m.keys)
	m.keys = append(m.keys, chunkKey)
	m.vecs = append(m.vecs, cp)
}

// GetAll returns every entry in insertion order.
func (m *MemoryIndex) GetAll() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.keys))
	for i, k := range m.keys {
		out[i] = Entry{ChunkKey: k, Vec: m.vecs[i]}
	}
	return out
}

// GetByKeys returns the entries for the given keys, in index insertion order
// (not argument order). Unknown keys are skipped.
func (m *MemoryIndex) GetByKeys(keys []string) []Entry {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for i, k := range m.keys {
		if want[k] {
			out = append(out, Entry{ChunkKey: k, Vec: m.vecs[i]})
		}
	}
	return out
}

// Clear removes every entry.
func (m *MemoryIndex) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = nil
	m.vecs = nil
	m.pos = make(map[string]int)
}

// Size returns the number of stored vectors.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}
