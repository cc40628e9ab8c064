package store

import "sync"

// InMemoryStore is a trivial in-process Store implementation useful for
// tests, examples and single-process prototypes. It keeps all values in a
// nested map guarded by an RWMutex. Data is copied on save / retrieval to
// avoid accidental external mutation of internal buffers.
//
// Layout: collection -> key -> raw bytes
//
// This implementation is intentionally minimal; it does not enforce
// retention limits, size quotas, or eviction. Production deployments should
// supply a durable implementation that survives process restarts.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[Collection]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: make(map[Collection]map[string][]byte)}
}

// Put stores (or overwrites) the value under collection/key. The input
// slice is copied before storage.
func (s *InMemoryStore) Put(collection Collection, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[collection]; !exists {
		s.values[collection] = make(map[string][]byte)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.values[collection][key] = cp
	return nil
}

// Get returns a copy of the stored value or ErrNotFound.
func (s *InMemoryStore) Get(collection Collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.values[collection]
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// List returns the keys stored in the collection.
func (s *InMemoryStore) List(collection Collection) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.values[collection]
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys, nil
}
