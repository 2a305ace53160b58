package agentdef

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	def       *Definition
	version   int
	updatedAt time.Time
	size      int64
}

// MemoryStore is an in-memory Store for tests and ephemeral runtimes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	prev := s.entries[def.Name]
	s.entries[def.Name] = memoryEntry{
		def:       def.Clone(),
		version:   prev.version + 1,
		updatedAt: time.Now().UTC(),
		size:      int64(len(data)),
	}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, name string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	e, ok := s.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return e.def.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(s.entries))
	for name, e := range s.entries {
		infos = append(infos, Info{Name: name, Version: e.version, UpdatedAt: e.updatedAt, Size: e.size})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.entries, name)
	return nil
}

// Close implements Store. It is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
