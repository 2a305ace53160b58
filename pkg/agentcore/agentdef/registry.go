package agentdef

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry indexes loaded definitions by name.
// It is safe for concurrent use and optimized for reads.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register validates def and adds or replaces it.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// Get returns the definition for name and whether it exists.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Delete removes name.
func (r *Registry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, name)
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Range calls fn for each definition in name order until fn returns false.
// It iterates over a snapshot, so fn may call Register or Delete.
func (r *Registry) Range(fn func(*Definition) bool) {
	r.mu.RLock()
	snapshot := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		snapshot = append(snapshot, def)
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
	for _, def := range snapshot {
		if !fn(def) {
			return
		}
	}
}

// SaveAll writes every registered definition to store, stopping at the
// first failure.
func (r *Registry) SaveAll(ctx context.Context, store Store) error {
	var err error
	r.Range(func(def *Definition) bool {
		if saveErr := store.Save(ctx, def); saveErr != nil {
			err = fmt.Errorf("save %s: %w", def.Name, saveErr)
			return false
		}
		return true
	})
	return err
}

// LoadAll registers every definition in store, replacing entries with the
// same name. It returns the number of definitions loaded.
func (r *Registry) LoadAll(ctx context.Context, store Store) (int, error) {
	infos, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, info := range infos {
		def, err := store.Get(ctx, info.Name)
		if err != nil {
			return i, fmt.Errorf("load %s: %w", info.Name, err)
		}
		if err := r.Register(def); err != nil {
			return i, err
		}
	}
	return len(infos), nil
}
