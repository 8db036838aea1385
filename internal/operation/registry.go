package operation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when no strategy is registered under a name.
	ErrNotFound = errors.New("operation not registered")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("operation already registered")
)

type entry struct {
	desc     Descriptor
	strategy Strategy
}

// Registry maps operation identifiers to exactly one strategy each. It is
// built once at startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds s under desc.Name.
func (r *Registry) Register(desc Descriptor, s Strategy) error {
	if desc.Name == "" {
		return errors.New("operation name is required")
	}
	if s == nil {
		return fmt.Errorf("operation %q: strategy is nil", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[desc.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, desc.Name)
	}
	r.entries[desc.Name] = entry{desc: desc, strategy: s}
	return nil
}

// Resolve returns the strategy registered under name.
func (r *Registry) Resolve(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e.strategy, nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.desc, ok
}

// List returns every descriptor sorted by name for a stable API response.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
