package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// Registry holds the modules the binary can run.
type Registry struct {
	modules map[string]Module
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module. Names must be unique.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[m.Name()]; ok {
		return fmt.Errorf("module %s already registered", m.Name())
	}
	r.modules[m.Name()] = m
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	if !ok {
		return nil, core.ErrValidation(core.CodeUnknownModule, fmt.Sprintf("unknown module %q", name)).
			WithDetail("module", name)
	}
	return m, nil
}

// Has checks if a module is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[name]
	return ok
}

// List returns the registered module names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
