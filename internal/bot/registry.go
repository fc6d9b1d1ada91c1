package bot

import (
	"fmt"
	"sync"
)

// Registry holds registered modules in registration order.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
	names   map[string]struct{}
}

// NewRegistry creates a new module registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make([]Module, 0),
		names:   make(map[string]struct{}),
	}
}

// Register adds a module to the registry. It panics if a module with the same
// name is already registered.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if _, dup := r.names[name]; dup {
		panic(fmt.Sprintf("bot: module %q registered twice", name))
	}
	r.names[name] = struct{}{}
	r.modules = append(r.modules, m)
}

// Lookup returns the registered module with the given name.
func (r *Registry) Lookup(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Modules returns a snapshot of all registered modules.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Module, len(r.modules))
	copy(result, r.modules)
	return result
}

// globalRegistry collects modules that register themselves from init().
var globalRegistry = NewRegistry()

// Register adds a module to the global registry.
// Modules call this from their init() function; the binary selects modules
// with blank imports.
func Register(m Module) {
	globalRegistry.Register(m)
}

// Lookup returns a module from the global registry.
func Lookup(name string) (Module, bool) {
	return globalRegistry.Lookup(name)
}

// Modules returns all modules from the global registry.
func Modules() []Module {
	return globalRegistry.Modules()
}
