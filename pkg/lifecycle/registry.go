package lifecycle

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a handler for one declared resource type.
type Constructor func() (Handler, error)

// Registry maps declared resource type names to handler constructors, giving
// every resource kind uniform dispatch through the same lifecycle contract.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register associates a type name with a handler constructor. Registering an
// already-registered name is an error.
func (r *Registry) Register(typeName string, c Constructor) error {
	if typeName == "" {
		return fmt.Errorf("resource type name is required")
	}
	if c == nil {
		return fmt.Errorf("constructor for resource type %s is nil", typeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[typeName]; exists {
		return fmt.Errorf("resource type %s is already registered", typeName)
	}
	r.constructors[typeName] = c
	return nil
}

// Handler constructs a handler for the given type name.
func (r *Registry) Handler(typeName string) (Handler, error) {
	r.mu.RLock()
	c, exists := r.constructors[typeName]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown resource type: %s", typeName)
	}
	return c()
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
