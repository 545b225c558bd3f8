package dispatch

import (
	"fmt"
	"sync"
)

// Reserved method names handled by the Dispatcher itself.
const (
	MethodInitialize = "initialize"
	MethodShutdown   = "shutdown"
)

// Registry maps method names to operations. Registration may happen at any
// time; lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ops   map[string]Operation
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// Register adds op. Names must be non-empty, unique and not reserved.
func (r *Registry) Register(op Operation) error {
	if op.Name == "" {
		return fmt.Errorf("register operation: name is required")
	}
	if op.Name == MethodInitialize || op.Name == MethodShutdown {
		return fmt.Errorf("register %q: %w", op.Name, ErrReservedMethod)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[op.Name]; exists {
		return fmt.Errorf("register %q: %w", op.Name, ErrDuplicateMethod)
	}
	r.ops[op.Name] = op
	r.order = append(r.order, op.Name)
	return nil
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[name]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}
	return op, nil
}

// Operations returns all operations in registration order.
func (r *Registry) Operations() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Operation, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.ops[name])
	}
	return out
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
