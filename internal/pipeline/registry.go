package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// Step is one stage of the pipeline. A failing required step aborts the
// run; a failing optional step is logged and the run continues.
type Step struct {
	Name        string
	Description string
	Required    bool
	Run         func(ctx context.Context) error
}

// Registry holds steps in execution order.
type Registry struct {
	mu     sync.RWMutex
	steps  []Step
	byName map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register appends a step.
// Panics if a step with the same name is already registered.
func (r *Registry) Register(s Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[s.Name]; exists {
		panic(fmt.Sprintf("step already registered: %s", s.Name))
	}
	r.byName[s.Name] = len(r.steps)
	r.steps = append(r.steps, s)
}

// Get returns a step by name.
// Returns false if not found.
func (r *Registry) Get(name string) (Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byName[name]
	if !ok {
		return Step{}, false
	}
	return r.steps[i], true
}

// Index returns the position of the named step, or -1.
func (r *Registry) Index(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.byName[name]; ok {
		return i
	}
	return -1
}

// All returns every step in execution order.
func (r *Registry) All() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Step(nil), r.steps...)
}

// Len returns the number of registered steps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
