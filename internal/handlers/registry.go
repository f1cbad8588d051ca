package handlers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/angelmondragon/eventcore/internal/conditions"
)

// Step is a resolved chain entry.
type Step struct {
	Name      string
	Handler   Handler
	Condition *conditions.Condition
}

// Registry maps handler names to implementations and their gate conditions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Step
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]Step{}}
}

// Register adds or replaces the handler stored under name.
func (r *Registry) Register(name string, handler Handler, cond *conditions.Condition) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("handler name required")
	}
	if handler == nil {
		return fmt.Errorf("handler %s is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Step{Name: name, Handler: handler, Condition: cond}
	return nil
}

// Names returns the registered handler names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the steps for names in the given order. Unknown names are an error.
func (r *Registry) Resolve(names []string) ([]Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	steps := make([]Step, 0, len(names))
	seen := map[string]struct{}{}
	for _, name := range names {
		step, ok := r.entries[name]
		if !ok {
			return nil, fmt.Errorf("unknown handler %q", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("handler %q listed twice", name)
		}
		seen[name] = struct{}{}
		steps = append(steps, step)
	}
	return steps, nil
}

// MustResolve is Resolve for startup wiring; it panics on unknown names.
func (r *Registry) MustResolve(names []string) []Step {
	steps, err := r.Resolve(names)
	if err != nil {
		panic(err)
	}
	return steps
}
