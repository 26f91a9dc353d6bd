package usecase

import (
	"fmt"
	"sync"
)

// Predicate reports whether a message should be hidden
type Predicate func(text, sender string) bool

type filterSpec struct {
	name      string
	predicate Predicate
	isActive  func() bool
}

// FilterRegistry holds named, independently toggleable filters
type FilterRegistry struct {
	mu      sync.RWMutex
	filters []filterSpec
	names   map[string]struct{}
}

// NewFilterRegistry creates an empty registry
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{names: make(map[string]struct{})}
}

// Register adds a filter. A nil isActive means always active.
func (r *FilterRegistry) Register(name string, predicate Predicate, isActive func() bool) error {
	if name == "" {
		return fmt.Errorf("filter name is required")
	}
	if predicate == nil {
		return fmt.Errorf("filter %s: predicate is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("filter %s already registered", name)
	}
	r.names[name] = struct{}{}
	r.filters = append(r.filters, filterSpec{name: name, predicate: predicate, isActive: isActive})
	return nil
}

// Names returns filter names in registration order
func (r *FilterRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.filters))
	for i, f := range r.filters {
		names[i] = f.name
	}
	return names
}

// PassesAll returns true when no active filter matches
func (r *FilterRegistry) PassesAll(text, sender string) bool {
	for _, f := range r.snapshot() {
		if f.active() && f.matches(text, sender) {
			return false
		}
	}
	return true
}

// Evaluate returns the names of all active filters matching the message
func (r *FilterRegistry) Evaluate(text, sender string) []string {
	var matched []string
	for _, f := range r.snapshot() {
		if f.active() && f.matches(text, sender) {
			matched = append(matched, f.name)
		}
	}
	return matched
}

func (r *FilterRegistry) snapshot() []filterSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filters
}

func (f filterSpec) active() bool {
	return f.isActive == nil || f.isActive()
}

// matches fails open: a panicking predicate counts as not matched
func (f filterSpec) matches(text, sender string) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Printf("[Filter] %s panicked on %q: %v\n", f.name, truncate(text, 40), rec)
			matched = false
		}
	}()
	return f.predicate(text, sender)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
