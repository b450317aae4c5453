package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownFeedback is returned when a name is not registered.
var ErrUnknownFeedback = errors.New("unknown feedback")

// LoadError reports that a feedback could not be resolved or constructed.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load feedback %q: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Factory builds a fresh feedback instance.
type Factory func() (Plugin, error)

// Source says where a feedback came from.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceProcess Source = "process"
)

// Entry describes a loadable feedback.
type Entry struct {
	Name        string
	Description string
	Source      Source
	Path        string // process feedbacks only
	Version     string

	factory Factory
}

// Registry resolves feedback names to instances. Built-in feedbacks are
// registered at startup; process feedbacks come from manifest discovery.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty feedback registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a built-in feedback.
func (r *Registry) Register(name, description string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("feedback name is empty")
	}
	if factory == nil {
		return fmt.Errorf("feedback %q has no factory", name)
	}
	return r.add(&Entry{Name: name, Description: description, Source: SourceBuiltin, factory: factory})
}

func (r *Registry) add(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("feedback %q already registered", e.Name)
	}
	r.entries[e.Name] = e
	return nil
}

// Get retrieves an entry by name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// All returns every entry sorted by name.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted names of all loadable feedbacks.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, 0, len(all))
	for _, e := range all {
		names = append(names, e.Name)
	}
	return names
}

// Resolve builds a new instance of the named feedback. Construction panics
// are reported as a *LoadError like any other failure.
func (r *Registry) Resolve(name string) (p Plugin, err error) {
	e, ok := r.Get(name)
	if !ok {
		return nil, &LoadError{Name: name, Err: ErrUnknownFeedback}
	}

	defer func() {
		if rec := recover(); rec != nil {
			p, err = nil, &LoadError{Name: name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	p, err = e.factory()
	if err != nil {
		return nil, &LoadError{Name: name, Err: err}
	}
	if p == nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("factory returned nil")}
	}
	return p, nil
}
