// Package hooks holds the controller-level pre/post lifecycle callbacks.
//
// A Set is assembled once at startup from a module reference and handed to
// the dispatcher by construction. It is never mutated afterwards, so a
// transition in the middle of operation cannot observe a half-installed set.
//
// Module references resolve in this order:
//   - a name registered with Loader.Register (built-ins such as "log")
//   - a path to a YAML file mapping hook names to argv commands
//
// Unknown hook names are ignored, empty commands are left as no-ops, and a
// reference that resolves to nothing yields an *InjectionError. A failing
// hook never affects the other hooks.
package hooks

import (
	"context"
	"fmt"
	"sort"
)

// Name identifies one of the supported lifecycle hooks.
type Name string

const (
	PreInit   Name = "pre_init"
	PostInit  Name = "post_init"
	PrePlay   Name = "pre_play"
	PostPlay  Name = "post_play"
	PrePause  Name = "pre_pause"
	PostPause Name = "post_pause"
	PreStop   Name = "pre_stop"
	PostStop  Name = "post_stop"
	PreQuit   Name = "pre_quit"
	PostQuit  Name = "post_quit"
)

// Supported is the closed set of injectable hooks.
var Supported = []Name{
	PreInit, PostInit,
	PrePlay, PostPlay,
	PrePause, PostPause,
	PreStop, PostStop,
	PreQuit, PostQuit,
}

// Valid reports whether n is one of the supported hooks.
func (n Name) Valid() bool {
	for _, s := range Supported {
		if s == n {
			return true
		}
	}
	return false
}

// Func is an injected hook body.
type Func func(ctx context.Context) error

// Set is an immutable bundle of optional hooks. The zero value runs nothing.
type Set struct {
	source string
	funcs  map[Name]Func
}

// NewSet builds a Set from funcs, dropping nil entries and unsupported names.
func NewSet(source string, funcs map[Name]Func) Set {
	s := Set{source: source, funcs: make(map[Name]Func, len(funcs))}
	for name, fn := range funcs {
		if fn == nil || !name.Valid() {
			continue
		}
		s.funcs[name] = fn
	}
	return s
}

// Source names the module the set was loaded from ("" for none).
func (s Set) Source() string { return s.source }

// Installed returns the installed hook names in sorted order.
func (s Set) Installed() []Name {
	out := make([]Name, 0, len(s.funcs))
	for n := range s.funcs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether name is installed.
func (s Set) Has(name Name) bool {
	_, ok := s.funcs[name]
	return ok
}

// Run executes the named hook. Absent hooks are no-ops. Panics are
// returned as errors.
func (s Set) Run(ctx context.Context, name Name) (err error) {
	fn, ok := s.funcs[name]
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", name, r)
		}
	}()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("hook %s: %w", name, err)
	}
	return nil
}

// InjectionError reports a module or hook that could not be installed.
type InjectionError struct {
	Module string
	Hook   Name // empty when the whole module failed
	Err    error
}

func (e *InjectionError) Error() string {
	if e.Hook != "" {
		return fmt.Sprintf("inject %s from %q: %v", e.Hook, e.Module, e.Err)
	}
	return fmt.Sprintf("inject module %q: %v", e.Module, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }
