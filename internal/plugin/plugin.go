package plugin

import (
	"maps"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_plugin.go -package=mocks github.com/mattjoyce/feedbackd/internal/plugin Plugin

// Plugin is the capability set the controller drives. Hooks may be called
// concurrently: OnPlay runs on the execution goroutine while the others
// arrive on the dispatch goroutine, so implementations must guard their
// own state. All hooks must tolerate being called before OnInit.
type Plugin interface {
	OnInit() error
	// OnPlay is long-running and returns when the feedback's main loop ends.
	OnPlay() error
	OnPause() error
	OnStop() error
	OnQuit() error
	OnControlEvent(data map[string]any) error
	OnInteractionEvent(data map[string]any) error
	// Variables returns a snapshot of the feedback's exposed state.
	Variables() map[string]any
}

// PlayArmer is implemented by feedbacks that track stop requests across
// plays. The controller calls ArmPlay when a play is requested, before the
// handoff, so a stop that lands before OnPlay starts still cancels it.
type PlayArmer interface {
	ArmPlay()
}

// Base holds a feedback's exposed variables. Embed it to get
// OnInteractionEvent and Variables for free.
type Base struct {
	mu   sync.RWMutex
	vars map[string]any
}

// SetVariable stores a single variable.
func (b *Base) SetVariable(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vars == nil {
		b.vars = make(map[string]any)
	}
	b.vars[key] = value
}

// Variable returns a single variable.
func (b *Base) Variable(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.vars[key]
	return v, ok
}

// MergeVariables shallow-merges vars into the stored set.
func (b *Base) MergeVariables(vars map[string]any) {
	if len(vars) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vars == nil {
		b.vars = make(map[string]any, len(vars))
	}
	maps.Copy(b.vars, vars)
}

// Variables returns a copy of all variables.
func (b *Base) Variables() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.vars))
	maps.Copy(out, b.vars)
	return out
}

// OnInteractionEvent adopts every key of data as a variable.
func (b *Base) OnInteractionEvent(data map[string]any) error {
	b.MergeVariables(data)
	return nil
}

// Noop is the default feedback: every hook does nothing.
type Noop struct {
	Base
}

// NewNoop returns a fresh default feedback.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) OnInit() error                       { return nil }
func (*Noop) OnPlay() error                       { return nil }
func (*Noop) OnPause() error                      { return nil }
func (*Noop) OnStop() error                       { return nil }
func (*Noop) OnQuit() error                       { return nil }
func (*Noop) OnControlEvent(map[string]any) error { return nil }
