package dispatch

import (
	"sync"

	"github.com/mattjoyce/feedbackd/internal/plugin"
)

// Slot holds the single active feedback and the name it was loaded under.
type Slot struct {
	mu        sync.RWMutex
	plugin    plugin.Plugin
	name      string
	declared  string
	isDefault bool
}

func newSlot(p plugin.Plugin, name string) *Slot {
	return &Slot{plugin: p, name: name, isDefault: true}
}

// Current returns the active feedback, its loaded name and whether it is
// the default feedback.
func (s *Slot) Current() (plugin.Plugin, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plugin, s.name, s.isDefault
}

// Plugin returns the active feedback.
func (s *Slot) Plugin() plugin.Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plugin
}

// Declare records the feedback name the controller asked for. Sendinit
// loads this name.
func (s *Slot) Declare(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declared = name
}

// Declared returns the last declared feedback name.
func (s *Slot) Declared() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.declared
}

// Replace swaps in p and returns the previous occupant. The declared name
// is cleared; the next interaction payload sets it again.
func (s *Slot) Replace(p plugin.Plugin, name string, isDefault bool) plugin.Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.plugin
	s.plugin = p
	s.name = name
	s.declared = ""
	s.isDefault = isDefault
	return prev
}
