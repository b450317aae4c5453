package dispatch

import "context"

// handoff is a single-slot wake-up flag between the dispatch and execution
// goroutines. Raising an already raised flag has no effect.
type handoff struct {
	ch chan struct{}
}

func newHandoff() *handoff {
	return &handoff{ch: make(chan struct{}, 1)}
}

// raise sets the flag and reports whether it was previously clear.
func (h *handoff) raise() bool {
	select {
	case h.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// wait blocks until the flag is raised, clears it and returns true, or
// returns false when ctx is done.
func (h *handoff) wait(ctx context.Context) bool {
	select {
	case <-h.ch:
		return true
	case <-ctx.Done():
		return false
	}
}
