// Package feedbacks contains the feedbacks compiled into the controller.
package feedbacks

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultTickInterval = 50 * time.Millisecond

// Loop is a cooperative main loop. Run blocks until Stop or Quit is
// called or a tick callback returns an error. Pause toggles between
// PlayTick and PauseTick; Tick runs on every pass regardless.
type Loop struct {
	Interval  time.Duration
	Tick      func() error
	PlayTick  func() error
	PauseTick func() error

	running atomic.Bool
	paused  atomic.Bool
	quit    atomic.Bool
	// stopped is set by Stop and cleared by Arm or by the Run it ended.
	stopped atomic.Bool
	arms    atomic.Uint64

	wakeOnce sync.Once
	wake     chan struct{}
}

func (l *Loop) wakeCh() chan struct{} {
	l.wakeOnce.Do(func() { l.wake = make(chan struct{}, 1) })
	return l.wake
}

func (l *Loop) nudge() {
	select {
	case l.wakeCh() <- struct{}{}:
	default:
	}
}

// Run executes the loop. It returns immediately once Quit has been called,
// or when Stop was called after the last Arm and no Run has consumed it.
func (l *Loop) Run() error {
	if l.quit.Load() {
		return nil
	}
	interval := l.Interval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	wake := l.wakeCh()
	// The stopped flag carries any earlier Stop, so the nudge is redundant.
	select {
	case <-wake:
	default:
	}

	l.running.Store(true)
	defer l.running.Store(false)
	if l.stopped.Swap(false) {
		return nil
	}
	armed := l.arms.Load()
	defer func() {
		// A Stop after a play requested during this Run belongs to that play.
		if l.arms.Load() == armed {
			l.stopped.Store(false)
		}
	}()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for l.running.Load() && !l.quit.Load() {
		if err := l.pass(); err != nil {
			return err
		}
		if !l.running.Load() {
			break
		}
		timer.Reset(interval)
		select {
		case <-timer.C:
		case <-wake:
		}
	}
	return nil
}

func (l *Loop) pass() error {
	if l.Tick != nil {
		if err := l.Tick(); err != nil {
			return err
		}
	}
	if l.paused.Load() {
		if l.PauseTick != nil {
			return l.PauseTick()
		}
		return nil
	}
	if l.PlayTick != nil {
		return l.PlayTick()
	}
	return nil
}

// Running reports whether Run is active.
func (l *Loop) Running() bool { return l.running.Load() }

// Paused reports the pause flag.
func (l *Loop) Paused() bool { return l.paused.Load() }

// Pause toggles the pause flag.
func (l *Loop) Pause() {
	for {
		old := l.paused.Load()
		if l.paused.CompareAndSwap(old, !old) {
			return
		}
	}
}

// Arm discards a pending Stop. Call it when a new play is requested so
// that only a Stop arriving after the request cancels it.
func (l *Loop) Arm() {
	l.stopped.Store(false)
	l.arms.Add(1)
}

// Stop ends the current Run. When no Run is active the stop stays pending
// and the next Run returns at once unless Arm is called first.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.running.Store(false)
	l.nudge()
}

// Quit ends the current Run and makes every later Run return immediately.
func (l *Loop) Quit() {
	l.quit.Store(true)
	l.Stop()
}
