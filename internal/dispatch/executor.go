package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/feedbackd/internal/events"
	"github.com/mattjoyce/feedbackd/internal/plugin"
)

// Executor runs the active feedback's OnPlay each time the play handoff is
// raised. Only one play runs at a time.
type Executor struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewExecutor creates the execution loop for d.
func NewExecutor(d *Dispatcher) *Executor {
	return &Executor{d: d, logger: d.logger.With("loop", "execution")}
}

// Run blocks until ctx is cancelled. A play in progress is not interrupted
// by cancellation; call Dispatcher.Shutdown to ask the feedback to quit.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("execution loop started")
	defer e.logger.Info("execution loop stopped")

	for {
		e.logger.Debug("waiting for play event")
		if !e.d.handoff.wait(ctx) {
			return ctx.Err()
		}
		e.play()
	}
}

func (e *Executor) play() {
	runID := uuid.NewString()
	p, name, _ := e.d.slot.Current()
	logger := e.logger.With("run_id", runID, "feedback", name)

	e.d.playing.Store(true)
	e.d.plays.Add(1)
	e.d.publish(events.PlayStarted, map[string]any{"run_id": runID, "feedback": name})
	logger.Info("got play event, starting feedback play")

	start := time.Now()
	err := plugin.Call("play", p.OnPlay)
	e.d.playing.Store(false)

	if err != nil {
		e.d.fault(logger, "play", err)
	}
	logger.Info("feedback play terminated", "duration", time.Since(start).String())
	e.d.publish(events.PlayFinished, map[string]any{
		"run_id":   runID,
		"feedback": name,
		"ok":       err == nil,
	})
}
