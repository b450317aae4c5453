package hooks

import (
	"context"
	"log/slog"
)

// Publisher is the subset of the event hub the events module needs.
type Publisher interface {
	Publish(eventType string, data any)
}

// LogModule returns a module that logs every lifecycle hook at info.
func LogModule(logger *slog.Logger) func() Module {
	if logger == nil {
		logger = slog.Default()
	}
	return func() Module {
		mod := make(Module, len(Supported))
		for _, name := range Supported {
			mod[string(name)] = Func(func(context.Context) error {
				logger.Info("lifecycle hook", "hook", string(name))
				return nil
			})
		}
		return mod
	}
}

// EventsModule returns a module that publishes a "hook.<name>" event for
// every lifecycle hook.
func EventsModule(pub Publisher) func() Module {
	return func() Module {
		mod := make(Module, len(Supported))
		for _, name := range Supported {
			mod[string(name)] = Func(func(context.Context) error {
				pub.Publish("hook."+string(name), map[string]any{"hook": string(name)})
				return nil
			})
		}
		return mod
	}
}

// RegisterBuiltins registers the "log" and "events" modules on l.
func RegisterBuiltins(l *Loader, logger *slog.Logger, pub Publisher) {
	l.Register("log", LogModule(logger))
	if pub != nil {
		l.Register("events", EventsModule(pub))
	}
}
