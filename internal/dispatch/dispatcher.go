package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/feedbackd/internal/events"
	"github.com/mattjoyce/feedbackd/internal/hooks"
	"github.com/mattjoyce/feedbackd/internal/journal"
	"github.com/mattjoyce/feedbackd/internal/log"
	"github.com/mattjoyce/feedbackd/internal/plugin"
	"github.com/mattjoyce/feedbackd/internal/protocol"
)

// DeclaredNameKey is the interaction payload key naming the feedback that
// the next sendinit loads.
const DeclaredNameKey = "_feedback"

// Loader resolves feedback names. *plugin.Registry satisfies it.
type Loader interface {
	Resolve(name string) (plugin.Plugin, error)
	Names() []string
}

// Replier sends a reply signal back to a peer.
type Replier interface {
	Reply(origin net.Addr, sig *protocol.Signal) error
}

// Publisher receives lifecycle events. *events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Recorder persists one journal row per signal.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Options configures a Dispatcher. Codec and Loader are required.
type Options struct {
	Codec   protocol.Codec
	Loader  Loader
	Hooks   hooks.Set
	Replier Replier
	Events  Publisher
	Journal Recorder
	// Default builds the feedback used at start, after quit and when a
	// sendinit load fails. Defaults to plugin.NewNoop.
	Default func() plugin.Plugin
	// DefaultName is reported as the feedback name while the default holds
	// the slot.
	DefaultName string
	Logger      *slog.Logger
}

// Dispatcher is the feedback controller: it owns the active feedback slot,
// the controller config and the play handoff.
type Dispatcher struct {
	codec       protocol.Codec
	loader      Loader
	hooks       hooks.Set
	replier     Replier
	events      Publisher
	journal     Recorder
	newDefault  func() plugin.Plugin
	defaultName string
	logger      *slog.Logger

	slot    *Slot
	handoff *handoff

	cfgMu sync.RWMutex
	cfg   map[string]any

	playing  atomic.Bool
	plays    atomic.Int64
	received atomic.Int64
	dropped  atomic.Int64
	faults   atomic.Int64
	lastCmd  atomic.Value // string
}

// New creates a Dispatcher holding the default feedback.
func New(opts Options) (*Dispatcher, error) {
	if opts.Codec == nil {
		return nil, errors.New("dispatch: codec is required")
	}
	if opts.Loader == nil {
		return nil, errors.New("dispatch: loader is required")
	}
	if opts.Default == nil {
		opts.Default = func() plugin.Plugin { return plugin.NewNoop() }
	}
	if opts.Logger == nil {
		opts.Logger = log.WithComponent("dispatch")
	}

	d := &Dispatcher{
		codec:       opts.Codec,
		loader:      opts.Loader,
		hooks:       opts.Hooks,
		replier:     opts.Replier,
		events:      opts.Events,
		journal:     opts.Journal,
		newDefault:  opts.Default,
		defaultName: opts.DefaultName,
		logger:      opts.Logger,
		handoff:     newHandoff(),
		cfg:         map[string]any{},
	}
	d.slot = newSlot(d.defaultPlugin(), d.defaultName)
	d.lastCmd.Store("")
	return d, nil
}

// Slot exposes the active feedback holder.
func (d *Dispatcher) Slot() *Slot { return d.slot }

// OnSignal decodes one packet from addr and handles it. It never panics
// and never returns an error: undecodable packets are logged and dropped.
func (d *Dispatcher) OnSignal(ctx context.Context, addr net.Addr, raw []byte) {
	d.received.Add(1)

	sig, err := d.decode(raw)
	if err != nil {
		d.dropped.Add(1)
		d.logger.Warn("parsing of signal failed, ignoring it", "origin", addrString(addr), "bytes", len(raw), "error", err)
		d.publish(events.SignalDropped, map[string]any{"origin": addrString(addr), "error": err.Error()})
		d.record(ctx, journal.Entry{
			Kind:   "dropped",
			Origin: addrString(addr),
			Digest: protocol.Digest(raw),
			Detail: err.Error(),
		})
		return
	}
	sig.Origin = addr
	d.HandleSignal(ctx, sig)
}

func (d *Dispatcher) decode(raw []byte) (sig *protocol.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig, err = nil, &protocol.DecodeError{Reason: fmt.Sprintf("codec panic: %v", r)}
		}
	}()
	sig, err = d.codec.Decode(raw)
	if err == nil && (sig == nil || !sig.Type.Valid()) {
		err = &protocol.DecodeError{Reason: "codec returned no valid signal"}
	}
	return sig, err
}

// HandleSignal routes an already decoded signal by type.
func (d *Dispatcher) HandleSignal(ctx context.Context, sig *protocol.Signal) {
	logger := d.logger.With("signal_id", sig.ID, "type", string(sig.Type))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handling signal caused a panic", "panic", r)
		}
	}()

	d.publish(events.SignalReceived, map[string]any{
		"signal_id": sig.ID,
		"type":      string(sig.Type),
		"command":   sig.Command().String(),
		"origin":    addrString(sig.Origin),
	})
	d.record(ctx, journal.Entry{
		SignalID: sig.ID,
		Kind:     string(sig.Type),
		Command:  sig.Command().String(),
		Origin:   addrString(sig.Origin),
		Digest:   sig.Digest,
	})

	switch sig.Type {
	case protocol.TypeControl:
		p := d.slot.Plugin()
		d.callPlugin(logger, "control", func() error { return p.OnControlEvent(sig.DataCopy()) })
	case protocol.TypeControllerConfig:
		d.replaceConfig(sig.DataCopy())
		logger.Debug("controller config replaced", "keys", len(sig.Data))
	case protocol.TypeInteraction:
		d.handleInteraction(ctx, logger, sig)
	default:
		logger.Warn("unknown signal type, ignoring it")
	}
}

func (d *Dispatcher) handleInteraction(ctx context.Context, logger *slog.Logger, sig *protocol.Signal) {
	cmd := sig.Command()
	logger = logger.With("command", cmd.String())
	logger.Info("got interaction signal", "keys", len(sig.Data))
	d.lastCmd.Store(cmd.String())

	// Query commands are answered by the controller alone.
	switch cmd {
	case protocol.CmdGetFeedbacks:
		d.reply(logger, sig, map[string]any{"feedbacks": d.loader.Names()})
		return
	case protocol.CmdGetVariables:
		d.reply(logger, sig, map[string]any{"variables": d.variables(logger)})
		return
	}

	d.deliverInteraction(logger, sig)

	switch cmd {
	case protocol.CmdPlay:
		logger.Info("received play signal")
		d.runHook(ctx, logger, hooks.PrePlay)
		if a, ok := d.slot.Plugin().(plugin.PlayArmer); ok {
			d.callPlugin(logger, "arm", func() error { a.ArmPlay(); return nil })
		}
		if !d.handoff.raise() {
			logger.Debug("play already pending")
		}
		d.runHook(ctx, logger, hooks.PostPlay)
	case protocol.CmdPause:
		logger.Info("received pause signal")
		d.runHook(ctx, logger, hooks.PrePause)
		p := d.slot.Plugin()
		d.callPlugin(logger, "pause", p.OnPause)
		d.runHook(ctx, logger, hooks.PostPause)
	case protocol.CmdStop:
		logger.Info("received stop signal")
		d.runHook(ctx, logger, hooks.PreStop)
		p := d.slot.Plugin()
		d.callPlugin(logger, "stop", p.OnStop)
		d.runHook(ctx, logger, hooks.PostStop)
	case protocol.CmdQuit:
		logger.Info("received quit signal")
		d.quit(ctx, logger)
	case protocol.CmdSendInit:
		logger.Info("received sendinit signal")
		d.sendInit(ctx, logger, sig)
	case protocol.CmdNone:
		logger.Info("received generic interaction signal")
		return
	default:
		logger.Info("unknown command, treated as generic interaction")
		return
	}
	d.publish(events.LifecyclePrefix+string(cmd), map[string]any{"signal_id": sig.ID})
}

// deliverInteraction hands the payload to the active feedback and records
// a declared feedback name if the payload carries one.
func (d *Dispatcher) deliverInteraction(logger *slog.Logger, sig *protocol.Signal) {
	if name, ok := sig.Data[DeclaredNameKey].(string); ok {
		d.slot.Declare(name)
	}
	p := d.slot.Plugin()
	d.callPlugin(logger, "interaction", func() error { return p.OnInteractionEvent(sig.DataCopy()) })
}

// retire invokes quit on the active feedback unless it is an idle default
// that has nothing to tear down.
func (d *Dispatcher) retire(logger *slog.Logger) {
	p, _, isDefault := d.slot.Current()
	if isDefault && !d.playing.Load() {
		logger.Debug("active feedback is the idle default, skipping quit")
		return
	}
	d.callPlugin(logger, "quit", p.OnQuit)
}

func (d *Dispatcher) quit(ctx context.Context, logger *slog.Logger) {
	d.runHook(ctx, logger, hooks.PreQuit)
	_, _, wasDefault := d.slot.Current()
	wasPlaying := d.playing.Load()
	d.retire(logger)
	if !wasDefault || wasPlaying {
		d.slot.Replace(d.defaultPlugin(), d.defaultName, true)
	}
	d.runHook(ctx, logger, hooks.PostQuit)
}

func (d *Dispatcher) sendInit(ctx context.Context, logger *slog.Logger, sig *protocol.Signal) {
	d.retire(logger)

	name := d.declaredName()
	next, err := d.resolve(name)
	isDefault := false
	if err != nil {
		logger.Error("unable to load feedback, falling back to default", "feedback", name, "error", err)
		d.publish(events.FeedbackLoadFailed, map[string]any{"feedback": name, "error": err.Error()})
		next, name, isDefault = d.defaultPlugin(), d.defaultName, true
	}
	d.slot.Replace(next, name, isDefault)
	if !isDefault {
		logger.Info("feedback loaded", "feedback", name)
		d.publish(events.FeedbackLoaded, map[string]any{"feedback": name})
	}

	d.runHook(ctx, logger, hooks.PreInit)
	d.callPlugin(logger, "init", next.OnInit)
	d.runHook(ctx, logger, hooks.PostInit)

	d.deliverInteraction(logger, sig)
}

// resolve calls the loader, turning panics and nil feedbacks into a
// *plugin.LoadError.
func (d *Dispatcher) resolve(name string) (p plugin.Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, &plugin.LoadError{Name: name, Err: fmt.Errorf("loader panic: %v", r)}
		}
	}()
	p, err = d.loader.Resolve(name)
	if err == nil && p == nil {
		err = &plugin.LoadError{Name: name, Err: errors.New("loader returned no feedback")}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// declaredName prefers the name recorded from interaction payloads and
// falls back to the active feedback's own _feedback variable.
func (d *Dispatcher) declaredName() string {
	if name := d.slot.Declared(); name != "" {
		return name
	}
	var name string
	p := d.slot.Plugin()
	_ = plugin.Call("variables", func() error {
		name, _ = p.Variables()[DeclaredNameKey].(string)
		return nil
	})
	return name
}

func (d *Dispatcher) variables(logger *slog.Logger) map[string]any {
	var vars map[string]any
	p := d.slot.Plugin()
	d.callPlugin(logger, "variables", func() error {
		vars = p.Variables()
		return nil
	})
	if vars == nil {
		vars = map[string]any{}
	}
	return vars
}

func (d *Dispatcher) defaultPlugin() plugin.Plugin {
	var p plugin.Plugin
	if err := plugin.Call("default", func() error { p = d.newDefault(); return nil }); err != nil || p == nil {
		d.logger.Error("default feedback constructor failed, using noop", "error", err)
		return plugin.NewNoop()
	}
	return p
}

// callPlugin invokes one feedback hook at the dispatch boundary. Errors and
// panics are logged and published, never propagated.
func (d *Dispatcher) callPlugin(logger *slog.Logger, hook string, fn func() error) {
	if err := plugin.Call(hook, fn); err != nil {
		d.fault(logger, hook, err)
	}
}

func (d *Dispatcher) fault(logger *slog.Logger, hook string, err error) {
	d.faults.Add(1)
	attrs := []any{"hook", hook, "error", err}
	var f *plugin.Fault
	if errors.As(err, &f) && f.Panicked() {
		attrs = append(attrs, "stack", string(f.Stack))
	}
	logger.Error("feedback hook failed", attrs...)
	d.publish(events.PluginFault, map[string]any{"hook": hook, "error": err.Error()})
}

func (d *Dispatcher) runHook(ctx context.Context, logger *slog.Logger, name hooks.Name) {
	if err := d.hooks.Run(ctx, name); err != nil {
		logger.Error("controller hook failed", "hook", string(name), "error", err)
	}
}

func (d *Dispatcher) reply(logger *slog.Logger, sig *protocol.Signal, data map[string]any) {
	if d.replier == nil || sig.Origin == nil {
		logger.Warn("cannot reply, no replier or origin")
		return
	}
	if err := d.replier.Reply(sig.Origin, protocol.NewReply(data)); err != nil {
		logger.Error("reply failed", "origin", sig.Origin.String(), "error", err)
		return
	}
	logger.Debug("reply sent", "origin", sig.Origin.String())
}

func (d *Dispatcher) replaceConfig(cfg map[string]any) {
	d.cfgMu.Lock()
	d.cfg = cfg
	d.cfgMu.Unlock()
	d.publish(events.ConfigReplaced, map[string]any{"keys": len(cfg)})
}

// ControllerConfig returns a copy of the controller-level settings.
func (d *Dispatcher) ControllerConfig() map[string]any {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	out := make(map[string]any, len(d.cfg))
	maps.Copy(out, d.cfg)
	return out
}

// Status is a point-in-time view of the controller.
type Status struct {
	Feedback         string         `json:"feedback"`
	Default          bool           `json:"default"`
	Declared         string         `json:"declared,omitempty"`
	Playing          bool           `json:"playing"`
	Plays            int64          `json:"plays"`
	LastCommand      string         `json:"last_command,omitempty"`
	SignalsReceived  int64          `json:"signals_received"`
	SignalsDropped   int64          `json:"signals_dropped"`
	Faults           int64          `json:"faults"`
	ControllerConfig map[string]any `json:"controller_config"`
	Hooks            []string       `json:"hooks"`
}

// Status reports the controller state.
func (d *Dispatcher) Status() Status {
	_, name, isDefault := d.slot.Current()
	installed := d.hooks.Installed()
	names := make([]string, len(installed))
	for i, n := range installed {
		names[i] = string(n)
	}
	last, _ := d.lastCmd.Load().(string)
	return Status{
		Feedback:         name,
		Default:          isDefault,
		Declared:         d.slot.Declared(),
		Playing:          d.playing.Load(),
		Plays:            d.plays.Load(),
		LastCommand:      last,
		SignalsReceived:  d.received.Load(),
		SignalsDropped:   d.dropped.Load(),
		Faults:           d.faults.Load(),
		ControllerConfig: d.ControllerConfig(),
		Hooks:            names,
	}
}

// Shutdown quits the active feedback so that an in-flight play returns.
func (d *Dispatcher) Shutdown() {
	p := d.slot.Plugin()
	d.callPlugin(d.logger, "quit", p.OnQuit)
}

func (d *Dispatcher) publish(eventType string, data any) {
	if d.events != nil {
		d.events.Publish(eventType, data)
	}
}

func (d *Dispatcher) record(ctx context.Context, e journal.Entry) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Record(ctx, e); err != nil {
		d.logger.Warn("journal record failed", "error", err)
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
