package dispatch

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/feedbackd/internal/events"
	"github.com/mattjoyce/feedbackd/internal/feedbacks"
	"github.com/mattjoyce/feedbackd/internal/hooks"
	"github.com/mattjoyce/feedbackd/internal/journal"
	"github.com/mattjoyce/feedbackd/internal/log"
	"github.com/mattjoyce/feedbackd/internal/plugin"
	"github.com/mattjoyce/feedbackd/internal/plugin/mocks"
	"github.com/mattjoyce/feedbackd/internal/protocol"
)

var peer = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

type fakeReplier struct {
	mu      sync.Mutex
	replies []*protocol.Signal
	origins []net.Addr
}

func (r *fakeReplier) Reply(origin net.Addr, sig *protocol.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origins = append(r.origins, origin)
	r.replies = append(r.replies, sig)
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *fakeRecorder) Record(_ context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// countingPlugin is a default feedback that counts quits and keeps every
// interaction payload.
type countingPlugin struct {
	plugin.Noop

	quits        atomic.Int32
	mu           sync.Mutex
	interactions []map[string]any
}

func (c *countingPlugin) OnQuit() error {
	c.quits.Add(1)
	return nil
}

func (c *countingPlugin) OnInteractionEvent(data map[string]any) error {
	c.mu.Lock()
	c.interactions = append(c.interactions, data)
	c.mu.Unlock()
	return c.Noop.OnInteractionEvent(data)
}

type hookRecorder struct {
	mu    sync.Mutex
	calls []hooks.Name
}

func (h *hookRecorder) set() hooks.Set {
	funcs := make(map[hooks.Name]hooks.Func, len(hooks.Supported))
	for _, name := range hooks.Supported {
		funcs[name] = func(context.Context) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.calls = append(h.calls, name)
			return nil
		}
	}
	return hooks.NewSet("test", funcs)
}

func (h *hookRecorder) names() []hooks.Name {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hooks.Name(nil), h.calls...)
}

type harness struct {
	d        *Dispatcher
	reg      *plugin.Registry
	replier  *fakeReplier
	recorder *fakeRecorder
	hooks    *hookRecorder
	defaults []*countingPlugin
	mu       sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		reg:      plugin.NewRegistry(),
		replier:  &fakeReplier{},
		recorder: &fakeRecorder{},
		hooks:    &hookRecorder{},
	}
	d, err := New(Options{
		Codec:   protocol.JSONCodec{},
		Loader:  h.reg,
		Hooks:   h.hooks.set(),
		Replier: h.replier,
		Journal: h.recorder,
		Default: func() plugin.Plugin {
			p := &countingPlugin{}
			h.mu.Lock()
			h.defaults = append(h.defaults, p)
			h.mu.Unlock()
			return p
		},
		Logger: log.Discard(),
	})
	require.NoError(t, err)
	h.d = d
	return h
}

func (h *harness) currentDefault() *countingPlugin {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.defaults[len(h.defaults)-1]
}

func (h *harness) interaction(cmd protocol.Command, data map[string]any) {
	sig := &protocol.Signal{ID: "sig", Type: protocol.TypeInteraction, Data: data, Origin: peer}
	if cmd != protocol.CmdNone {
		sig.Commands = []protocol.Command{cmd}
	}
	h.d.HandleSignal(context.Background(), sig)
}

func startExecutor(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewExecutor(d).Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("executor did not stop")
		}
	})
}

func TestNewRequiresCodecAndLoader(t *testing.T) {
	_, err := New(Options{Loader: plugin.NewRegistry()})
	assert.Error(t, err)
	_, err = New(Options{Codec: protocol.JSONCodec{}})
	assert.Error(t, err)

	d, err := New(Options{Codec: protocol.JSONCodec{}, Loader: plugin.NewRegistry(), Logger: log.Discard()})
	require.NoError(t, err)
	p, _, isDefault := d.Slot().Current()
	assert.True(t, isDefault)
	assert.IsType(t, &plugin.Noop{}, p)
}

func TestOnSignalMalformedBytes(t *testing.T) {
	packets := map[string][]byte{
		"nil":              nil,
		"empty":            {},
		"whitespace":       []byte("   \n"),
		"not json":         []byte("not json"),
		"binary":           {0xff, 0xfe, 0x00},
		"unknown type":     []byte(`{"type":"bogus"}`),
		"missing type":     []byte(`{"commands":["play"]}`),
		"array data":       []byte(`{"type":"control","data":[1,2]}`),
		"unknown field":    []byte(`{"type":"control","extra":1}`),
		"trailing garbage": []byte(`{"type":"interaction"} {}`),
	}

	h := newHarness(t)
	h.d.replaceConfig(map[string]any{"keep": "me"})
	before := h.d.Slot().Plugin()

	for name, raw := range packets {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() { h.d.OnSignal(context.Background(), peer, raw) })
			assert.Same(t, before, h.d.Slot().Plugin())
			assert.Equal(t, map[string]any{"keep": "me"}, h.d.ControllerConfig())
		})
	}

	st := h.d.Status()
	assert.Equal(t, int64(len(packets)), st.SignalsReceived)
	assert.Equal(t, int64(len(packets)), st.SignalsDropped)
	for _, e := range h.recorder.entries {
		assert.Equal(t, "dropped", e.Kind)
		assert.NotEmpty(t, e.Detail)
	}
	assert.Empty(t, h.currentDefault().interactions)
}

type panickyCodec struct{}

func (panickyCodec) Decode([]byte) (*protocol.Signal, error) { panic("decoder bug") }
func (panickyCodec) Encode(*protocol.Signal) ([]byte, error) { return nil, nil }

func TestOnSignalSurvivesCodecPanic(t *testing.T) {
	d, err := New(Options{Codec: panickyCodec{}, Loader: plugin.NewRegistry(), Logger: log.Discard()})
	require.NoError(t, err)
	assert.NotPanics(t, func() { d.OnSignal(context.Background(), peer, []byte("x")) })
	assert.Equal(t, int64(1), d.Status().SignalsDropped)
}

func TestControllerConfigReplacedWholesale(t *testing.T) {
	h := newHarness(t)

	h.d.OnSignal(context.Background(), peer, []byte(`{"type":"controller-config","data":{"a":1}}`))
	assert.Equal(t, map[string]any{"a": int64(1)}, h.d.ControllerConfig())

	h.d.OnSignal(context.Background(), peer, []byte(`{"type":"controller-config","data":{"b":2}}`))
	assert.Equal(t, map[string]any{"b": int64(2)}, h.d.ControllerConfig())

	// Returned map is a copy.
	cfg := h.d.ControllerConfig()
	cfg["c"] = 3
	assert.Equal(t, map[string]any{"b": int64(2)}, h.d.ControllerConfig())
}

func TestPlayHandoffCoalesces(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	m.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil).Times(5)
	m.EXPECT().OnPlay().Return(nil).Times(1)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)

	for i := 0; i < 5; i++ {
		h.interaction(protocol.CmdPlay, nil)
	}
	startExecutor(t, h.d)

	require.Eventually(t, func() bool {
		st := h.d.Status()
		return st.Plays == 1 && !st.Playing
	}, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), h.d.Status().Plays)

	var pre, post int
	for _, n := range h.hooks.names() {
		switch n {
		case hooks.PrePlay:
			pre++
		case hooks.PostPlay:
			post++
		}
	}
	assert.Equal(t, 5, pre)
	assert.Equal(t, 5, post)
}

func TestPlayDuringPlayWaitsForReturn(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	m.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil).AnyTimes()
	m.EXPECT().OnPlay().DoAndReturn(func() error {
		started <- struct{}{}
		<-release
		return nil
	}).Times(2)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)
	startExecutor(t, h.d)

	h.interaction(protocol.CmdPlay, nil)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("play did not start")
	}
	assert.True(t, h.d.Status().Playing)

	h.interaction(protocol.CmdPlay, nil)
	h.interaction(protocol.CmdPlay, nil)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), h.d.Status().Plays, "no second play while the first runs")

	close(release)
	require.Eventually(t, func() bool {
		st := h.d.Status()
		return st.Plays == 2 && !st.Playing
	}, 5*time.Second, 5*time.Millisecond)
}

func TestGenericInteractionDeliversData(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	m.EXPECT().OnInteractionEvent(map[string]any{"x": 5}).Return(nil).Times(1)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)

	h.interaction(protocol.CmdNone, map[string]any{"x": 5})

	assert.Empty(t, h.hooks.names(), "no lifecycle transition")
	assert.Same(t, m, h.d.Slot().Plugin())
	assert.Equal(t, "none", h.d.Status().LastCommand)
}

func TestUnknownCommandIsGeneric(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	m.EXPECT().OnInteractionEvent(map[string]any{"y": 1}).Return(nil)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)
	h.interaction(protocol.Command("rewind"), map[string]any{"y": 1})

	assert.Empty(t, h.hooks.names())
	assert.Same(t, m, h.d.Slot().Plugin())
}

func TestControlSignalReachesPlugin(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	m.EXPECT().OnControlEvent(map[string]any{"cls": int64(3)}).Return(nil)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)

	h.d.OnSignal(context.Background(), peer, []byte(`{"type":"control","data":{"cls":3}}`))

	p, name, isDefault := h.d.Slot().Current()
	assert.Same(t, m, p)
	assert.Equal(t, "mock", name)
	assert.False(t, isDefault)
	require.Len(t, h.recorder.entries, 1)
	assert.Equal(t, "control", h.recorder.entries[0].Kind)
	assert.NotEmpty(t, h.recorder.entries[0].Digest)
}

func TestPluginFaultsAreContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	m.EXPECT().OnControlEvent(gomock.Any()).DoAndReturn(func(map[string]any) error { panic("render crash") })
	m.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil).Times(2)
	m.EXPECT().OnPause().Return(errors.New("cannot pause"))
	m.EXPECT().OnStop().Return(nil)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)

	assert.NotPanics(t, func() {
		h.d.HandleSignal(context.Background(), &protocol.Signal{Type: protocol.TypeControl, Data: map[string]any{}})
	})
	h.interaction(protocol.CmdPause, nil)
	h.interaction(protocol.CmdStop, nil)

	assert.Same(t, m, h.d.Slot().Plugin(), "faults never reset the slot")
	assert.Equal(t, int64(2), h.d.Status().Faults)
	assert.Equal(t, []hooks.Name{hooks.PrePause, hooks.PostPause, hooks.PreStop, hooks.PostStop}, h.hooks.names())
}

func TestQueryCommandsDoNotMutate(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	m.EXPECT().Variables().Return(map[string]any{"level": 0.5})

	h := newHarness(t)
	require.NoError(t, h.reg.Register("thermometer", "", func() (plugin.Plugin, error) { return plugin.NewNoop(), nil }))
	h.d.Slot().Replace(m, "mock", false)
	h.d.replaceConfig(map[string]any{"k": "v"})

	h.interaction(protocol.CmdGetFeedbacks, map[string]any{"ignored": true})
	h.interaction(protocol.CmdGetVariables, map[string]any{"ignored": true})

	assert.Same(t, m, h.d.Slot().Plugin())
	assert.Equal(t, map[string]any{"k": "v"}, h.d.ControllerConfig())
	assert.Empty(t, h.hooks.names())

	require.Len(t, h.replier.replies, 2)
	assert.Equal(t, []net.Addr{peer, peer}, h.replier.origins)
	assert.Equal(t, protocol.TypeInteraction, h.replier.replies[0].Type)
	assert.Equal(t, []string{"thermometer"}, h.replier.replies[0].Data["feedbacks"])
	assert.Equal(t, map[string]any{"level": 0.5}, h.replier.replies[1].Data["variables"])
}

func TestQuitResetsToDefault(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	gomock.InOrder(
		m.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil),
		m.EXPECT().OnQuit().Return(nil),
	)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)

	h.interaction(protocol.CmdQuit, nil)

	p, name, isDefault := h.d.Slot().Current()
	assert.True(t, isDefault)
	assert.Empty(t, name)
	def := h.currentDefault()
	assert.Same(t, def, p)
	assert.Equal(t, []hooks.Name{hooks.PreQuit, hooks.PostQuit}, h.hooks.names())

	// Quitting the idle default leaves it in place and does not quit it again.
	h.interaction(protocol.CmdQuit, nil)
	h.interaction(protocol.CmdQuit, nil)
	assert.Same(t, def, h.d.Slot().Plugin())
	assert.Equal(t, int32(0), def.quits.Load())
}

func TestSendInitLoadsDeclaredFeedback(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockPlugin(ctrl)
	payload := map[string]any{"_feedback": "mockfb", "a": int64(1)}
	gomock.InOrder(
		next.EXPECT().OnInit().Return(nil),
		next.EXPECT().OnInteractionEvent(payload).Return(nil),
	)

	h := newHarness(t)
	require.NoError(t, h.reg.Register("mockfb", "", func() (plugin.Plugin, error) { return next, nil }))
	first := h.currentDefault()

	h.interaction(protocol.CmdSendInit, payload)

	p, name, isDefault := h.d.Slot().Current()
	assert.Same(t, next, p)
	assert.Equal(t, "mockfb", name)
	assert.False(t, isDefault)
	assert.Equal(t, []map[string]any{payload}, first.interactions, "payload reached the retiring feedback first")
	assert.Equal(t, int32(0), first.quits.Load(), "idle default is not quit")
	assert.Equal(t, []hooks.Name{hooks.PreInit, hooks.PostInit}, h.hooks.names())
	assert.Equal(t, "mockfb", h.d.Status().Feedback)
}

func TestSendInitRetiresLoadedFeedback(t *testing.T) {
	ctrl := gomock.NewController(t)
	old := mocks.NewMockPlugin(ctrl)
	gomock.InOrder(
		old.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil),
		old.EXPECT().OnQuit().Return(nil),
	)

	h := newHarness(t)
	require.NoError(t, h.reg.Register("noop", "", func() (plugin.Plugin, error) { return plugin.NewNoop(), nil }))
	h.d.Slot().Replace(old, "old", false)

	h.interaction(protocol.CmdSendInit, map[string]any{"_feedback": "noop"})

	_, name, _ := h.d.Slot().Current()
	assert.Equal(t, "noop", name)
}

func TestSendInitLoadFailureFallsBackToDefault(t *testing.T) {
	ctrl := gomock.NewController(t)
	old := mocks.NewMockPlugin(ctrl)
	old.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil)
	old.EXPECT().OnQuit().Return(nil)

	h := newHarness(t)
	require.NoError(t, h.reg.Register("broken", "", func() (plugin.Plugin, error) { return nil, errors.New("no display") }))
	h.d.Slot().Replace(old, "old", false)

	payload := map[string]any{"_feedback": "broken", "keep": "this"}
	h.interaction(protocol.CmdSendInit, payload)

	p, name, isDefault := h.d.Slot().Current()
	assert.True(t, isDefault)
	assert.Empty(t, name)
	def := h.currentDefault()
	assert.Same(t, def, p)
	assert.Equal(t, []map[string]any{payload}, def.interactions, "payload still delivered to the fallback")
	assert.Equal(t, "this", def.Variables()["keep"])
	assert.Equal(t, "broken", h.d.Slot().Declared())
	assert.Equal(t, []hooks.Name{hooks.PreInit, hooks.PostInit}, h.hooks.names())
}

type stubLoader struct {
	resolve func(name string) (plugin.Plugin, error)
}

func (l stubLoader) Resolve(name string) (plugin.Plugin, error) { return l.resolve(name) }
func (l stubLoader) Names() []string                            { return nil }

func TestSendInitMisbehavingLoaderFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name    string
		resolve func(string) (plugin.Plugin, error)
	}{
		{
			name:    "nil feedback without error",
			resolve: func(string) (plugin.Plugin, error) { return nil, nil },
		},
		{
			name:    "loader panics",
			resolve: func(string) (plugin.Plugin, error) { panic("loader exploded") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			old := mocks.NewMockPlugin(ctrl)
			old.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil)
			old.EXPECT().OnQuit().Return(nil)

			def := &countingPlugin{}
			d, err := New(Options{
				Codec:       protocol.JSONCodec{},
				Loader:      stubLoader{resolve: tt.resolve},
				Default:     func() plugin.Plugin { return def },
				DefaultName: "noop",
				Logger:      log.Discard(),
			})
			require.NoError(t, err)
			d.Slot().Replace(old, "old", false)

			payload := map[string]any{"_feedback": "x", "keep": "this"}
			assert.NotPanics(t, func() {
				d.HandleSignal(context.Background(), &protocol.Signal{
					ID:       "sig",
					Type:     protocol.TypeInteraction,
					Commands: []protocol.Command{protocol.CmdSendInit},
					Data:     payload,
					Origin:   peer,
				})
			})

			p, name, isDefault := d.Slot().Current()
			require.NotNil(t, p)
			assert.Same(t, def, p)
			assert.True(t, isDefault)
			assert.Equal(t, "noop", name)
			assert.Equal(t, []map[string]any{payload}, def.interactions)
		})
	}
}

func TestSendInitUsesFeedbackVariableWhenUndeclared(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.reg.Register("noop", "", func() (plugin.Plugin, error) { return plugin.NewNoop(), nil }))

	withName := plugin.NewNoop()
	withName.SetVariable(DeclaredNameKey, "noop")
	h.d.Slot().Replace(withName, "self", false)

	h.interaction(protocol.CmdSendInit, nil)
	_, name, isDefault := h.d.Slot().Current()
	assert.Equal(t, "noop", name)
	assert.False(t, isDefault)
}

func TestExecutorSurvivesPlayPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	m.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil).AnyTimes()
	calls := 0
	m.EXPECT().OnPlay().DoAndReturn(func() error {
		calls++
		if calls == 1 {
			panic("play crashed")
		}
		return nil
	}).Times(2)

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)
	startExecutor(t, h.d)

	h.interaction(protocol.CmdPlay, nil)
	require.Eventually(t, func() bool { st := h.d.Status(); return st.Plays == 1 && !st.Playing }, 5*time.Second, 5*time.Millisecond)

	h.interaction(protocol.CmdPlay, nil)
	require.Eventually(t, func() bool { st := h.d.Status(); return st.Plays == 2 && !st.Playing }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), h.d.Status().Faults)
}

func TestStopReachesInFlightPlay(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockPlugin(ctrl)
	stop := make(chan struct{})
	started := make(chan struct{})
	m.EXPECT().OnInteractionEvent(gomock.Any()).Return(nil).AnyTimes()
	m.EXPECT().OnPlay().DoAndReturn(func() error {
		close(started)
		<-stop
		return nil
	})
	m.EXPECT().OnStop().DoAndReturn(func() error {
		close(stop)
		return nil
	})

	h := newHarness(t)
	h.d.Slot().Replace(m, "mock", false)
	startExecutor(t, h.d)

	h.interaction(protocol.CmdPlay, nil)
	<-started
	h.interaction(protocol.CmdStop, nil)

	require.Eventually(t, func() bool { return !h.d.Status().Playing }, 5*time.Second, 5*time.Millisecond)
}

func TestStopBeforePlayStartsCancelsPlay(t *testing.T) {
	h := newHarness(t)
	th := feedbacks.NewThermometer()
	require.NoError(t, th.OnInit())
	h.d.Slot().Replace(th, "thermometer", false)

	// Both signals land before the executor drains the handoff.
	h.interaction(protocol.CmdPlay, nil)
	h.interaction(protocol.CmdStop, nil)
	startExecutor(t, h.d)

	require.Eventually(t, func() bool {
		st := h.d.Status()
		return st.Plays == 1 && !st.Playing
	}, 5*time.Second, 10*time.Millisecond, "stopped play should return at once")

	// A later play is not affected by the consumed stop.
	h.interaction(protocol.CmdPlay, nil)
	require.Eventually(t, func() bool { return h.d.Status().Playing }, 5*time.Second, 10*time.Millisecond)
	h.interaction(protocol.CmdStop, nil)
	require.Eventually(t, func() bool {
		st := h.d.Status()
		return st.Plays == 2 && !st.Playing
	}, 5*time.Second, 10*time.Millisecond)
}

func TestQuitWhilePlayingQuitsDefault(t *testing.T) {
	h := newHarness(t)
	def := h.currentDefault()
	h.d.playing.Store(true)

	h.interaction(protocol.CmdQuit, nil)

	assert.Equal(t, int32(1), def.quits.Load())
	assert.NotSame(t, def, h.d.Slot().Plugin())
	assert.True(t, h.d.Status().Default)
}

func TestStatusReportsHooksAndConfig(t *testing.T) {
	h := newHarness(t)
	h.d.replaceConfig(map[string]any{"k": 1})

	st := h.d.Status()
	assert.True(t, st.Default)
	assert.Len(t, st.Hooks, len(hooks.Supported))
	assert.Equal(t, map[string]any{"k": 1}, st.ControllerConfig)
}

func TestHandoffRaise(t *testing.T) {
	h := newHandoff()
	assert.True(t, h.raise())
	assert.False(t, h.raise())

	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, h.wait(ctx))
	cancel()
	assert.False(t, h.wait(ctx))
}

func TestLifecycleEventsPublished(t *testing.T) {
	hub := events.NewHub(16)
	d, err := New(Options{Codec: protocol.JSONCodec{}, Loader: plugin.NewRegistry(), Events: hub, Logger: log.Discard()})
	require.NoError(t, err)

	d.OnSignal(context.Background(), peer, []byte(`{"type":"interaction","commands":["pause"]}`))
	d.OnSignal(context.Background(), peer, []byte(`garbage`))

	var types []string
	for _, ev := range hub.SnapshotSince(0) {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{events.SignalReceived, "lifecycle.pause", events.SignalDropped}, types)
}
