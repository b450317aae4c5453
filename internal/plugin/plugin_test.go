package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseVariables(t *testing.T) {
	var b Base
	assert.Empty(t, b.Variables())

	require.NoError(t, b.OnInteractionEvent(map[string]any{"x": 5, "_feedback": "thermometer"}))
	b.SetVariable("level", 0.5)

	vars := b.Variables()
	assert.Equal(t, 5, vars["x"])
	assert.Equal(t, "thermometer", vars["_feedback"])
	assert.Equal(t, 0.5, vars["level"])

	// Snapshot must not alias internal state.
	vars["x"] = 99
	v, ok := b.Variable("x")
	assert.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestNoopHooks(t *testing.T) {
	n := NewNoop()
	assert.NoError(t, n.OnInit())
	assert.NoError(t, n.OnPlay())
	assert.NoError(t, n.OnPause())
	assert.NoError(t, n.OnStop())
	assert.NoError(t, n.OnQuit())
	assert.NoError(t, n.OnControlEvent(map[string]any{"cl_output": 1}))
	assert.NoError(t, n.OnInteractionEvent(map[string]any{"a": 1}))
	assert.Equal(t, map[string]any{"a": 1}, n.Variables())
}

func TestCall(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, Call("play", func() error { return nil }))
	})

	t.Run("error is wrapped in fault", func(t *testing.T) {
		cause := errors.New("boom")
		err := Call("pause", func() error { return cause })
		var f *Fault
		require.True(t, errors.As(err, &f))
		assert.Equal(t, "pause", f.Hook)
		assert.False(t, f.Panicked())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		err := Call("stop", func() error { panic("kaboom") })
		var f *Fault
		require.True(t, errors.As(err, &f))
		assert.True(t, f.Panicked())
		assert.Contains(t, f.Error(), "kaboom")
	})
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("noop", "does nothing", func() (Plugin, error) { return NewNoop(), nil }))
	require.NoError(t, reg.Register("broken", "", func() (Plugin, error) { return nil, errors.New("no display") }))
	require.NoError(t, reg.Register("panicky", "", func() (Plugin, error) { panic("ctor") }))
	require.NoError(t, reg.Register("nilly", "", func() (Plugin, error) { return nil, nil }))

	assert.Error(t, reg.Register("noop", "", func() (Plugin, error) { return NewNoop(), nil }), "duplicate")
	assert.Error(t, reg.Register("", "", func() (Plugin, error) { return NewNoop(), nil }))
	assert.Error(t, reg.Register("x", "", nil))

	p, err := reg.Resolve("noop")
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, p)

	p2, err := reg.Resolve("noop")
	require.NoError(t, err)
	assert.NotSame(t, p, p2, "each resolve builds a fresh instance")

	for _, name := range []string{"missing", "broken", "panicky", "nilly"} {
		t.Run(name, func(t *testing.T) {
			p, err := reg.Resolve(name)
			assert.Nil(t, p)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, name, le.Name)
		})
	}

	_, err = reg.Resolve("missing")
	assert.ErrorIs(t, err, ErrUnknownFeedback)

	assert.Equal(t, []string{"broken", "nilly", "noop", "panicky"}, reg.Names())
}
