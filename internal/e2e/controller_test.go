// Package e2e drives a fully wired controller over real UDP sockets.
package e2e

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattjoyce/feedbackd/internal/dispatch"
	"github.com/mattjoyce/feedbackd/internal/events"
	"github.com/mattjoyce/feedbackd/internal/feedbacks"
	"github.com/mattjoyce/feedbackd/internal/hooks"
	"github.com/mattjoyce/feedbackd/internal/journal"
	"github.com/mattjoyce/feedbackd/internal/log"
	"github.com/mattjoyce/feedbackd/internal/plugin"
	"github.com/mattjoyce/feedbackd/internal/protocol"
	"github.com/mattjoyce/feedbackd/internal/storage"
	"github.com/mattjoyce/feedbackd/internal/udp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const echoScript = `#!/bin/sh
read input
echo '{"status":"ok","variables":{"echoed":true}}'
`

type controller struct {
	disp    *dispatch.Dispatcher
	hub     *events.Hub
	journal *journal.Store
	addr    string
	reply   net.PacketConn
	marker  string
}

func createFeedback(t *testing.T, root, name, script string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := "manifest_version: 1\nname: " + name + "\nversion: 0.1.0\nprotocol: 1\nentrypoint: run.sh\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755))
}

func startController(t *testing.T) *controller {
	t.Helper()
	log.Setup("ERROR")
	tmp := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fbDir := filepath.Join(tmp, "feedbacks")
	createFeedback(t, fbDir, "echo", echoScript)
	reg := plugin.NewRegistry()
	require.NoError(t, feedbacks.RegisterBuiltins(reg))
	_, err := plugin.Discover(reg, []string{fbDir}, log.Discard())
	require.NoError(t, err)

	marker := filepath.Join(tmp, "pre_play.marker")
	hooksFile := filepath.Join(tmp, "hooks.yaml")
	require.NoError(t, os.WriteFile(hooksFile, []byte("hooks:\n  pre_play: [\"touch\", \""+marker+"\"]\n"), 0o644))
	set, err := hooks.NewLoader(log.Discard()).Load(hooksFile)
	require.NoError(t, err)

	db, err := storage.OpenSQLite(ctx, filepath.Join(tmp, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := journal.NewStore(db)

	// Replies go to the test's own socket.
	reply, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reply.Close() })
	replyPort := reply.LocalAddr().(*net.UDPAddr).Port

	hub := events.NewHub(64)
	codec := protocol.JSONCodec{}
	disp, err := dispatch.New(dispatch.Options{
		Codec:       codec,
		Loader:      reg,
		Hooks:       set,
		Replier:     udp.NewReplier(codec, replyPort, log.Discard()),
		Events:      hub,
		Journal:     store,
		DefaultName: "noop",
		Logger:      log.Discard(),
	})
	require.NoError(t, err)

	l, err := udp.Listen("127.0.0.1:0", udp.MaxBufferSize, disp, log.Discard())
	require.NoError(t, err)
	go func() { _ = l.Serve(ctx) }()
	go func() { _ = dispatch.NewExecutor(disp).Run(ctx) }()
	t.Cleanup(disp.Shutdown)

	return &controller{
		disp:    disp,
		hub:     hub,
		journal: store,
		addr:    l.Addr().String(),
		reply:   reply,
		marker:  marker,
	}
}

func (c *controller) send(t *testing.T, sig *protocol.Signal) {
	t.Helper()
	require.NoError(t, udp.Send(c.addr, protocol.JSONCodec{}, sig))
}

func (c *controller) sendRaw(t *testing.T, b []byte) {
	t.Helper()
	conn, err := net.Dial("udp", c.addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(b)
	require.NoError(t, err)
}

func (c *controller) awaitReply(t *testing.T) *protocol.Signal {
	t.Helper()
	require.NoError(t, c.reply.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, udp.MaxBufferSize)
	n, _, err := c.reply.ReadFrom(buf)
	require.NoError(t, err)
	sig, err := protocol.JSONCodec{}.Decode(buf[:n])
	require.NoError(t, err)
	return sig
}

func interaction(data map[string]any, cmds ...protocol.Command) *protocol.Signal {
	return &protocol.Signal{Type: protocol.TypeInteraction, Data: data, Commands: cmds}
}

func TestControllerLifecycleOverUDP(t *testing.T) {
	c := startController(t)

	// Discovery: built-ins plus the process feedback.
	c.send(t, interaction(nil, protocol.CmdGetFeedbacks))
	reply := c.awaitReply(t)
	assert.ElementsMatch(t, []any{"alphaburst", "echo", "noop", "thermometer"}, reply.Data["feedbacks"])

	// Declare and load the thermometer.
	c.send(t, interaction(map[string]any{dispatch.DeclaredNameKey: "thermometer"}))
	c.send(t, interaction(nil, protocol.CmdSendInit))
	require.Eventually(t, func() bool {
		return c.disp.Status().Feedback == "thermometer"
	}, 5*time.Second, 10*time.Millisecond)

	c.send(t, interaction(nil, protocol.CmdGetVariables))
	vars, ok := c.awaitReply(t).Data["variables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Neurofeedback Thermometer", vars["caption"])

	// Play, feed a level, stop.
	c.send(t, interaction(nil, protocol.CmdPlay))
	require.Eventually(t, func() bool { return c.disp.Status().Playing }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := os.Stat(c.marker)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "pre_play hook ran")

	c.send(t, &protocol.Signal{Type: protocol.TypeControl, Data: map[string]any{"cl_output": 0.7}})
	c.send(t, interaction(nil, protocol.CmdGetVariables))
	vars, ok = c.awaitReply(t).Data["variables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.7, vars["level"])

	c.send(t, interaction(nil, protocol.CmdStop))
	require.Eventually(t, func() bool { return !c.disp.Status().Playing }, 5*time.Second, 10*time.Millisecond)

	// Quit falls back to the default.
	c.send(t, interaction(nil, protocol.CmdQuit))
	require.Eventually(t, func() bool {
		st := c.disp.Status()
		return st.Default && st.Feedback == "noop"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestControllerConfigAndMalformedPackets(t *testing.T) {
	c := startController(t)

	c.sendRaw(t, []byte("not json at all"))
	c.sendRaw(t, []byte(`{"type":"nonsense"}`))
	c.send(t, &protocol.Signal{Type: protocol.TypeControllerConfig, Data: map[string]any{"threshold": 0.5}})

	require.Eventually(t, func() bool {
		return c.disp.ControllerConfig()["threshold"] == 0.5
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), c.disp.Status().SignalsDropped)

	// The controller still answers after garbage.
	c.send(t, interaction(nil, protocol.CmdGetFeedbacks))
	assert.NotNil(t, c.awaitReply(t).Data["feedbacks"])

	entries, err := c.journal.Recent(context.Background(), 10)
	require.NoError(t, err)
	kinds := map[string]int{}
	for _, e := range entries {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds["dropped"])
	assert.GreaterOrEqual(t, kinds[string(protocol.TypeControllerConfig)], 1)
}

func TestProcessFeedbackOverUDP(t *testing.T) {
	c := startController(t)

	c.send(t, interaction(map[string]any{dispatch.DeclaredNameKey: "echo"}, protocol.CmdSendInit))
	require.Eventually(t, func() bool {
		return c.disp.Status().Feedback == "echo"
	}, 5*time.Second, 10*time.Millisecond)

	c.send(t, interaction(nil, protocol.CmdGetVariables))
	vars, ok := c.awaitReply(t).Data["variables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, vars["echoed"])
}
