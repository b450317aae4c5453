package plugin

import (
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mattjoyce/feedbackd/internal/protocol"
)

const (
	hookProtocol = protocol.HookProtocol

	// maxStderrBytes caps the amount of stderr captured per hook call.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// ProcessSpec describes an external feedback executable.
type ProcessSpec struct {
	Name       string
	Entrypoint string
	Variables  map[string]any
}

// Process is a feedback implemented by an external executable. Every hook
// spawns the entrypoint once and exchanges a single JSON request/response.
// The play hook's process is tracked so that stop and quit can end it.
type Process struct {
	Base

	spec   ProcessSpec
	logger *slog.Logger
	grace  time.Duration

	mu      sync.Mutex
	playing *running

	// stopPending records a stop that found no play process to end.
	stopPending atomic.Bool
}

type running struct {
	cmd     *exec.Cmd
	done    chan struct{}
	stopped atomic.Bool
}

// NewProcess creates a process feedback seeded with the manifest variables.
func NewProcess(spec ProcessSpec, logger *slog.Logger) *Process {
	p := &Process{spec: spec, logger: logger, grace: terminationGracePeriod}
	p.MergeVariables(spec.Variables)
	p.SetVariable("_feedback", spec.Name)
	return p
}

func (p *Process) OnInit() error  { return p.call("init", nil, false) }
func (p *Process) OnPause() error { return p.call("pause", nil, false) }

// ArmPlay discards a stop that arrived before this play was requested.
func (p *Process) ArmPlay() { p.stopPending.Store(false) }

// OnPlay spawns the play process unless a stop arrived since the last
// ArmPlay and before any play process started.
func (p *Process) OnPlay() error {
	if p.stopPending.Swap(false) {
		p.logger.Info("play cancelled by an earlier stop request")
		return nil
	}
	return p.call("play", nil, true)
}

// OnStop ends an in-flight play process before delivering the stop hook.
func (p *Process) OnStop() error {
	p.terminatePlay(true)
	return p.call("stop", nil, false)
}

// OnQuit ends an in-flight play process before delivering the quit hook.
func (p *Process) OnQuit() error {
	p.terminatePlay(false)
	return p.call("quit", nil, false)
}

func (p *Process) OnControlEvent(data map[string]any) error {
	return p.call("control", data, false)
}

// OnInteractionEvent stores data locally first so variables are visible even
// when the executable ignores the hook.
func (p *Process) OnInteractionEvent(data map[string]any) error {
	p.MergeVariables(data)
	return p.call("interaction", data, false)
}

// call spawns the entrypoint for one hook and applies the response.
func (p *Process) call(hook string, data map[string]any, track bool) error {
	req := &protocol.HookRequest{
		Protocol:  hookProtocol,
		Feedback:  p.spec.Name,
		Hook:      hook,
		Data:      data,
		Variables: p.Variables(),
	}

	cmd := exec.Command(p.spec.Entrypoint)
	if track {
		setProcessGroup(cmd)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("spawning feedback process", "hook", hook, "entrypoint", p.spec.Entrypoint)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	run := &running{cmd: cmd, done: make(chan struct{})}
	if track {
		p.mu.Lock()
		p.playing = run
		cancelled := p.stopPending.Swap(false)
		p.mu.Unlock()
		if cancelled {
			go p.terminatePlay(false)
		}
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		writeErr <- protocol.EncodeHookRequest(stdin, req)
	}()

	waitErr := cmd.Wait()
	close(run.done)
	if track {
		p.mu.Lock()
		if p.playing == run {
			p.playing = nil
		}
		p.mu.Unlock()
	}

	stderrStr := truncateStderr(stderr.String())
	if stderrStr != "" {
		p.logger.Debug("feedback stderr", "hook", hook, "stderr", stderrStr)
	}

	werr := <-writeErr
	if run.stopped.Load() {
		p.logger.Info("play process ended after stop request", "hook", hook)
		return nil
	}
	if werr != nil {
		return fmt.Errorf("write request: %w", werr)
	}
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return fmt.Errorf("wait for process: %w", waitErr)
		}
		p.logger.Warn("feedback exited with non-zero status", "hook", hook, "exit_code", exitErr.ExitCode())
	}

	resp, raw, err := protocol.DecodeHookResponse(bytes.NewReader(stdout.Bytes()))
	if err != nil {
		p.logger.Error("failed to decode feedback response", "hook", hook, "error", err, "stdout", string(raw))
		return fmt.Errorf("decode response: %w", err)
	}

	for _, entry := range resp.Logs {
		p.logger.Info("feedback log", "hook", hook, "level", entry.Level, "message", entry.Message)
	}
	p.MergeVariables(resp.Variables)

	if resp.Status == "error" {
		return fmt.Errorf("feedback returned error: %s", resp.Error)
	}
	return nil
}

// terminatePlay sends SIGTERM to a running play process group and escalates
// to SIGKILL after the grace period. It returns once the process is gone.
// With no play process, pending leaves the stop for the next play to see.
func (p *Process) terminatePlay(pending bool) {
	p.mu.Lock()
	run := p.playing
	if run == nil && pending {
		p.stopPending.Store(true)
	}
	p.mu.Unlock()
	if run == nil || run.cmd.Process == nil {
		return
	}

	run.stopped.Store(true)
	p.logger.Info("terminating play process", "pid", run.cmd.Process.Pid)
	if err := signalGroup(run.cmd, syscall.SIGTERM); err != nil {
		p.logger.Debug("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(p.grace)
	defer grace.Stop()
	select {
	case <-run.done:
	case <-grace.C:
		p.logger.Warn("play process did not exit after SIGTERM, sending SIGKILL")
		if err := signalGroup(run.cmd, syscall.SIGKILL); err != nil {
			p.logger.Error("failed to send SIGKILL", "error", err)
		}
		<-run.done
	}
}

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
