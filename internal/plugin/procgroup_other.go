//go:build !unix

package plugin

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(*exec.Cmd) {}

// signalGroup falls back to the direct child: SIGTERM is not deliverable
// here, so every signal becomes a kill.
func signalGroup(cmd *exec.Cmd, _ syscall.Signal) error {
	return cmd.Process.Kill()
}
