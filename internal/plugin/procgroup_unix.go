//go:build unix

package plugin

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts cmd as the leader of a new process group so that
// children spawned by a shell entrypoint are signalled with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup sends sig to the whole process group led by cmd.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	return syscall.Kill(-cmd.Process.Pid, sig)
}
