//go:build unix

package prediction

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the engine in its own process group so that
// termination also reaches anything it forked.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalTerminate(cmd *exec.Cmd) {
	// Negative pid targets the whole group.
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func signalKill(cmd *exec.Cmd) {
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
