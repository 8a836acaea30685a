//go:build !unix

package prediction

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func signalTerminate(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}

func signalKill(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}
