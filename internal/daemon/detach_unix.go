//go:build unix

package daemon

import (
	"os/exec"
	"syscall"
)

// detachProcess puts the child in its own session so terminal signals and
// the parent's exit never reach the server.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
