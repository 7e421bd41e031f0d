//go:build linux || darwin
// +build linux darwin

package media

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so
// killProcessTree can signal the whole tree at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
