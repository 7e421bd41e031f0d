//go:build windows
// +build windows

package media

import "os/exec"

// setProcessGroup is a no-op on Windows; killProcessTree falls back to
// killing the single process.
func setProcessGroup(cmd *exec.Cmd) {}
