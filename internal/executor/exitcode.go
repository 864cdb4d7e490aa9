package executor

import (
	"os/exec"
	"syscall"
)

// exitStatus maps a finished child to a shell-style exit code: its own
// status, or 128+N when it was killed by signal N.
func exitStatus(err *exec.ExitError) int {
	if code := err.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}
