//go:build !windows

package lock

import (
	"os"
	"syscall"
)

// processAlive reports whether a process with the given PID exists.
// Signal 0 delivers nothing but performs the existence check. EPERM
// means the process exists but belongs to another user, which still
// counts as alive for lock ownership.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
