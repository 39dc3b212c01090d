//go:build windows

package lock

import "os"

// processAlive reports whether a process with the given PID exists.
// On Windows os.FindProcess opens a real handle and fails when the
// process is gone, so the lookup itself is the liveness probe.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	process.Release()
	return true
}
