package bridge

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Runner invokes the speak binary for one message and reports its
// exit code. Abstracted so bridge tests run without subprocesses.
type Runner interface {
	Speak(ctx context.Context, text string) (exitCode int, stderr string, err error)
}

// ExecRunner spawns the utter binary per message. The exit code of
// the child is the whole protocol: 0 spoken, 2 skipped, 3 timed out,
// anything else a failure.
type ExecRunner struct {
	// Binary is the utter executable. Defaults to "utter" on PATH.
	Binary string
	// Args are forwarded flags (--accel, --skip-if-locked, ...).
	Args []string
}

func (r *ExecRunner) Speak(ctx context.Context, text string) (int, string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "utter"
	}

	args := append([]string{"--text", text}, r.Args...)
	cmd := exec.CommandContext(ctx, binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return 0, "", nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), strings.TrimSpace(stderr.String()), nil
	}
	return -1, strings.TrimSpace(stderr.String()), err
}
