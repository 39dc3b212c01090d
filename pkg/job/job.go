// Utter - Single-shot text-to-speech CLI
// License: MIT
//
// Copyright (c) 2026 Utter contributors

// Package job runs one text-to-speech invocation end to end: take the
// cross-process lock, pick an execution provider, synthesize, write
// the WAV, optionally play it, and release the lock on every exit
// path. The exit codes it produces are a stable contract consumed by
// orchestrating callers such as the MQTT bridge.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/utterhq/utter/pkg/audio"
	"github.com/utterhq/utter/pkg/lock"
	"github.com/utterhq/utter/pkg/logger"
	"github.com/utterhq/utter/pkg/provider"
	"github.com/utterhq/utter/pkg/synth"
)

// Process exit codes. Orchestrators depend on these values exactly.
const (
	ExitOK       = 0 // synthesis completed
	ExitError    = 1 // fatal error: I/O, invalid input, engine rejection
	ExitSkipped  = 2 // fail-fast strategy and lock unavailable
	ExitTimedOut = 3 // timed-wait strategy and deadline exceeded
)

// Options describes one invocation.
type Options struct {
	// TextFile, when set, wins over Text.
	TextFile string
	Text     string

	OutputPath string
	Voice      string
	Accel      bool
	Play       bool

	Strategy lock.Strategy
}

// Job is a single-shot synthesis run.
type Job struct {
	Opts   Options
	Locks  lock.Manager
	Engine synth.Synthesizer

	// Player is swapped for a fake in tests.
	Player func(ctx context.Context, path string) error

	runID string
}

func New(opts Options, locks lock.Manager, engine synth.Synthesizer) *Job {
	return &Job{
		Opts:   opts,
		Locks:  locks,
		Engine: engine,
		Player: audio.Play,
		runID:  uuid.NewString(),
	}
}

// Run executes the job and returns the process exit code. All
// diagnostics are logged here; the caller only maps the code to
// os.Exit. The lock is released on every path out of this function,
// including cancellation, and a release failure never masks the run's
// own outcome.
func (j *Job) Run(ctx context.Context) int {
	fields := map[string]any{"run_id": j.runID}

	text, err := j.resolveText()
	if err != nil {
		logger.ErrorCF("job", err.Error(), fields)
		return ExitError
	}

	outcome, err := j.Locks.Acquire(ctx, j.Opts.Strategy)
	defer func() {
		if err := j.Locks.Release(); err != nil {
			logger.WarnCF("job", "Failed to release lock", map[string]any{
				"run_id": j.runID,
				"error":  err.Error(),
			})
		}
	}()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.WarnCF("job", "Interrupted while waiting for lock", fields)
		} else {
			logger.ErrorCF("job", "Lock acquisition failed", map[string]any{
				"run_id": j.runID,
				"error":  err.Error(),
			})
		}
		return ExitError
	}

	switch outcome {
	case lock.Skipped:
		logger.InfoCF("job", "Another instance is speaking, skipping", fields)
		return ExitSkipped
	case lock.TimedOut:
		logger.InfoCF("job", "Timed out waiting for another instance", fields)
		return ExitTimedOut
	}

	preference := provider.Preference(j.Opts.Accel)
	available := j.Engine.Providers(ctx)
	chosen := provider.Select(preference, available)
	provider.Report(preference, available, chosen)

	wav, err := j.Engine.Synthesize(ctx, synth.SpeechRequest{
		Text:     text,
		Voice:    j.Opts.Voice,
		Provider: chosen,
	})
	if err != nil {
		logger.ErrorCF("job", "Synthesis failed", map[string]any{
			"run_id": j.runID,
			"error":  err.Error(),
		})
		return ExitError
	}

	if err := writeOutput(j.Opts.OutputPath, wav); err != nil {
		logger.ErrorCF("job", "Failed to write audio output", map[string]any{
			"run_id": j.runID,
			"error":  err.Error(),
		})
		return ExitError
	}

	logger.InfoCF("job", "Audio saved", map[string]any{
		"run_id":     j.runID,
		"path":       j.Opts.OutputPath,
		"size_bytes": len(wav),
	})

	if j.Opts.Play {
		if err := j.Player(ctx, j.Opts.OutputPath); err != nil {
			logger.ErrorCF("job", "Playback failed", map[string]any{
				"run_id": j.runID,
				"error":  err.Error(),
			})
			return ExitError
		}
		logger.InfoCF("job", "Playback complete", fields)
	}

	return ExitOK
}

func (j *Job) resolveText() (string, error) {
	if j.Opts.TextFile != "" {
		data, err := os.ReadFile(j.Opts.TextFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
		return "", errors.New("input file contains no text")
	}

	if text := strings.TrimSpace(j.Opts.Text); text != "" {
		return text, nil
	}
	return "", errors.New("no text to convert")
}

func writeOutput(path string, wav []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, wav, 0o644)
}
