// Utter - Single-shot text-to-speech CLI
// License: MIT
//
// Copyright (c) 2026 Utter contributors

// Package lock serializes utter invocations across processes with a
// PID-bearing lock file. The synthesis engine owns the audio device
// and the accelerator exclusively, so only one invocation may run at
// a time; everyone else skips, waits, or times out depending on the
// chosen Strategy.
//
// Waiters are not served in arrival order: each one independently
// races to recreate the lock file after observing its absence.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/utterhq/utter/pkg/logger"
)

// PollInterval is how often waiting strategies re-attempt acquisition.
// A tunable latency/CPU trade-off, not a protocol constant.
const PollInterval = 100 * time.Millisecond

// Outcome reports how an Acquire call resolved. It is meaningful only
// when Acquire returned a nil error.
type Outcome int

const (
	// Held means the caller now owns the lock.
	Held Outcome = iota
	// Skipped means the lock was busy and the strategy was FailFast.
	Skipped
	// TimedOut means the TimedWait deadline elapsed first.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Held:
		return "held"
	case Skipped:
		return "skipped"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Record is the on-disk representation of lock ownership.
type Record struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Manager is the mutual-exclusion surface the job orchestrator uses.
// Tests substitute an in-memory fake.
type Manager interface {
	// Acquire attempts to take the lock under the given strategy.
	// Contention resolves via the Outcome; errors are reserved for
	// real faults (unwritable lock path, corrupt filesystem state).
	Acquire(ctx context.Context, strategy Strategy) (Outcome, error)

	// Release gives the lock up. Idempotent, and safe to call after
	// a failed or skipped Acquire.
	Release() error
}

// FileLock is the production Manager. Mutual exclusion hinges on the
// atomic O_CREATE|O_EXCL creation of the lock file: two processes
// racing on creation can never both succeed. A holder that died
// without releasing is detected by probing its recorded PID and the
// file is reclaimed.
type FileLock struct {
	path string
	pid  int

	mu   sync.Mutex
	held bool
}

// NewFileLock returns a lock manager for the given path. The path's
// directory must exist; a missing or unwritable directory surfaces as
// an error from Acquire, not as contention.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path: path,
		pid:  os.Getpid(),
	}
}

// Path returns the lock file location.
func (f *FileLock) Path() string {
	return f.path
}

// Acquire implements Manager. A cancelled context aborts a waiting
// strategy and returns the context error.
func (f *FileLock) Acquire(ctx context.Context, strategy Strategy) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.held {
		return Held, nil
	}

	var deadline time.Time
	if strategy.Mode == ModeTimed {
		deadline = time.Now().Add(strategy.Timeout)
	}

	for {
		acquired, err := f.tryAcquire()
		if err != nil {
			return Skipped, err
		}
		if acquired {
			f.held = true
			return Held, nil
		}

		switch strategy.Mode {
		case ModeFailFast:
			return Skipped, nil
		case ModeTimed:
			if !time.Now().Before(deadline) {
				return TimedOut, nil
			}
		}

		select {
		case <-ctx.Done():
			return Skipped, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
}

// tryAcquire makes one pass at taking the lock, reclaiming a stale
// record if the recorded owner is gone. It returns (false, nil) when
// the lock is legitimately held by a live process, leaving the
// strategy handling to the caller.
func (f *FileLock) tryAcquire() (bool, error) {
	for {
		created, err := f.createRecord()
		if err != nil {
			return false, err
		}
		if created {
			return true, nil
		}

		rec, err := readRecord(f.path)
		if os.IsNotExist(err) {
			// Holder released between our create attempt and the
			// read; race again for the file.
			continue
		}
		if err != nil {
			// The file exists but carries no attributable owner yet.
			// Most likely a winner that created it microseconds ago
			// and has not finished writing its record. Reclaiming here
			// would destroy a live lock, so report contention and let
			// the poll loop re-read it.
			logger.DebugCF("lock", "Lock record not readable yet, treating as contended", map[string]any{
				"path":  f.path,
				"error": err.Error(),
			})
			return false, nil
		}
		if processAlive(rec.PID) {
			return false, nil
		}
		logger.InfoCF("lock", "Reclaiming stale lock", map[string]any{
			"path":      f.path,
			"owner_pid": rec.PID,
		})
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to remove stale lock file %s: %w", f.path, err)
		}
		// Loop and race to recreate. Losing the race means a new live
		// owner exists; the next pass observes it and reports contention.
	}
}

// createRecord attempts the atomic exclusive creation of the lock file
// and writes the ownership record into it. Returns (false, nil) when
// the file already exists.
func (f *FileLock) createRecord() (bool, error) {
	fd, err := os.OpenFile(f.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock file %s: %w", f.path, err)
	}

	rec := Record{PID: f.pid, AcquiredAt: time.Now().UTC()}
	encErr := json.NewEncoder(fd).Encode(rec)
	closeErr := fd.Close()
	if encErr == nil {
		encErr = closeErr
	}
	if encErr != nil {
		// A half-written record must not survive: readers treat an
		// unattributable record as contended, so leaving it behind
		// would wedge the lock.
		os.Remove(f.path)
		return false, fmt.Errorf("failed to write lock record to %s: %w", f.path, encErr)
	}
	return true, nil
}

// Release implements Manager. Removes the lock file only when this
// process holds it; calling it without holding is a no-op.
func (f *FileLock) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.held {
		return nil
	}
	f.held = false

	rec, err := readRecord(f.path)
	if err == nil && rec.PID != f.pid {
		// Someone reclaimed the lock out from under us. Do not destroy
		// their record.
		logger.WarnCF("lock", "Lock record no longer ours at release", map[string]any{
			"path":      f.path,
			"owner_pid": rec.PID,
		})
		return nil
	}

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", f.path, err)
	}
	return nil
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("invalid lock record in %s: %w", path, err)
	}
	if rec.PID <= 0 {
		return Record{}, fmt.Errorf("invalid owner pid %d in %s", rec.PID, path)
	}
	return rec, nil
}

// NopManager disables locking (--no-lock): every Acquire holds, every
// Release succeeds. Concurrent invocations are then unserialized,
// which is the caller's explicit choice.
type NopManager struct{}

func (NopManager) Acquire(context.Context, Strategy) (Outcome, error) { return Held, nil }

func (NopManager) Release() error { return nil }
