package lock

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how Acquire behaves when the lock is already held.
type Mode int

const (
	// ModeIndefinite polls until the lock becomes available.
	ModeIndefinite Mode = iota
	// ModeFailFast gives up immediately when the lock is held.
	ModeFailFast
	// ModeTimed polls until the lock becomes available or the
	// timeout elapses.
	ModeTimed
)

// Strategy is the contention policy for a single Acquire call.
type Strategy struct {
	Mode    Mode
	Timeout time.Duration
}

// Indefinite waits for the lock with no deadline. This is the default.
func Indefinite() Strategy {
	return Strategy{Mode: ModeIndefinite}
}

// FailFast reports Skipped without waiting when the lock is held.
func FailFast() Strategy {
	return Strategy{Mode: ModeFailFast}
}

// TimedWait waits up to d for the lock, then reports TimedOut.
func TimedWait(d time.Duration) Strategy {
	return Strategy{Mode: ModeTimed, Timeout: d}
}

func (s Strategy) String() string {
	switch s.Mode {
	case ModeFailFast:
		return "fail-fast"
	case ModeTimed:
		return fmt.Sprintf("timed-wait:%s", s.Timeout)
	default:
		return "indefinite-wait"
	}
}

// ParseStrategy parses "fail-fast", "timed-wait:<duration>" or
// "indefinite-wait". The empty string means indefinite-wait.
func ParseStrategy(s string) (Strategy, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "indefinite-wait":
		return Indefinite(), nil
	case s == "fail-fast":
		return FailFast(), nil
	case strings.HasPrefix(s, "timed-wait:"):
		d, err := time.ParseDuration(strings.TrimPrefix(s, "timed-wait:"))
		if err != nil {
			return Strategy{}, fmt.Errorf("invalid timed-wait duration %q: %w", s, err)
		}
		if d <= 0 {
			return Strategy{}, fmt.Errorf("timed-wait duration must be positive, got %s", d)
		}
		return TimedWait(d), nil
	default:
		return Strategy{}, fmt.Errorf("unknown lock strategy %q", s)
	}
}
