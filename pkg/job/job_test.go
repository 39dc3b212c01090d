package job

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utterhq/utter/pkg/lock"
	"github.com/utterhq/utter/pkg/provider"
	"github.com/utterhq/utter/pkg/synth"
)

// fakeLock is the in-memory Manager substitute.
type fakeLock struct {
	outcome    lock.Outcome
	acquireErr error
	releaseErr error

	acquired   int
	released   int
	strategies []lock.Strategy
}

func (f *fakeLock) Acquire(_ context.Context, s lock.Strategy) (lock.Outcome, error) {
	f.acquired++
	f.strategies = append(f.strategies, s)
	return f.outcome, f.acquireErr
}

func (f *fakeLock) Release() error {
	f.released++
	return f.releaseErr
}

type fakeEngine struct {
	providers []string
	wav       []byte
	synthErr  error

	requests []synth.SpeechRequest
}

func (f *fakeEngine) Providers(context.Context) []string {
	if f.providers == nil {
		return []string{provider.CPU}
	}
	return f.providers
}

func (f *fakeEngine) Synthesize(_ context.Context, req synth.SpeechRequest) ([]byte, error) {
	f.requests = append(f.requests, req)
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return f.wav, nil
}

func (f *fakeEngine) IsAvailable() bool { return true }

func newTestJob(t *testing.T, opts Options, locks *fakeLock, engine *fakeEngine) *Job {
	t.Helper()
	if opts.OutputPath == "" {
		opts.OutputPath = filepath.Join(t.TempDir(), "speech.wav")
	}
	j := New(opts, locks, engine)
	j.Player = func(context.Context, string) error { return nil }
	return j
}

func TestRunSuccess(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{wav: []byte("RIFFdata")}
	out := filepath.Join(t.TempDir(), "nested", "speech.wav")

	j := newTestJob(t, Options{Text: "hello", OutputPath: out}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released, "lock released on success path")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), data)
}

func TestRunSkipped(t *testing.T) {
	locks := &fakeLock{outcome: lock.Skipped}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{Text: "hello", Strategy: lock.FailFast()}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitSkipped, code)
	assert.Empty(t, engine.requests, "no synthesis when skipped")
	assert.Equal(t, 1, locks.released, "release is safe after a skipped acquire")
	require.Len(t, locks.strategies, 1)
	assert.Equal(t, lock.FailFast(), locks.strategies[0])
}

func TestRunTimedOut(t *testing.T) {
	locks := &fakeLock{outcome: lock.TimedOut}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{Text: "hello"}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitTimedOut, code)
	assert.Empty(t, engine.requests)
	assert.Equal(t, 1, locks.released)
}

func TestRunLockFault(t *testing.T) {
	locks := &fakeLock{acquireErr: errors.New("lock path unwritable")}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{Text: "hello"}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitError, code)
	assert.Empty(t, engine.requests)
	assert.Equal(t, 1, locks.released)
}

func TestRunEngineFault(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{synthErr: errors.New("engine rejected provider")}

	j := newTestJob(t, Options{Text: "hello"}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitError, code)
	assert.Equal(t, 1, locks.released, "engine faults must still release the lock")
}

func TestRunReleaseFailureDoesNotMaskOutcome(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held, releaseErr: errors.New("remove failed")}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{Text: "hello"}, locks, engine)
	assert.Equal(t, ExitOK, j.Run(context.Background()))
}

func TestRunNoText(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{Text: "   "}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitError, code)
	assert.Zero(t, locks.acquired, "invalid input fails before any lock work")
}

func TestRunTextFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("  from a file\n"), 0o644))

	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{TextFile: input, Text: "ignored"}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitOK, code)
	require.Len(t, engine.requests, 1)
	assert.Equal(t, "from a file", engine.requests[0].Text, "file wins over inline text and is trimmed")
}

func TestRunMissingTextFile(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{TextFile: filepath.Join(t.TempDir(), "absent.txt")}, locks, engine)
	assert.Equal(t, ExitError, j.Run(context.Background()))
}

func TestResolveTextPreservesReadCause(t *testing.T) {
	j := &Job{Opts: Options{TextFile: filepath.Join(t.TempDir(), "absent.txt")}}

	_, err := j.resolveText()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRunProviderDegradation(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{
		providers: []string{provider.CPU},
		wav:       []byte("RIFFdata"),
	}

	j := newTestJob(t, Options{Text: "hello", Accel: true}, locks, engine)
	code := j.Run(context.Background())

	assert.Equal(t, ExitOK, code)
	require.Len(t, engine.requests, 1)
	assert.Equal(t, provider.CPU, engine.requests[0].Provider,
		"accelerator absent, run degrades to CPU without failing")
}

func TestRunAcceleratorSelected(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{
		providers: []string{provider.CUDA, provider.CPU},
		wav:       []byte("RIFFdata"),
	}

	j := newTestJob(t, Options{Text: "hello", Accel: true}, locks, engine)
	require.Equal(t, ExitOK, j.Run(context.Background()))
	assert.Equal(t, provider.CUDA, engine.requests[0].Provider)
}

func TestRunPlaybackFault(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	j := newTestJob(t, Options{Text: "hello", Play: true}, locks, engine)
	j.Player = func(context.Context, string) error { return errors.New("no audio device") }

	assert.Equal(t, ExitError, j.Run(context.Background()))
	assert.Equal(t, 1, locks.released)
}

func TestRunPlayback(t *testing.T) {
	locks := &fakeLock{outcome: lock.Held}
	engine := &fakeEngine{wav: []byte("RIFFdata")}

	var played string
	j := newTestJob(t, Options{Text: "hello", Play: true}, locks, engine)
	j.Player = func(_ context.Context, path string) error {
		played = path
		return nil
	}

	require.Equal(t, ExitOK, j.Run(context.Background()))
	assert.Equal(t, j.Opts.OutputPath, played)
}
