package synth

import "context"

// SpeechRequest describes one synthesis call.
type SpeechRequest struct {
	Text     string
	Voice    string
	Provider string
}

// Synthesizer is the engine surface the job orchestrator consumes.
// Providers is queried once per process, after the cross-process lock
// is held; Synthesize returns complete WAV audio.
type Synthesizer interface {
	Providers(ctx context.Context) []string
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
	IsAvailable() bool
}
