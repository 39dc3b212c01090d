package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/utterhq/utter/pkg/logger"
	"github.com/utterhq/utter/pkg/provider"
)

// PiperClient talks to a local Piper TTS server running on ONNX
// Runtime. The voice model is loaded by the server once and shared by
// every invocation, which is why callers serialize access with the
// process lock before touching it.
type PiperClient struct {
	apiBase    string
	voice      string
	httpClient *http.Client
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type providersResponse struct {
	Providers []string `json:"providers"`
}

// NewPiperClient creates a Piper engine client.
// apiBase defaults to "http://localhost:5000".
// voice defaults to "en_US-lessac-medium".
func NewPiperClient(apiBase, voice string) *PiperClient {
	if apiBase == "" {
		apiBase = "http://localhost:5000"
	}
	if voice == "" {
		voice = "en_US-lessac-medium"
	}

	return &PiperClient{
		apiBase: apiBase,
		voice:   voice,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Providers asks the engine which ONNX execution providers it can run
// on. Any failure degrades to the CPU provider rather than erroring:
// the software fallback is always available, and an unreachable engine
// surfaces properly at Synthesize.
func (c *PiperClient) Providers(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/v1/providers", nil)
	if err != nil {
		return []string{provider.CPU}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.WarnCF("synth", "Provider query failed, assuming CPU only", map[string]any{
			"error": err.Error(),
		})
		return []string{provider.CPU}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.WarnCF("synth", "Provider query rejected, assuming CPU only", map[string]any{
			"status_code": resp.StatusCode,
		})
		return []string{provider.CPU}
	}

	var pr providersResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil || len(pr.Providers) == 0 {
		return []string{provider.CPU}
	}
	return pr.Providers
}

// Synthesize converts text to WAV audio on the requested execution
// provider. A non-200 response is an engine fault, including the case
// where the engine rejects the selected provider after the fact
// (driver error); that is distinct from provider selection, which
// never fails.
func (c *PiperClient) Synthesize(ctx context.Context, sr SpeechRequest) ([]byte, error) {
	voice := sr.Voice
	if voice == "" {
		voice = c.voice
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:     sr.Text,
		Voice:    voice,
		Provider: sr.Provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	logger.InfoCF("synth", "Synthesizing speech", map[string]any{
		"text_length": len(sr.Text),
		"voice":       voice,
		"provider":    sr.Provider,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("piper engine error (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("piper engine returned no audio")
	}
	return audio, nil
}

// IsAvailable checks if the Piper server is reachable.
func (c *PiperClient) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/v1/providers", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
