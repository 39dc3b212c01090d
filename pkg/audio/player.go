// Package audio plays synthesized WAV files through whichever system
// audio player is installed.
package audio

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/utterhq/utter/pkg/logger"
)

// players in probe order. ffplay needs flags to behave as a
// non-interactive one-shot player.
var players = [][]string{
	{"aplay", "-q"},
	{"paplay"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
	{"afplay"},
}

var lookPath = exec.LookPath

// Play plays the WAV file at path and blocks until playback finishes
// or ctx is cancelled.
func Play(ctx context.Context, path string) error {
	argv, err := findPlayer()
	if err != nil {
		return err
	}

	logger.DebugCF("audio", "Playing audio", map[string]any{
		"player": argv[0],
		"path":   path,
	})

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", argv[0], err)
	}
	return nil
}

func findPlayer() ([]string, error) {
	for _, argv := range players {
		if _, err := lookPath(argv[0]); err == nil {
			return argv, nil
		}
	}
	return nil, fmt.Errorf("no audio player found (tried aplay, paplay, ffplay, afplay)")
}
