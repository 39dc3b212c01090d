package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:5000", cfg.Engine.BaseURL)
	assert.Equal(t, "en_US-lessac-medium", cfg.Engine.Voice)
	assert.False(t, cfg.Engine.Accel)
	assert.Equal(t, filepath.Join(os.TempDir(), "utter.lock"), cfg.Lock.Path)
	assert.Equal(t, "indefinite-wait", cfg.Lock.Strategy)
	assert.Equal(t, filepath.Join("output", "speech.wav"), cfg.Output.Path)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine.BaseURL, cfg.Engine.BaseURL)
}

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first-run", "config.json")

	_, err := LoadConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err, "first load materializes the defaults on disk")
	assert.Contains(t, string(data), "en_US-lessac-medium")

	// Env overrides apply at load time but are never persisted.
	t.Setenv("UTTER_ENGINE_VOICE", "env-voice")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-voice", cfg.Engine.Voice)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env-voice")
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"engine": {"base_url": "http://tts.local:8080", "voice": "en_GB-alba-medium"},
		"lock": {"strategy": "timed-wait:5s"},
		"mqtt": {"broker": "mqtt.local", "topic": "home/tts"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://tts.local:8080", cfg.Engine.BaseURL)
	assert.Equal(t, "en_GB-alba-medium", cfg.Engine.Voice)
	assert.Equal(t, "timed-wait:5s", cfg.Lock.Strategy)
	assert.Equal(t, "mqtt.local", cfg.MQTT.Broker)
	assert.Equal(t, "home/tts", cfg.MQTT.Topic)
	// Untouched sections keep defaults.
	assert.Equal(t, 1883, cfg.MQTT.Port)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine": {"base_url": "http://file.local"}}`), 0o644))

	t.Setenv("UTTER_ENGINE_BASE_URL", "http://env.local")
	t.Setenv("UTTER_ENGINE_ACCEL", "true")
	t.Setenv("UTTER_LOCK_PATH", "/run/lock/utter.lock")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.local", cfg.Engine.BaseURL, "env beats file")
	assert.True(t, cfg.Engine.Accel)
	assert.Equal(t, "/run/lock/utter.lock", cfg.Lock.Path)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "config.json")

	cfg := DefaultConfig()
	cfg.Engine.Voice = "custom-voice"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-voice", loaded.Engine.Voice)
}

func TestConfigPath(t *testing.T) {
	t.Setenv(EnvUtterConfig, "")
	t.Setenv(EnvUtterHome, "")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".utter", "config.json"), ConfigPath())

	t.Setenv(EnvUtterHome, "/srv/utter")
	assert.Equal(t, filepath.Join("/srv/utter", "config.json"), ConfigPath())

	t.Setenv(EnvUtterConfig, "/etc/utter.json")
	assert.Equal(t, "/etc/utter.json", ConfigPath())
}
