// Utter - Single-shot text-to-speech CLI
// License: MIT
//
// Copyright (c) 2026 Utter contributors

package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/utterhq/utter/pkg/logger"
)

type EngineConfig struct {
	BaseURL string `json:"base_url" env:"UTTER_ENGINE_BASE_URL"`
	Voice   string `json:"voice" env:"UTTER_ENGINE_VOICE"`
	Accel   bool   `json:"accel" env:"UTTER_ENGINE_ACCEL"`
}

type LockConfig struct {
	Path     string `json:"path" env:"UTTER_LOCK_PATH"`
	Strategy string `json:"strategy" env:"UTTER_LOCK_STRATEGY"`
	Disabled bool   `json:"disabled" env:"UTTER_LOCK_DISABLED"`
}

type OutputConfig struct {
	Path string `json:"path" env:"UTTER_OUTPUT_PATH"`
	Play bool   `json:"play" env:"UTTER_OUTPUT_PLAY"`
}

type MQTTConfig struct {
	Broker   string `json:"broker" env:"UTTER_MQTT_BROKER"`
	Port     int    `json:"port" env:"UTTER_MQTT_PORT"`
	Topic    string `json:"topic" env:"UTTER_MQTT_TOPIC"`
	Username string `json:"username" env:"UTTER_MQTT_USERNAME"`
	Password string `json:"password" env:"UTTER_MQTT_PASSWORD"`
}

type LogConfig struct {
	Level string `json:"level" env:"UTTER_LOG_LEVEL"`
	File  string `json:"file" env:"UTTER_LOG_FILE"`
}

type Config struct {
	Engine EngineConfig `json:"engine"`
	Lock   LockConfig   `json:"lock"`
	Output OutputConfig `json:"output"`
	MQTT   MQTTConfig   `json:"mqtt"`
	Log    LogConfig    `json:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			BaseURL: "http://localhost:5000",
			Voice:   "en_US-lessac-medium",
		},
		Lock: LockConfig{
			Path:     filepath.Join(os.TempDir(), "utter.lock"),
			Strategy: "indefinite-wait",
		},
		Output: OutputConfig{
			Path: filepath.Join("output", "speech.wav"),
		},
		MQTT: MQTTConfig{
			Port: 1883,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the JSON config at path and applies UTTER_*
// environment overrides on top. A missing file is not an error: the
// defaults are written there so the operator has a file to edit, and
// defaults (plus env) apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if werr := SaveConfig(path, cfg); werr != nil {
		// A read-only config location still gets working defaults.
		logger.DebugCF("config", "Could not write default config", map[string]any{
			"path":  path,
			"error": werr.Error(),
		})
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
