package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvUtterConfig = "UTTER_CONFIG"
	EnvUtterHome   = "UTTER_HOME"
)

// ConfigPath resolves the config file location: UTTER_CONFIG wins,
// then UTTER_HOME/config.json, then ~/.utter/config.json.
func ConfigPath() string {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvUtterConfig))); configPath != "" {
		return configPath
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvUtterHome)))
	if homeDir == "" {
		homeDir = defaultUtterHome()
	}
	return filepath.Join(homeDir, "config.json")
}

func defaultUtterHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".utter"
	}
	return filepath.Join(home, ".utter")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
