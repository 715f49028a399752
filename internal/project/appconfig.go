package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/slabcut-remote/internal/model"
)

// DefaultConfigDir returns the default directory for application configuration.
// On all platforms this is ~/.slabcut/
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".slabcut")
}

// DefaultConfigPath returns the config file path, honouring SLABCUT_CONFIG.
func DefaultConfigPath() string {
	return getEnv("SLABCUT_CONFIG", filepath.Join(DefaultConfigDir(), "config.json"))
}

// SaveAppConfig persists an AppConfig to the given path as JSON.
// It creates any missing parent directories automatically.
func SaveAppConfig(path string, config model.AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadAppConfig reads an AppConfig from the given path. Keys missing from
// the file keep their default. A missing file yields DefaultAppConfig.
func LoadAppConfig(path string) (model.AppConfig, error) {
	config := model.DefaultAppConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return model.AppConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return model.AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if config.RecentExports == nil {
		config.RecentExports = []string{}
	}
	if config.Endpoint == "" {
		config.Endpoint = model.DefaultEndpoint
	}
	return config, nil
}

// Load reads the config file at path and applies environment overrides.
func Load(path string) (model.AppConfig, error) {
	config, err := LoadAppConfig(path)
	if err != nil {
		return model.AppConfig{}, err
	}
	return ApplyEnv(config), nil
}
