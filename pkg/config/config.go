// Package config loads the engine's persisted settings: the output device
// the user last selected, and whether playback should follow the system
// default device instead of a pinned one.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings is the persisted settings blob read at track-open time.
type Settings struct {
	OutputDevice       string `mapstructure:"output_device"`
	FollowSystemOutput bool   `mapstructure:"follow_system_output"`
}

// Store wraps a viper instance bound to the engine's settings file.
type Store struct {
	v *viper.Viper
}

// Load reads settings.yaml from configDir, creating defaults in memory if
// the file does not exist yet. configDir is created on first Save.
func Load(configDir string) (*Store, error) {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("output_device", "")
	v.SetDefault("follow_system_output", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading settings: %w", err)
		}
		slog.Debug("config: no settings file yet, using defaults", "dir", configDir)
	}

	return &Store{v: v}, nil
}

// Get unmarshals the current settings.
func (s *Store) Get() (Settings, error) {
	var out Settings
	if err := s.v.Unmarshal(&out); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal settings: %w", err)
	}
	return out, nil
}

// Save persists the given settings to configDir/settings.yaml, creating the
// directory if needed.
func (s *Store) Save(configDir string, settings Settings) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("config: creating config dir: %w", err)
	}

	s.v.Set("output_device", settings.OutputDevice)
	s.v.Set("follow_system_output", settings.FollowSystemOutput)

	path := filepath.Join(configDir, "settings.yaml")
	if err := s.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: writing settings: %w", err)
	}
	return nil
}
