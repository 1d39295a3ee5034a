// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config resolves configuration paths and loads application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds application-level settings from settings.yaml.
type Settings struct {
	// Log configures structured logging output.
	Log LogSettings `yaml:"log,omitempty"`

	// Health configures the MCP health monitor.
	Health HealthSettings `yaml:"health,omitempty"`

	// Serve configures the HTTP endpoint exposed by `moltis serve`.
	Serve ServeSettings `yaml:"serve,omitempty"`
}

// LogSettings configures structured logging.
type LogSettings struct {
	// Level is the minimum log level (debug, info, warn, error). Default: info.
	Level string `yaml:"level,omitempty"`

	// Format is the output format (json, text). Default: json.
	Format string `yaml:"format,omitempty"`
}

// HealthSettings configures the MCP health monitor.
type HealthSettings struct {
	// PollIntervalSeconds is how often server health is polled. Default: 30.
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"`

	// MaxRestartAttempts limits consecutive auto-restart attempts. Default: 5.
	MaxRestartAttempts int `yaml:"max_restart_attempts,omitempty"`
}

// ServeSettings configures the HTTP endpoint.
type ServeSettings struct {
	// Listen is the address to bind. Default: 127.0.0.1:8844.
	Listen string `yaml:"listen,omitempty"`
}

// DefaultSettings returns settings with all defaults applied.
func DefaultSettings() *Settings {
	return &Settings{
		Log: LogSettings{
			Level:  "info",
			Format: "json",
		},
		Health: HealthSettings{
			PollIntervalSeconds: 30,
			MaxRestartAttempts:  5,
		},
		Serve: ServeSettings{
			Listen: "127.0.0.1:8844",
		},
	}
}

// SettingsPath returns the full path to the settings.yaml file.
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// LoadSettings loads settings.yaml from the config directory.
// A missing file yields default settings, not an error.
func LoadSettings() (*Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings path: %w", err)
	}
	return LoadSettingsFrom(path)
}

// LoadSettingsFrom loads settings from an explicit path.
func LoadSettingsFrom(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	settings.applyDefaults()
	return settings, nil
}

// applyDefaults fills in zero values after an explicit file load.
func (s *Settings) applyDefaults() {
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "json"
	}
	if s.Health.PollIntervalSeconds == 0 {
		s.Health.PollIntervalSeconds = 30
	}
	if s.Health.MaxRestartAttempts == 0 {
		s.Health.MaxRestartAttempts = 5
	}
	if s.Serve.Listen == "" {
		s.Serve.Listen = "127.0.0.1:8844"
	}
}

// PollInterval returns the health poll interval as a duration.
func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.Health.PollIntervalSeconds) * time.Second
}
