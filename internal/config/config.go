// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/parley-chat/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	Version string `toml:"version"`

	// Connection to the backend
	Connection ConnectionConfig `toml:"connection"`

	// Request and stream timeout policy
	Timeouts TimeoutConfig `toml:"timeouts"`

	// Generation settings pushed to the backend
	Generation GenerationConfig `toml:"generation"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// ConnectionConfig contains backend connection settings.
type ConnectionConfig struct {
	// Endpoint is the backend WebSocket URL
	Endpoint string `toml:"endpoint"`
	// Token authenticates the connection; sent as a query parameter
	Token string `toml:"token"`
	// ReconnectDelayMs is the base delay between reconnect attempts.
	// The actual delay grows linearly with the attempt number.
	ReconnectDelayMs int `toml:"reconnect_delay_ms"`
	// MaxReconnectAttempts bounds automatic reconnection (0 = default)
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
}

// TimeoutConfig contains request timeout settings, in seconds.
type TimeoutConfig struct {
	// ControlSecs bounds control-plane requests: models, settings, history
	ControlSecs int `toml:"control_secs"`
	// ChatSecs bounds a whole chat generation
	ChatSecs int `toml:"chat_secs"`
	// WatchdogSecs is how long a stream may stay silent before it is
	// terminated
	WatchdogSecs int `toml:"watchdog_secs"`
}

// GenerationConfig contains model and sampling settings.
type GenerationConfig struct {
	// Model is the default model for new conversations
	Model string `toml:"model"`
	// MaxTokens caps response length (0 = backend default)
	MaxTokens int `toml:"max_tokens"`
	// Temperature controls sampling randomness (0.0-2.0)
	Temperature float64 `toml:"temperature"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark" or "light"
	Theme string `toml:"theme"`
	// CompactMode uses a more compact layout
	CompactMode bool `toml:"compact_mode"`
	// ShowTimestamps displays message timestamps
	ShowTimestamps bool `toml:"show_timestamps"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error"
	Level string `toml:"level"`
	// Path is the log file location (empty = ~/.parley/parley.log)
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Connection: ConnectionConfig{
			Endpoint:             "ws://127.0.0.1:8765/ws",
			Token:                "",
			ReconnectDelayMs:     2000,
			MaxReconnectAttempts: 5,
		},

		Timeouts: TimeoutConfig{
			ControlSecs:  30,
			ChatSecs:     120,
			WatchdogSecs: 15,
		},

		Generation: GenerationConfig{
			Model:       "",
			MaxTokens:   0,
			Temperature: 0.7,
		},

		UI: UIConfig{
			Theme:          "dark",
			CompactMode:    false,
			ShowTimestamps: false,
		},

		Logging: LoggingConfig{
			Level: "info",
			Path:  "",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogPath returns the configured log file path or the default.
func (c *Config) LogPath() (string, error) {
	if c.Logging.Path != "" {
		return c.Logging.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back to
// defaults when the file does not exist. Environment overrides are
// applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.clamp()
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	cfg.ApplyEnvOverrides()
	cfg.clamp()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies PARLEY_* environment variables on top of the
// loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PARLEY_ENDPOINT"); v != "" {
		c.Connection.Endpoint = v
	}
	if v := os.Getenv("PARLEY_TOKEN"); v != "" {
		c.Connection.Token = v
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PARLEY_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generation.MaxTokens = n
		}
	}
}

// clamp pulls out-of-range values back to usable ones instead of
// failing the load.
func (c *Config) clamp() {
	if c.Connection.ReconnectDelayMs <= 0 {
		c.Connection.ReconnectDelayMs = 2000
	}
	if c.Connection.MaxReconnectAttempts <= 0 {
		c.Connection.MaxReconnectAttempts = 5
	}
	if c.Timeouts.ControlSecs <= 0 {
		c.Timeouts.ControlSecs = 30
	}
	if c.Timeouts.ChatSecs <= 0 {
		c.Timeouts.ChatSecs = 120
	}
	if c.Timeouts.WatchdogSecs <= 0 {
		c.Timeouts.WatchdogSecs = 15
	}
	if c.Timeouts.WatchdogSecs > c.Timeouts.ChatSecs {
		c.Timeouts.WatchdogSecs = c.Timeouts.ChatSecs
	}
	if c.Generation.Temperature < 0 {
		c.Generation.Temperature = 0
	}
	if c.Generation.Temperature > 2 {
		c.Generation.Temperature = 2
	}
	if c.Generation.MaxTokens < 0 {
		c.Generation.MaxTokens = 0
	}
}

// Validate rejects configurations that clamping cannot repair.
func (c *Config) Validate() error {
	if c.Connection.Endpoint == "" {
		return fmt.Errorf("connection.endpoint: must not be empty")
	}
	switch c.UI.Theme {
	case "", "dark", "light":
	default:
		return fmt.Errorf("ui.theme: unknown theme %q", c.UI.Theme)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// ReconnectDelay returns the base reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Connection.ReconnectDelayMs) * time.Millisecond
}

// ControlTimeout returns the control-plane timeout as a duration.
func (c *Config) ControlTimeout() time.Duration {
	return time.Duration(c.Timeouts.ControlSecs) * time.Second
}

// ChatTimeout returns the chat generation budget as a duration.
func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Timeouts.ChatSecs) * time.Second
}

// WatchdogWindow returns the stream liveness window as a duration.
func (c *Config) WatchdogWindow() time.Duration {
	return time.Duration(c.Timeouts.WatchdogSecs) * time.Second
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML to the given path.
// The write is atomic and the file is created with 0600 permissions
// since it can carry the backend token.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# parley configuration file")
	fmt.Fprintln(&buf, "# Generated by parley - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
