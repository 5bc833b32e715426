// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// Configuration lives in ~/.parley/config.toml with sensible defaults,
// environment variable overrides, and validation with clamping of
// out-of-range values.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ConnectionConfig: Backend endpoint, token, and reconnect policy
//   - TimeoutConfig: Request and stream timeout policy
//   - GenerationConfig: Model selection and sampling settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PARLEY_*)
//   - ~/.parley/config.toml
//   - Built-in defaults
//
// # Live Reload
//
// Watch observes the config file with fsnotify and delivers a freshly
// validated Config whenever the file changes on disk, letting the
// application push updated generation settings to the backend without a
// restart.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	endpoint := cfg.Connection.Endpoint
//	model := cfg.Generation.Model
package config
