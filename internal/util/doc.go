// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the parley application.
//
// It holds the two helpers the rest of the codebase shares: width-aware
// string truncation for terminal rendering, and crash-safe file writing
// for the config layer.
//
//	title := util.TruncateWidth(longText, 50)
//	err := util.AtomicWriteFile(path, data, 0600, 0700)
package util
