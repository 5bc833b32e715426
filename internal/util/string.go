// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the parley application.
package util

import (
	"github.com/mattn/go-runewidth"
)

// TruncateWidth truncates a string to a maximum display width, appending
// "..." when anything was cut. Widths are terminal columns via
// go-runewidth, so double-width characters count as two and truncation
// never splits a multi-byte sequence.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
