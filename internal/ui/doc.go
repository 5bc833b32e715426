// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea terminal interface for parley.
//
// The Model renders from conversation store snapshots and never owns
// chat state itself. Store and transport changes arrive as Bubble Tea
// messages delivered through program.Send, so every mutation flows
// through Update on the single UI goroutine.
//
// Layout: a header with connection and model status, a scrollable
// viewport of the active conversation, a sidebar overlay for switching
// between conversations, and a single-line input. Finalized assistant
// messages render as markdown through glamour; in-flight responses stay
// plain text to keep per-fragment updates cheap.
package ui
