// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea terminal interface for parley.
package ui

import (
	"github.com/parley-chat/parley/internal/backend"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/transport"
)

// =============================================================================
// EXTERNAL MESSAGES
// =============================================================================
// These arrive via program.Send from store, transport, and config
// callbacks running on their own goroutines.

// StoreEventMsg wraps a conversation store notification.
type StoreEventMsg struct {
	Event chat.Event
}

// ConnStateMsg reports a transport state change. Err is non-nil only
// when reconnection has been exhausted.
type ConnStateMsg struct {
	State transport.State
	Err   error
}

// ConfigReloadedMsg delivers a reloaded configuration from the file
// watcher.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// COMMAND RESULT MESSAGES
// =============================================================================

// ModelsLoadedMsg delivers the backend's model list.
type ModelsLoadedMsg struct {
	Models []backend.ModelInfo
	Err    error
}

// HydratedMsg signals that the conversation listing was fetched.
type HydratedMsg struct {
	Err error
}

// ConversationSelectedMsg signals that a conversation finished loading.
type ConversationSelectedMsg struct {
	ID  string
	Err error
}

// ConversationDeletedMsg signals the outcome of a deletion.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// SettingsAppliedMsg signals the outcome of a settings push.
type SettingsAppliedMsg struct {
	Err error
}

// statusExpiredMsg clears a transient status line.
type statusExpiredMsg struct {
	seq int
}
