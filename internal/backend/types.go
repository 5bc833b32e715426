// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the typed RPC client for the inference backend.
package backend

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatMessage is one turn of conversation history as sent to the backend.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// chatPayload is the request body for the chat operation.
type chatPayload struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo describes one model available on the backend.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// modelsPayload is the reply body for the models operation.
type modelsPayload struct {
	Models []ModelInfo `json:"models"`
}

// =============================================================================
// ACTION TYPES
// =============================================================================

// ActionRequest asks the backend to execute a system action.
type ActionRequest struct {
	Type        string `json:"type"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
}

// ActionResponse is the backend's result for an executed action.
type ActionResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// =============================================================================
// SETTINGS TYPES
// =============================================================================

// Settings carries generation settings pushed to the backend.
type Settings struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// =============================================================================
// PERSISTENCE TYPES
// =============================================================================

// ConversationRecord is a persisted conversation row as returned by the
// backend's history store.
type ConversationRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageRecord is a persisted message row.
type MessageRecord struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// saveConversationPayload is the request body for save_conversation.
type saveConversationPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Model string `json:"model"`
}

// saveMessagePayload is the request body for save_message.
type saveMessagePayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
}

// conversationRefPayload selects a conversation by ID.
type conversationRefPayload struct {
	ConversationID string `json:"conversationId"`
}

// successPayload is the generic acknowledgement body.
type successPayload struct {
	Success bool `json:"success"`
}

// conversationsPayload is the reply body for load_conversations.
type conversationsPayload struct {
	Conversations []ConversationRecord `json:"conversations"`
}

// messagesPayload is the reply body for load_messages.
type messagesPayload struct {
	Messages []MessageRecord `json:"messages"`
}
