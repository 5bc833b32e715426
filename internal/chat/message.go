// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single message in a conversation. While Streaming is true
// the content is the partial response so far; each stream update replaces
// it wholesale with the accumulated text, so a redelivered update cannot
// duplicate content.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Streaming is true while this message is the target of an in-flight
	// generation. Not persisted.
	Streaming bool `json:"-"`

	// Err records why a generation ended abnormally. Not persisted; a
	// message with Err set still keeps whatever content had accumulated.
	Err error `json:"-"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantPlaceholder creates the empty streaming message that a
// generation fills in.
func NewAssistantPlaceholder() *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.Streaming = true
	return msg
}

// SetContent replaces the message content with the accumulated stream
// text.
func (m *Message) SetContent(content string) {
	m.Content = content
}

// Finalize ends streaming, keeping the accumulated content and recording
// the terminal error, if any.
func (m *Message) Finalize(err error) {
	m.Streaming = false
	m.Err = err
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return m.Content == ""
}
