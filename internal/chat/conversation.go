// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/backend"
	"github.com/parley-chat/parley/internal/util"
)

// titleWidth is the display width a derived conversation title may
// occupy before truncation.
const titleWidth = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds one chat thread: its metadata and message history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []*Message `json:"messages"`

	// loaded marks whether the message history has been fetched from the
	// backend. Conversations hydrated from a listing start unloaded.
	loaded bool
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation(model string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
		loaded:    true,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message and refreshes metadata.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// History converts the conversation into the request form a generation
// carries. Streaming placeholders and empty messages are skipped.
func (c *Conversation) History() []backend.ChatMessage {
	history := make([]backend.ChatMessage, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.Streaming || msg.IsEmpty() {
			continue
		}
		history = append(history, backend.ChatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return history
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message if none is set.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = DeriveTitle(msg.Content)
			return
		}
	}
}

// DeriveTitle produces a listing title from message text: the first line,
// truncated to a fixed display width.
func DeriveTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "New Conversation"
	}
	return util.TruncateWidth(line, titleWidth)
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// Clone returns a deep copy for handing to observers.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		Title:     c.Title,
		Model:     c.Model,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*Message, len(c.Messages)),
		loaded:    c.loaded,
	}
	for i, msg := range c.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}
	return clone
}
