// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the typed RPC client for the inference backend.
package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/parley-chat/parley/internal/correlate"
	"github.com/parley-chat/parley/internal/transport"
	"github.com/parley-chat/parley/internal/wire"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds the facade's timeout policy.
type Config struct {
	// ControlTimeout bounds control-plane operations: models, actions,
	// settings, and history persistence (default: 30s).
	ControlTimeout time.Duration

	// ChatTimeout bounds a whole chat generation (default: 2m).
	ChatTimeout time.Duration

	// WatchdogWindow is how long a chat stream may stay completely silent
	// before the liveness watchdog terminates it (default: 15s).
	WatchdogWindow time.Duration
}

// DefaultConfig returns the default timeout policy.
func DefaultConfig() *Config {
	return &Config{
		ControlTimeout: 30 * time.Second,
		ChatTimeout:    2 * time.Minute,
		WatchdogWindow: 15 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client exposes the backend's operations as typed methods.
type Client struct {
	transport  *transport.Transport
	correlator *correlate.Correlator
	config     *Config
	logger     *slog.Logger
}

// New creates a backend client on top of an existing transport and
// correlator. A nil config uses defaults; a nil logger disables logging.
func New(tr *transport.Transport, corr *correlate.Correlator, config *Config, logger *slog.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ControlTimeout == 0 {
		config.ControlTimeout = 30 * time.Second
	}
	if config.ChatTimeout == 0 {
		config.ChatTimeout = 2 * time.Minute
	}
	if config.WatchdogWindow == 0 {
		config.WatchdogWindow = 15 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		transport:  tr,
		correlator: corr,
		config:     config,
		logger:     logger,
	}
}

// Connected reports whether the transport can currently carry a request.
func (c *Client) Connected() bool {
	return c.transport.State() == transport.StateOpen
}

// =============================================================================
// SINGLE-SHOT CALLS
// =============================================================================

// call performs one request/reply exchange with a timeout. The reply
// envelope is returned for payload decoding.
func (c *Client) call(ctx context.Context, msgType string, payload any) (wire.Envelope, error) {
	id := correlate.NewID()

	events := make(chan correlate.Event, 1)
	if err := c.correlator.Register(id, false, func(e correlate.Event) {
		select {
		case events <- e:
		default:
		}
	}); err != nil {
		return wire.Envelope{}, &ClientError{Type: ErrTypeUnknown, Message: "register request", Cause: err}
	}

	env, err := wire.NewRequest(msgType, id, payload)
	if err != nil {
		c.correlator.Cancel(id)
		return wire.Envelope{}, &ClientError{Type: ErrTypeUnknown, Message: "build request", Cause: err}
	}
	if err := c.transport.Send(env); err != nil {
		c.correlator.Cancel(id)
		return wire.Envelope{}, &ClientError{Type: ErrTypeNotConnected, Message: "send " + msgType, Cause: err}
	}

	timer := time.NewTimer(c.config.ControlTimeout)
	defer timer.Stop()

	select {
	case e := <-events:
		switch {
		case e.Err != nil:
			return wire.Envelope{}, NewTransportLostError(e.Err)
		case e.Canceled:
			return wire.Envelope{}, ErrCanceled
		case e.PeerError != "":
			return wire.Envelope{}, NewPeerError(e.PeerError)
		default:
			return e.Envelope, nil
		}
	case <-timer.C:
		c.correlator.Cancel(id)
		c.logger.Warn("request timed out", "type", msgType)
		return wire.Envelope{}, ErrTimeout
	case <-ctx.Done():
		c.correlator.Cancel(id)
		return wire.Envelope{}, &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: ctx.Err()}
	}
}

// callAck performs a call whose reply is a bare success acknowledgement.
func (c *Client) callAck(ctx context.Context, msgType string, payload any) error {
	env, err := c.call(ctx, msgType, payload)
	if err != nil {
		return err
	}
	var ack successPayload
	if err := env.DecodeData(&ack); err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "decode " + msgType + " reply", Cause: err}
	}
	if !ack.Success {
		return NewPeerError(msgType + " rejected by backend")
	}
	return nil
}

// =============================================================================
// CONTROL OPERATIONS
// =============================================================================

// ListModels retrieves the models available on the backend.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	env, err := c.call(ctx, wire.TypeModels, nil)
	if err != nil {
		return nil, err
	}
	var reply modelsPayload
	if err := env.DecodeData(&reply); err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "decode models reply", Cause: err}
	}
	return reply.Models, nil
}

// ExecuteAction runs a system action on the backend.
func (c *Client) ExecuteAction(ctx context.Context, req ActionRequest) (*ActionResponse, error) {
	env, err := c.call(ctx, wire.TypeAction, req)
	if err != nil {
		return nil, err
	}
	var reply ActionResponse
	if err := env.DecodeData(&reply); err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "decode action reply", Cause: err}
	}
	return &reply, nil
}

// UpdateSettings pushes generation settings to the backend.
func (c *Client) UpdateSettings(ctx context.Context, settings Settings) error {
	return c.callAck(ctx, wire.TypeSettings, settings)
}

// =============================================================================
// PERSISTENCE OPERATIONS
// =============================================================================

// SaveConversation upserts a conversation row in the backend's store.
func (c *Client) SaveConversation(ctx context.Context, id, title, model string) error {
	return c.callAck(ctx, wire.TypeSaveConversation, saveConversationPayload{ID: id, Title: title, Model: model})
}

// SaveMessage appends a message row to a conversation in the backend's store.
func (c *Client) SaveMessage(ctx context.Context, msgID, conversationID, role, content string) error {
	return c.callAck(ctx, wire.TypeSaveMessage, saveMessagePayload{
		ID:             msgID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
}

// LoadConversations lists all persisted conversations.
func (c *Client) LoadConversations(ctx context.Context) ([]ConversationRecord, error) {
	env, err := c.call(ctx, wire.TypeLoadConversations, nil)
	if err != nil {
		return nil, err
	}
	var reply conversationsPayload
	if err := env.DecodeData(&reply); err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "decode conversations reply", Cause: err}
	}
	return reply.Conversations, nil
}

// LoadMessages retrieves a conversation's messages in append order.
func (c *Client) LoadMessages(ctx context.Context, conversationID string) ([]MessageRecord, error) {
	env, err := c.call(ctx, wire.TypeLoadMessages, conversationRefPayload{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	var reply messagesPayload
	if err := env.DecodeData(&reply); err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "decode messages reply", Cause: err}
	}
	return reply.Messages, nil
}

// DeleteConversation removes a conversation and its messages from the
// backend's store.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.callAck(ctx, wire.TypeDeleteConversation, conversationRefPayload{ConversationID: conversationID})
}
