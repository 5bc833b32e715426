// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport owns the persistent WebSocket to the inference backend.
package transport

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/parley-chat/parley/internal/correlate"
	"github.com/parley-chat/parley/internal/wire"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// TransportError represents a connection-level failure.
type TransportError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is makes sentinel comparison work across separately constructed values.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// ErrorType categorizes transport errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConnected
	ErrTypeConnectFailed
	ErrTypeTransportLost
	ErrTypeReconnectExhausted
)

// Sentinel errors for easy checking.
var (
	ErrNotConnected       = &TransportError{Type: ErrTypeNotConnected, Message: "not connected"}
	ErrTransportLost      = &TransportError{Type: ErrTypeTransportLost, Message: "connection to backend lost"}
	ErrReconnectExhausted = &TransportError{Type: ErrTypeReconnectExhausted, Message: "reconnect attempts exhausted"}
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// StateListener observes connection state transitions. err is non-nil only
// for the terminal transition after the reconnect ceiling is exceeded.
type StateListener func(state State, err error)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds transport configuration.
type Config struct {
	// Endpoint is the backend WebSocket URL (e.g. ws://127.0.0.1:8765/ws).
	Endpoint string

	// Token is the authentication token handed over by the process
	// supervisor. It is sent as the token query parameter on dial; an
	// invalid token surfaces as a connect failure.
	Token string

	// Origin is the origin header sent on dial (default: http://127.0.0.1).
	Origin string

	// BaseDelay is the reconnect backoff unit; attempt k waits k*BaseDelay
	// (default: 2s).
	BaseDelay time.Duration

	// MaxReconnectAttempts caps consecutive reconnect attempts before the
	// transport gives up (default: 5).
	MaxReconnectAttempts int
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:             "ws://127.0.0.1:8765/ws",
		Origin:               "http://127.0.0.1",
		BaseDelay:            2 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// =============================================================================
// TRANSPORT
// =============================================================================

// Transport owns the socket and drives the correlator. Safe for concurrent
// use; the state listener is invoked outside the lock.
type Transport struct {
	config     *Config
	correlator *correlate.Correlator
	logger     *slog.Logger

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	attempts       int
	closeRequested bool
	// gen invalidates in-flight dials: Disconnect bumps it, and a Connect
	// that started under an older generation discards its socket.
	gen            int
	reconnectTimer *time.Timer
	onState        StateListener
}

// New creates a transport. The correlator must not be nil; a nil logger
// disables logging.
func New(config *Config, correlator *correlate.Correlator, logger *slog.Logger) *Transport {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Endpoint == "" {
		config.Endpoint = "ws://127.0.0.1:8765/ws"
	}
	if config.Origin == "" {
		config.Origin = "http://127.0.0.1"
	}
	if config.BaseDelay == 0 {
		config.BaseDelay = 2 * time.Second
	}
	if config.MaxReconnectAttempts == 0 {
		config.MaxReconnectAttempts = 5
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transport{
		config:     config,
		correlator: correlator,
		logger:     logger,
	}
}

// SetStateListener registers the connection-state observer.
func (t *Transport) SetStateListener(fn StateListener) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// dialURL builds the endpoint URL with the auth token as a query parameter.
func (t *Transport) dialURL() (string, error) {
	u, err := url.Parse(t.config.Endpoint)
	if err != nil {
		return "", &TransportError{Type: ErrTypeConnectFailed, Message: "invalid endpoint", Cause: err}
	}
	q := u.Query()
	q.Set("token", t.config.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the backend and blocks until the socket is open or the
// dial fails. Only one attempt runs at a time; a Connect while already
// connecting or open is a no-op.
func (t *Transport) Connect() error {
	t.mu.Lock()
	if t.state == StateConnecting || t.state == StateOpen {
		t.mu.Unlock()
		return nil
	}
	t.state = StateConnecting
	t.closeRequested = false
	gen := t.gen
	t.mu.Unlock()
	t.notify(StateConnecting, nil)

	target, err := t.dialURL()
	if err != nil {
		t.setDisconnected()
		return err
	}

	conn, err := websocket.Dial(target, "", t.config.Origin)
	if err != nil {
		t.setDisconnected()
		return &TransportError{Type: ErrTypeConnectFailed, Message: "dial backend", Cause: err}
	}

	t.mu.Lock()
	if t.gen != gen {
		// Disconnect arrived while the dial was in flight; the owner's
		// request wins and the fresh socket is discarded.
		t.mu.Unlock()
		conn.Close()
		return nil
	}
	t.state = StateOpen
	t.conn = conn
	t.attempts = 0
	t.mu.Unlock()
	t.notify(StateOpen, nil)
	t.logger.Info("connected", "endpoint", t.config.Endpoint)

	go t.readLoop(conn)
	return nil
}

// Send writes an envelope to the socket. Requires state Open; there is no
// queueing, so callers see backpressure immediately.
func (t *Transport) Send(env wire.Envelope) error {
	t.mu.Lock()
	if t.state != StateOpen || t.conn == nil {
		t.mu.Unlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.Unlock()

	frame, err := wire.Encode(env)
	if err != nil {
		return &TransportError{Type: ErrTypeUnknown, Message: "encode envelope", Cause: err}
	}
	if err := websocket.Message.Send(conn, frame); err != nil {
		return &TransportError{Type: ErrTypeTransportLost, Message: "write frame", Cause: err}
	}
	return nil
}

// Disconnect closes the connection at the owner's request, suppressing
// auto-reconnect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.closeRequested = true
	t.gen++
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	conn := t.conn
	if conn != nil {
		t.state = StateClosing
	} else {
		t.state = StateDisconnected
	}
	t.mu.Unlock()

	if conn != nil {
		t.notify(StateClosing, nil)
		conn.Close() // readLoop observes the close and finishes the transition
	} else {
		t.notify(StateDisconnected, nil)
	}
}

// =============================================================================
// RECEIVE LOOP
// =============================================================================

// readLoop reads frames until the connection dies. Malformed frames are
// logged and skipped; they never tear down the connection.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		var frame []byte
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			t.handleClose(conn, err)
			return
		}

		env, err := wire.Decode(frame)
		if err != nil {
			t.logger.Warn("discarding malformed frame", "error", err)
			continue
		}
		t.correlator.Dispatch(env)
	}
}

// handleClose runs once per connection when its read loop exits.
func (t *Transport) handleClose(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		// A stale loop from a connection already replaced.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = StateDisconnected
	requested := t.closeRequested
	t.mu.Unlock()

	conn.Close()
	t.logger.Info("connection closed", "requested", requested, "cause", cause)
	t.notify(StateDisconnected, nil)

	// Everything in flight fails with one transport-lost signal each.
	t.correlator.FailAll(ErrTransportLost)

	if !requested {
		t.scheduleReconnect()
	}
}

// scheduleReconnect arms the next attempt with linear backoff, or gives up
// once the ceiling is exceeded.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	t.attempts++
	attempt := t.attempts
	if attempt > t.config.MaxReconnectAttempts {
		t.mu.Unlock()
		t.logger.Error("reconnect attempts exhausted", "attempts", attempt-1)
		t.notify(StateDisconnected, ErrReconnectExhausted)
		return
	}
	delay := t.config.BaseDelay * time.Duration(attempt)
	t.reconnectTimer = time.AfterFunc(delay, func() {
		if err := t.Connect(); err != nil {
			t.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			t.scheduleReconnect()
		}
	})
	t.mu.Unlock()
	t.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// setDisconnected records a failed connect attempt.
func (t *Transport) setDisconnected() {
	t.mu.Lock()
	t.state = StateDisconnected
	t.mu.Unlock()
	t.notify(StateDisconnected, nil)
}

// notify invokes the state listener outside the lock.
func (t *Transport) notify(state State, err error) {
	t.mu.Lock()
	fn := t.onState
	t.mu.Unlock()
	if fn != nil {
		fn(state, err)
	}
}
