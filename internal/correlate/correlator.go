// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package correlate matches inbound envelopes to the requests that
// originated them.
package correlate

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/wire"
)

// =============================================================================
// EVENTS
// =============================================================================

// Event is what a pending request's callback receives. Exactly one of the
// failure indicators (PeerError, Canceled, Err) is set on a failed delivery;
// all are empty on a normal reply. A terminal stream fragment may carry both
// a Chunk and Done=true in the same event, and consumers must apply the
// chunk before treating the stream as finished.
type Event struct {
	// Envelope is the raw inbound envelope. Zero-valued for synthetic
	// events produced by Cancel and FailAll.
	Envelope wire.Envelope

	// Chunk is the stream fragment carried by this envelope, if any.
	Chunk string

	// Done is true when this event tears down the registration.
	Done bool

	// PeerError is the error string the backend reported in the payload.
	PeerError string

	// Canceled is true when the caller canceled the request.
	Canceled bool

	// Err is the connection-level failure passed to FailAll.
	Err error
}

// OnEvent is invoked for every delivery to a pending request. Calls for one
// correlation ID happen in arrival order and never after a terminal event.
type OnEvent func(Event)

// ErrDuplicateID is returned by Register when the correlation ID is already
// in use. IDs come from NewID, so hitting this indicates a caller bug.
var ErrDuplicateID = errors.New("correlation id already registered")

// NewID returns a fresh collision-resistant correlation ID.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// CORRELATOR
// =============================================================================

// pendingRequest is one outstanding request awaiting replies.
type pendingRequest struct {
	id        string
	streaming bool
	onEvent   OnEvent
	createdAt time.Time
}

// Correlator owns the pending-request table. It is safe for concurrent use;
// callbacks are invoked outside the lock.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	logger  *slog.Logger
}

// New creates an empty correlator. A nil logger disables logging.
func New(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Correlator{
		pending: make(map[string]*pendingRequest),
		logger:  logger,
	}
}

// Register adds a pending request for id. Streaming registrations survive
// until a terminal marker; single-shot registrations are removed by their
// first matching reply.
func (c *Correlator) Register(id string, streaming bool, fn OnEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[id]; exists {
		return ErrDuplicateID
	}

	c.pending[id] = &pendingRequest{
		id:        id,
		streaming: streaming,
		onEvent:   fn,
		createdAt: time.Now(),
	}
	return nil
}

// Dispatch routes an inbound envelope to its pending request. Envelopes
// without a matching registration are dropped. Terminality is decided here:
// a single-shot reply, a done:true payload, an error payload, or an
// envelope of type "error" all tear the registration down, with the data
// delivered in the same event.
func (c *Correlator) Dispatch(env wire.Envelope) {
	var meta struct {
		Chunk string `json:"chunk"`
		Done  bool   `json:"done"`
		Error string `json:"error"`
	}
	// Payload shape varies per operation; only the fields above matter for
	// routing, so decode errors are ignored.
	_ = env.DecodeData(&meta)

	c.mu.Lock()
	p, ok := c.pending[env.RequestID]
	if !ok {
		c.mu.Unlock()
		c.logger.Warn("dropping envelope with no pending request",
			"type", env.Type, "request_id", env.RequestID)
		return
	}

	terminal := !p.streaming || meta.Done || meta.Error != "" || env.Type == wire.TypeError
	if terminal {
		delete(c.pending, env.RequestID)
	}
	c.mu.Unlock()

	p.onEvent(Event{
		Envelope:  env,
		Chunk:     meta.Chunk,
		Done:      terminal,
		PeerError: meta.Error,
	})
}

// Cancel removes the registration for id and notifies its consumer.
// Idempotent: canceling an unknown or already-completed ID is a no-op.
func (c *Correlator) Cancel(id string) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		p.onEvent(Event{Done: true, Canceled: true})
	}
}

// FailAll delivers reason to every pending consumer and clears the table.
// Called by the transport when the connection is lost.
func (c *Correlator) FailAll(reason error) {
	c.mu.Lock()
	failed := make([]*pendingRequest, 0, len(c.pending))
	for _, p := range c.pending {
		failed = append(failed, p)
	}
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	if len(failed) > 0 {
		c.logger.Info("failing pending requests", "count", len(failed))
	}
	for _, p := range failed {
		p.onEvent(Event{Done: true, Err: reason})
	}
}

// PendingCount returns the number of outstanding registrations.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
