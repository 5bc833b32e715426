// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the typed RPC client for the inference backend.
package backend

import (
	"strings"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/correlate"
	"github.com/parley-chat/parley/internal/wire"
)

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamUpdate carries the state of a chat generation to its consumer.
// Content is always the full accumulated text so far, never a bare
// fragment: consumers mirror it instead of appending, which makes
// redelivery of an update harmless.
type StreamUpdate struct {
	// Content is the running concatenation of every fragment received.
	Content string

	// Done is true on the final update. A final update may carry both the
	// last fragment (folded into Content) and completion.
	Done bool

	// Err is set on the final update when generation failed: timeout,
	// watchdog, cancellation, transport loss, or a peer-reported error.
	Err error
}

// StreamCallback receives updates in fragment-arrival order. The final
// call has Done=true; no calls follow it.
type StreamCallback func(StreamUpdate)

// CancelFunc stops an in-flight generation. Idempotent. Whatever content
// has accumulated stays with the consumer; fragments the peer sends
// afterwards no longer match a registration and are dropped.
type CancelFunc func()

// chatStream tracks one in-flight generation: the accumulator, both
// timers, and the terminal reason override used when a timer (rather than
// the caller) forces cancellation.
type chatStream struct {
	mu       sync.Mutex
	client   *Client
	id       string
	callback StreamCallback

	acc         strings.Builder
	gotFragment bool
	finished    bool

	outer    *time.Timer
	watchdog *time.Timer

	// reason, when set before cancelling through the correlator, replaces
	// the generic cancellation signal in the final update.
	reason error
}

// ChatStream starts a streaming generation over the conversation history.
// The callback fires for every fragment with the accumulated content and
// exactly once with Done=true. The returned CancelFunc stops generation
// early; the initial send failing is reported as an error and the
// callback never fires.
func (c *Client) ChatStream(messages []ChatMessage, model string, callback StreamCallback) (CancelFunc, error) {
	s := &chatStream{
		client:   c,
		id:       correlate.NewID(),
		callback: callback,
	}

	if err := c.correlator.Register(s.id, true, s.onEvent); err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "register chat request", Cause: err}
	}

	env, err := wire.NewRequest(wire.TypeChat, s.id, chatPayload{Messages: messages, Model: model})
	if err != nil {
		s.abort()
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "build chat request", Cause: err}
	}
	if err := c.transport.Send(env); err != nil {
		s.abort()
		return nil, &ClientError{Type: ErrTypeNotConnected, Message: "send chat request", Cause: err}
	}

	// Two independent timers: the outer budget for the whole generation,
	// and a shorter watchdog that only matters while zero fragments have
	// arrived. Both converge on the same cancellation path. Armed under
	// the lock: a reply racing in from the read loop sees either both
	// timers or none, and a stream that already finished arms nothing.
	s.mu.Lock()
	if !s.finished {
		s.outer = time.AfterFunc(c.config.ChatTimeout, func() { s.expire(ErrTimeout) })
		s.watchdog = time.AfterFunc(c.config.WatchdogWindow, s.watchdogFired)
	}
	s.mu.Unlock()

	return s.cancel, nil
}

// abort tears down a request whose send never went out. The stream is
// marked finished before the registration is cancelled, so the canceled
// event the correlator delivers is swallowed and the caller's callback
// never fires.
func (s *chatStream) abort() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.client.correlator.Cancel(s.id)
}

// onEvent receives correlated envelopes and synthetic signals.
func (s *chatStream) onEvent(e correlate.Event) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}

	if e.Chunk != "" {
		if !s.gotFragment {
			s.gotFragment = true
			if s.watchdog != nil {
				s.watchdog.Stop()
			}
		}
		s.acc.WriteString(e.Chunk)
	}

	if !e.Done {
		update := StreamUpdate{Content: s.acc.String()}
		s.mu.Unlock()
		s.callback(update)
		return
	}

	s.finished = true
	if s.outer != nil {
		s.outer.Stop()
	}
	if s.watchdog != nil {
		s.watchdog.Stop()
	}

	var err error
	switch {
	case e.Err != nil:
		err = NewTransportLostError(e.Err)
	case e.PeerError != "":
		err = NewPeerError(e.PeerError)
	case e.Canceled:
		if s.reason != nil {
			err = s.reason
		} else {
			err = ErrCanceled
		}
	}

	update := StreamUpdate{Content: s.acc.String(), Done: true, Err: err}
	s.mu.Unlock()

	if err != nil {
		s.client.logger.Warn("chat stream ended with error", "error", err)
	}
	s.callback(update)
}

// watchdogFired terminates a stream that has produced nothing at all.
func (s *chatStream) watchdogFired() {
	s.mu.Lock()
	if s.finished || s.gotFragment {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.expire(ErrStreamSilent)
}

// expire cancels the stream with a specific terminal reason.
func (s *chatStream) expire(reason error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.reason = reason
	s.mu.Unlock()
	s.client.correlator.Cancel(s.id)
}

// cancel is the caller-facing cancellation token.
func (s *chatStream) cancel() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.client.correlator.Cancel(s.id)
}
