// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package correlate matches inbound envelopes to the requests that
// originated them.
package correlate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/wire"
)

func streamEnvelope(id, chunk string, done bool) wire.Envelope {
	data, _ := json.Marshal(map[string]any{"chunk": chunk, "done": done})
	return wire.Envelope{Type: wire.TypeStream, Data: data, RequestID: id}
}

func TestDispatchSingleShot(t *testing.T) {
	c := New(nil)

	var events []Event
	require.NoError(t, c.Register("a", false, func(e Event) {
		events = append(events, e)
	}))

	c.Dispatch(wire.Envelope{Type: wire.TypeModels, Data: json.RawMessage(`{"models":[]}`), RequestID: "a"})

	require.Len(t, events, 1)
	assert.True(t, events[0].Done)
	assert.Empty(t, events[0].PeerError)
	assert.Equal(t, 0, c.PendingCount())

	// A late duplicate reply has no registration to match.
	c.Dispatch(wire.Envelope{Type: wire.TypeModels, RequestID: "a"})
	assert.Len(t, events, 1)
}

func TestDispatchStreamOrdering(t *testing.T) {
	c := New(nil)

	var chunks []string
	var done bool
	require.NoError(t, c.Register("s", true, func(e Event) {
		if e.Chunk != "" {
			chunks = append(chunks, e.Chunk)
		}
		if e.Done {
			done = true
		}
	}))

	c.Dispatch(streamEnvelope("s", "Hel", false))
	c.Dispatch(streamEnvelope("s", "lo wor", false))
	c.Dispatch(streamEnvelope("s", "ld", false))
	assert.False(t, done)
	assert.Equal(t, 1, c.PendingCount())

	c.Dispatch(streamEnvelope("s", "", true))
	assert.True(t, done)
	assert.Equal(t, []string{"Hel", "lo wor", "ld"}, chunks)
	assert.Equal(t, 0, c.PendingCount())
}

func TestDispatchCoincidentChunkAndDone(t *testing.T) {
	c := New(nil)

	var last Event
	require.NoError(t, c.Register("s", true, func(e Event) { last = e }))

	// Final fragment and completion marker in one envelope: the consumer
	// must see both in a single event.
	c.Dispatch(streamEnvelope("s", "tail", true))

	assert.Equal(t, "tail", last.Chunk)
	assert.True(t, last.Done)
	assert.Equal(t, 0, c.PendingCount())
}

func TestDispatchIsolation(t *testing.T) {
	c := New(nil)

	got := map[string][]string{}
	for _, id := range []string{"a", "b"} {
		id := id
		require.NoError(t, c.Register(id, true, func(e Event) {
			if e.Chunk != "" {
				got[id] = append(got[id], e.Chunk)
			}
		}))
	}

	c.Dispatch(streamEnvelope("a", "a1", false))
	c.Dispatch(streamEnvelope("b", "b1", false))
	c.Dispatch(streamEnvelope("a", "a2", true))
	c.Dispatch(streamEnvelope("b", "b2", true))

	assert.Equal(t, []string{"a1", "a2"}, got["a"])
	assert.Equal(t, []string{"b1", "b2"}, got["b"])
}

func TestDispatchPeerError(t *testing.T) {
	c := New(nil)

	var last Event
	require.NoError(t, c.Register("s", true, func(e Event) { last = e }))

	c.Dispatch(wire.Envelope{
		Type:      wire.TypeError,
		Data:      json.RawMessage(`{"error":"model not found"}`),
		RequestID: "s",
	})

	assert.True(t, last.Done)
	assert.Equal(t, "model not found", last.PeerError)
	assert.Equal(t, 0, c.PendingCount())
}

func TestDispatchUnknownIDDropped(t *testing.T) {
	c := New(nil)
	// Must not panic or affect the table.
	c.Dispatch(streamEnvelope("ghost", "x", false))
	assert.Equal(t, 0, c.PendingCount())
}

func TestRegisterDuplicate(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Register("dup", false, func(Event) {}))
	assert.ErrorIs(t, c.Register("dup", true, func(Event) {}), ErrDuplicateID)
}

func TestCancelIdempotent(t *testing.T) {
	c := New(nil)

	calls := 0
	var last Event
	require.NoError(t, c.Register("x", true, func(e Event) {
		calls++
		last = e
	}))

	c.Cancel("x")
	c.Cancel("x")
	c.Cancel("never-registered")

	assert.Equal(t, 1, calls)
	assert.True(t, last.Canceled)
	assert.True(t, last.Done)

	// Fragments arriving after cancellation are dropped.
	c.Dispatch(streamEnvelope("x", "late", false))
	assert.Equal(t, 1, calls)
}

func TestFailAll(t *testing.T) {
	c := New(nil)
	reason := errors.New("connection lost")

	var errs []error
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Register(id, id == "a", func(e Event) {
			errs = append(errs, e.Err)
		}))
	}

	c.FailAll(reason)

	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, reason)
	}
	assert.Equal(t, 0, c.PendingCount())

	// Table is reusable afterwards.
	require.NoError(t, c.Register("a", false, func(Event) {}))
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
