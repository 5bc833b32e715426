// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state.
package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/backend"
)

// savedRow records one persistence call against the fake backend.
type savedRow struct {
	kind    string // "conversation" or "message"
	convID  string
	msgID   string
	role    string
	content string
	title   string
}

// fakeBackend is a scripted stand-in for the backend client. Stream
// callbacks are captured and driven by the test.
type fakeBackend struct {
	mu        sync.Mutex
	connected bool
	streamErr error
	callback  backend.StreamCallback
	streamed  string
	canceled  bool

	lastHistory []backend.ChatMessage
	lastModel   string

	convs     []backend.ConversationRecord
	msgs      map[string][]backend.MessageRecord
	loadCalls int
	deleted   []string

	saves chan savedRow
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		connected: true,
		msgs:      map[string][]backend.MessageRecord{},
		saves:     make(chan savedRow, 16),
	}
}

func (f *fakeBackend) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBackend) ChatStream(messages []backend.ChatMessage, model string, callback backend.StreamCallback) (backend.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.lastHistory = messages
	f.lastModel = model
	f.callback = callback
	f.streamed = ""
	f.canceled = false
	return func() {
		f.mu.Lock()
		already := f.canceled
		f.canceled = true
		cb := f.callback
		content := f.streamed
		f.mu.Unlock()
		// Cancellation carries the accumulation so far, like the real
		// facade.
		if !already && cb != nil {
			cb(backend.StreamUpdate{Content: content, Done: true, Err: backend.ErrCanceled})
		}
	}, nil
}

// drive pushes a stream update through the captured callback.
func (f *fakeBackend) drive(u backend.StreamUpdate) {
	f.mu.Lock()
	cb := f.callback
	f.streamed = u.Content
	f.mu.Unlock()
	cb(u)
}

func (f *fakeBackend) SaveConversation(_ context.Context, id, title, model string) error {
	f.saves <- savedRow{kind: "conversation", convID: id, title: title}
	return nil
}

func (f *fakeBackend) SaveMessage(_ context.Context, msgID, conversationID, role, content string) error {
	f.saves <- savedRow{kind: "message", convID: conversationID, msgID: msgID, role: role, content: content}
	return nil
}

func (f *fakeBackend) LoadConversations(context.Context) ([]backend.ConversationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convs, nil
}

func (f *fakeBackend) LoadMessages(_ context.Context, conversationID string) ([]backend.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return f.msgs[conversationID], nil
}

func (f *fakeBackend) DeleteConversation(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, conversationID)
	return nil
}

func waitSave(t *testing.T, f *fakeBackend) savedRow {
	t.Helper()
	select {
	case row := <-f.saves:
		return row
	case <-time.After(2 * time.Second):
		t.Fatal("expected persistence call never happened")
		return savedRow{}
	}
}

// eventRecorder collects store notifications.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// =============================================================================
// SEND GATING
// =============================================================================

func TestSendRefusedWhileStreaming(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("first"))
	assert.ErrorIs(t, store.Send("second"), ErrStreamBusy)

	fake.drive(backend.StreamUpdate{Content: "done", Done: true})
	assert.False(t, store.Streaming())

	// A finished stream releases the gate.
	require.NoError(t, store.Send("third"))
}

func TestSendRefusedOffline(t *testing.T) {
	fake := newFakeBackend()
	fake.connected = false
	store := NewStore(fake, nil)

	assert.ErrorIs(t, store.Send("hello"), ErrOffline)
	assert.Nil(t, store.Active())
}

func TestSendRefusedEmpty(t *testing.T) {
	store := NewStore(newFakeBackend(), nil)
	assert.ErrorIs(t, store.Send("   "), ErrEmptyMessage)
}

func TestSendFailureRemovesPlaceholder(t *testing.T) {
	fake := newFakeBackend()
	fake.streamErr = errors.New("send refused")
	store := NewStore(fake, nil)

	require.Error(t, store.Send("hello"))
	assert.False(t, store.Streaming())

	// The user message survives; the orphaned placeholder does not.
	active := store.Active()
	require.NotNil(t, active)
	require.Len(t, active.Messages, 1)
	assert.Equal(t, RoleUser, active.Messages[0].Role)
}

// =============================================================================
// STREAMING INTO THE CONVERSATION
// =============================================================================

func TestSendStreamsIntoPlaceholder(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)
	rec := &eventRecorder{}
	store.SetNotify(rec.notify)

	require.NoError(t, store.Send("hello"))

	// The request carries only the real turn, not the placeholder.
	require.Len(t, fake.lastHistory, 1)
	assert.Equal(t, "hello", fake.lastHistory[0].Content)

	active := store.Active()
	require.Len(t, active.Messages, 2)
	assert.True(t, active.Messages[1].Streaming)

	fake.drive(backend.StreamUpdate{Content: "Hel"})
	fake.drive(backend.StreamUpdate{Content: "Hello wor"})
	fake.drive(backend.StreamUpdate{Content: "Hello world", Done: true})

	active = store.Active()
	last := active.LastMessage()
	assert.Equal(t, "Hello world", last.Content)
	assert.False(t, last.Streaming)
	assert.NoError(t, last.Err)
	assert.Equal(t, 1, rec.count(EventStreamEnded))
}

func TestStreamUpdateMirrorsNotAppends(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("hello"))

	// Redelivering the same cumulative content must not duplicate it.
	fake.drive(backend.StreamUpdate{Content: "same text"})
	fake.drive(backend.StreamUpdate{Content: "same text"})
	fake.drive(backend.StreamUpdate{Content: "same text", Done: true})

	assert.Equal(t, "same text", store.Active().LastMessage().Content)
}

func TestCancelKeepsPartialContent(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("hello"))
	fake.drive(backend.StreamUpdate{Content: "partial answer"})

	store.CancelStream()

	last := store.Active().LastMessage()
	assert.Equal(t, "partial answer", last.Content)
	assert.False(t, last.Streaming)
	assert.True(t, backend.IsCanceled(last.Err))
	assert.False(t, store.Streaming())
}

func TestEmptyTerminalUpdateKeepsStreamedContent(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("hello"))
	fake.drive(backend.StreamUpdate{Content: "streamed so far"})

	// A terminal update that carries no content must not blank what the
	// user has already seen.
	fake.drive(backend.StreamUpdate{Done: true, Err: backend.ErrCanceled})

	last := store.Active().LastMessage()
	assert.Equal(t, "streamed so far", last.Content)
	assert.True(t, backend.IsCanceled(last.Err))
}

func TestSilentStreamGetsDiagnosticContent(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("hello"))
	fake.drive(backend.StreamUpdate{Done: true, Err: backend.ErrStreamSilent})

	last := store.Active().LastMessage()
	assert.False(t, last.Streaming)
	assert.True(t, backend.IsStreamSilent(last.Err))
	assert.NotEmpty(t, last.Content, "a silent failure must leave something to render")
}

func TestStreamErrorKeepsPartialContent(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("hello"))
	fake.drive(backend.StreamUpdate{Content: "partial"})
	fake.drive(backend.StreamUpdate{Content: "partial", Done: true, Err: backend.NewPeerError("model crashed")})

	last := store.Active().LastMessage()
	assert.Equal(t, "partial", last.Content)
	assert.True(t, backend.IsPeerError(last.Err))
}

// =============================================================================
// PERSISTENCE SIDE EFFECTS
// =============================================================================

func TestSendPersistsTurn(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("What is Go?"))

	conv := waitSave(t, fake)
	assert.Equal(t, "conversation", conv.kind)
	assert.Equal(t, "What is Go?", conv.title)

	user := waitSave(t, fake)
	assert.Equal(t, "message", user.kind)
	assert.Equal(t, "user", user.role)
	assert.Equal(t, "What is Go?", user.content)

	fake.drive(backend.StreamUpdate{Content: "A language.", Done: true})

	assistant := waitSave(t, fake)
	assert.Equal(t, "message", assistant.kind)
	assert.Equal(t, "assistant", assistant.role)
	assert.Equal(t, "A language.", assistant.content)
}

func TestFailedStreamNotPersisted(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)

	require.NoError(t, store.Send("hello"))
	waitSave(t, fake) // conversation
	waitSave(t, fake) // user message

	fake.drive(backend.StreamUpdate{Done: true, Err: backend.ErrStreamSilent})

	select {
	case row := <-fake.saves:
		t.Fatalf("unexpected persistence call after failed stream: %+v", row)
	case <-time.After(100 * time.Millisecond):
	}
}

// =============================================================================
// HYDRATION, SELECTION, DELETION
// =============================================================================

func TestHydrateAndSelect(t *testing.T) {
	fake := newFakeBackend()
	fake.convs = []backend.ConversationRecord{
		{ID: "c1", Title: "First", Model: "llama2", CreatedAt: "2025-06-01T10:00:00Z"},
		{ID: "c2", Title: "Second", Model: "mistral"},
	}
	fake.msgs["c1"] = []backend.MessageRecord{
		{ID: "m1", Role: "user", Content: "hi", CreatedAt: "2025-06-01 10:00:01"},
		{ID: "m2", Role: "assistant", Content: "hello"},
	}

	store := NewStore(fake, nil)
	require.NoError(t, store.Hydrate(context.Background()))

	listing := store.Conversations()
	require.Len(t, listing, 2)
	assert.Equal(t, "First", listing[0].Title)
	assert.False(t, listing[0].CreatedAt.IsZero())

	require.NoError(t, store.Select(context.Background(), "c1"))
	active := store.Active()
	require.NotNil(t, active)
	require.Len(t, active.Messages, 2)
	assert.Equal(t, RoleUser, active.Messages[0].Role)

	// Reselection must not refetch an already loaded history.
	require.NoError(t, store.Select(context.Background(), "c1"))
	assert.Equal(t, 1, fake.loadCalls)

	assert.ErrorIs(t, store.Select(context.Background(), "missing"), ErrNoConversation)
}

func TestDelete(t *testing.T) {
	fake := newFakeBackend()
	fake.convs = []backend.ConversationRecord{{ID: "c1", Title: "Doomed"}}
	store := NewStore(fake, nil)
	require.NoError(t, store.Hydrate(context.Background()))
	require.NoError(t, store.Select(context.Background(), "c1"))

	require.NoError(t, store.Delete(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, fake.deleted)
	assert.Empty(t, store.Conversations())
	assert.Nil(t, store.Active())

	assert.ErrorIs(t, store.Delete(context.Background(), "c1"), ErrNoConversation)
}

func TestNewConversationAndModel(t *testing.T) {
	fake := newFakeBackend()
	store := NewStore(fake, nil)
	store.SetModel("mistral")

	conv := store.NewConversation()
	assert.Equal(t, "mistral", conv.Model)
	assert.Equal(t, conv.ID, store.ActiveID())

	require.NoError(t, store.Send("pick the right model"))
	assert.Equal(t, "mistral", fake.lastModel)
	fake.drive(backend.StreamUpdate{Content: "ok", Done: true})
}
