// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/backend"
)

// =============================================================================
// STORE ERRORS
// =============================================================================

var (
	// ErrStreamBusy is returned by Send while a response is streaming.
	ErrStreamBusy = errors.New("a response is already streaming")

	// ErrOffline is returned by Send when the backend is unreachable.
	ErrOffline = errors.New("not connected to backend")

	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoConversation is returned when an operation names an unknown
	// conversation.
	ErrNoConversation = errors.New("conversation not found")
)

// =============================================================================
// STORE EVENTS
// =============================================================================

// EventKind classifies a store notification.
type EventKind int

const (
	// EventConversations fires when the conversation listing changed:
	// hydration, creation, deletion, or a derived title.
	EventConversations EventKind = iota

	// EventMessages fires when the active conversation's messages changed,
	// including every stream update.
	EventMessages

	// EventStreamEnded fires once per generation after the final update
	// has been applied. Err carries the terminal error, if any.
	EventStreamEnded
)

// Event is a store change notification.
type Event struct {
	Kind           EventKind
	ConversationID string
	Err            error
}

// Notify receives store events. Called outside the store lock, possibly
// from transport or timer goroutines; implementations must be safe to
// call concurrently.
type Notify func(Event)

// =============================================================================
// STORE
// =============================================================================

// Backend is the slice of the backend client the store consumes.
// *backend.Client satisfies it.
type Backend interface {
	Connected() bool
	ChatStream(messages []backend.ChatMessage, model string, callback backend.StreamCallback) (backend.CancelFunc, error)
	SaveConversation(ctx context.Context, id, title, model string) error
	SaveMessage(ctx context.Context, msgID, conversationID, role, content string) error
	LoadConversations(ctx context.Context) ([]backend.ConversationRecord, error)
	LoadMessages(ctx context.Context, conversationID string) ([]backend.MessageRecord, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Store owns the client-side conversation state and drives generations
// through the backend client.
type Store struct {
	mu     sync.Mutex
	client Backend
	logger *slog.Logger
	notify Notify

	// conversations is ordered newest first.
	conversations []*Conversation
	active        *Conversation
	model         string

	streaming bool
	cancel    backend.CancelFunc
}

// NewStore creates a store on top of a backend client. A nil logger
// disables logging.
func NewStore(client Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		client: client,
		logger: logger,
	}
}

// SetNotify installs the observer callback. Call before any operation
// that can emit events.
func (s *Store) SetNotify(fn Notify) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *Store) emit(e Event) {
	s.mu.Lock()
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// =============================================================================
// SENDING
// =============================================================================

// Send appends the user's message to the active conversation and starts
// a streaming generation for the reply. It refuses while a previous
// response is still streaming and while the backend is unreachable, so a
// message can never be typed into the void.
func (s *Store) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return ErrStreamBusy
	}
	if !s.client.Connected() {
		s.mu.Unlock()
		return ErrOffline
	}

	createdConversation := false
	if s.active == nil {
		s.active = NewConversation(s.model)
		s.conversations = append([]*Conversation{s.active}, s.conversations...)
		createdConversation = true
	}
	conv := s.active

	hadTitle := conv.Title != ""
	user := NewUserMessage(text)
	conv.AddMessage(user)

	// History is captured before the placeholder exists so the request
	// carries only real turns.
	history := conv.History()

	placeholder := NewAssistantPlaceholder()
	conv.AddMessage(placeholder)

	model := conv.Model
	if model == "" {
		model = s.model
	}
	title := conv.GetTitle()
	s.streaming = true
	s.mu.Unlock()

	if createdConversation || !hadTitle {
		s.emit(Event{Kind: EventConversations, ConversationID: conv.ID})
	}
	s.emit(Event{Kind: EventMessages, ConversationID: conv.ID})

	cancel, err := s.client.ChatStream(history, model, s.streamCallback(conv, placeholder))
	if err != nil {
		s.mu.Lock()
		s.streaming = false
		s.removeMessageLocked(conv, placeholder.ID)
		s.mu.Unlock()
		s.emit(Event{Kind: EventMessages, ConversationID: conv.ID})
		return err
	}

	s.mu.Lock()
	if s.streaming {
		s.cancel = cancel
	}
	s.mu.Unlock()

	// Persistence is a side effect, never a precondition: the turn is
	// already on screen whatever the history store says.
	go s.persistTurn(conv.ID, title, model, user)

	return nil
}

// streamCallback builds the per-generation update handler. Content is
// mirrored wholesale on every update; the placeholder is finalized
// exactly once.
func (s *Store) streamCallback(conv *Conversation, msg *Message) backend.StreamCallback {
	return func(u backend.StreamUpdate) {
		s.mu.Lock()
		// A terminal update with no content keeps whatever already
		// streamed; partial text survives cancellation and failures.
		if u.Content != "" || !u.Done {
			msg.SetContent(u.Content)
		}

		if !u.Done {
			s.mu.Unlock()
			s.emit(Event{Kind: EventMessages, ConversationID: conv.ID})
			return
		}

		msg.Finalize(u.Err)
		// content is captured before any diagnostic is substituted, so
		// only real model output ever reaches the history store.
		content := msg.Content
		if u.Err != nil && msg.IsEmpty() {
			msg.SetContent(diagnosticFor(u.Err))
		}
		conv.UpdatedAt = time.Now()
		s.streaming = false
		s.cancel = nil

		persist := u.Err == nil || backend.IsCanceled(u.Err)
		s.mu.Unlock()

		if u.Err != nil {
			s.logger.Warn("generation ended abnormally",
				"conversation", conv.ID, "error", u.Err)
		}

		s.emit(Event{Kind: EventMessages, ConversationID: conv.ID})
		s.emit(Event{Kind: EventStreamEnded, ConversationID: conv.ID, Err: u.Err})

		if persist && content != "" {
			go s.persistMessage(conv.ID, msg.ID, RoleAssistant, content)
		}
	}
}

// CancelStream stops the in-flight generation, if any. Content streamed
// so far stays in the conversation.
func (s *Store) CancelStream() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Streaming reports whether a generation is in flight.
func (s *Store) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// diagnosticFor gives an otherwise empty failed response something to
// show in place of content.
func diagnosticFor(err error) string {
	switch {
	case backend.IsStreamSilent(err):
		return "No response received from the model. It may still be loading; try again in a moment."
	case backend.IsTimeout(err):
		return "The response timed out before any output arrived."
	case backend.IsTransportLost(err):
		return "Connection to the backend was lost before any output arrived."
	case backend.IsCanceled(err):
		return "Generation canceled."
	default:
		return "The model returned an error: " + err.Error()
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persistTimeout bounds background history writes.
const persistTimeout = 30 * time.Second

// persistTurn upserts the conversation row and saves the user message.
func (s *Store) persistTurn(convID, title, model string, user *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.client.SaveConversation(ctx, convID, title, model); err != nil {
		s.logger.Warn("save conversation failed", "conversation", convID, "error", err)
		return
	}
	s.persistMessage(convID, user.ID, user.Role, user.Content)
}

// persistMessage saves one message row, logging failures instead of
// surfacing them.
func (s *Store) persistMessage(convID, msgID string, role Role, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.client.SaveMessage(ctx, msgID, convID, role.String(), content); err != nil {
		s.logger.Warn("save message failed",
			"conversation", convID, "message", msgID, "error", err)
	}
}

// =============================================================================
// HYDRATION AND SELECTION
// =============================================================================

// Hydrate replaces the conversation listing with the backend's persisted
// history. Message bodies load lazily on Select.
func (s *Store) Hydrate(ctx context.Context) error {
	records, err := s.client.LoadConversations(ctx)
	if err != nil {
		return err
	}

	conversations := make([]*Conversation, 0, len(records))
	for _, rec := range records {
		conversations = append(conversations, &Conversation{
			ID:        rec.ID,
			Title:     rec.Title,
			Model:     rec.Model,
			CreatedAt: parseTimestamp(rec.CreatedAt),
			UpdatedAt: parseTimestamp(rec.UpdatedAt),
		})
	}

	s.mu.Lock()
	s.conversations = conversations
	s.active = nil
	s.mu.Unlock()

	s.emit(Event{Kind: EventConversations})
	return nil
}

// Select makes a conversation active, fetching its messages from the
// backend on first selection.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return ErrNoConversation
	}
	loaded := conv.loaded
	s.mu.Unlock()

	if !loaded {
		records, err := s.client.LoadMessages(ctx, id)
		if err != nil {
			return err
		}
		messages := make([]*Message, 0, len(records))
		for _, rec := range records {
			messages = append(messages, &Message{
				ID:        rec.ID,
				Role:      Role(rec.Role),
				Content:   rec.Content,
				Timestamp: parseTimestamp(rec.CreatedAt),
			})
		}
		s.mu.Lock()
		if !conv.loaded {
			conv.Messages = messages
			conv.loaded = true
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.active = conv
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessages, ConversationID: id})
	return nil
}

// NewConversation starts a fresh empty conversation and makes it active.
func (s *Store) NewConversation() *Conversation {
	s.mu.Lock()
	conv := NewConversation(s.model)
	s.conversations = append([]*Conversation{conv}, s.conversations...)
	s.active = conv
	s.mu.Unlock()

	s.emit(Event{Kind: EventConversations, ConversationID: conv.ID})
	s.emit(Event{Kind: EventMessages, ConversationID: conv.ID})
	return conv.Clone()
}

// Delete removes a conversation from the backend and the local listing.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return ErrNoConversation
	}
	s.mu.Unlock()

	if err := s.client.DeleteConversation(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i, conv := range s.conversations {
		if conv.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			break
		}
	}
	if s.active != nil && s.active.ID == id {
		s.active = nil
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventConversations})
	s.emit(Event{Kind: EventMessages})
	return nil
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// SetModel sets the model used for new conversations and retargets the
// active conversation.
func (s *Store) SetModel(model string) {
	s.mu.Lock()
	s.model = model
	if s.active != nil {
		s.active.Model = model
	}
	s.mu.Unlock()
}

// Model returns the model new conversations will use.
func (s *Store) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.Model != "" {
		return s.active.Model
	}
	return s.model
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Active returns a deep copy of the active conversation, or nil.
func (s *Store) Active() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return s.active.Clone()
}

// ActiveID returns the active conversation's ID, or "".
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

// Conversations returns deep copies of the listing, newest first.
func (s *Store) Conversations() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv.Clone()
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) findLocked(id string) *Conversation {
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

func (s *Store) removeMessageLocked(conv *Conversation, msgID string) {
	for i, msg := range conv.Messages {
		if msg.ID == msgID {
			conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
			return
		}
	}
}

// timestampLayouts covers the formats the backend's store emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
