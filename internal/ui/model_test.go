// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea terminal interface for parley.
package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-chat/parley/internal/backend"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/transport"
)

// fakeService implements both chat.Backend and Client for UI tests.
type fakeService struct {
	connected bool
	models    []backend.ModelInfo
	callback  backend.StreamCallback
	streamed  string
}

func (f *fakeService) Connected() bool { return f.connected }

func (f *fakeService) ChatStream(_ []backend.ChatMessage, _ string, callback backend.StreamCallback) (backend.CancelFunc, error) {
	f.streamed = ""
	f.callback = func(u backend.StreamUpdate) {
		f.streamed = u.Content
		callback(u)
	}
	return func() {
		// Cancellation carries the accumulation so far, like the real
		// facade.
		callback(backend.StreamUpdate{Content: f.streamed, Done: true, Err: backend.ErrCanceled})
	}, nil
}

func (f *fakeService) SaveConversation(context.Context, string, string, string) error { return nil }
func (f *fakeService) SaveMessage(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeService) LoadConversations(context.Context) ([]backend.ConversationRecord, error) {
	return nil, nil
}
func (f *fakeService) LoadMessages(context.Context, string) ([]backend.MessageRecord, error) {
	return nil, nil
}
func (f *fakeService) DeleteConversation(context.Context, string) error { return nil }

func (f *fakeService) ListModels(context.Context) ([]backend.ModelInfo, error) {
	return f.models, nil
}
func (f *fakeService) UpdateSettings(context.Context, backend.Settings) error { return nil }

func newTestModel(svc *fakeService) *Model {
	store := chat.NewStore(svc, nil)
	m := NewModel(store, svc, config.Default())
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func typeText(m *Model, text string) {
	for _, r := range text {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestSubmitSendsMessage(t *testing.T) {
	svc := &fakeService{connected: true}
	m := newTestModel(svc)

	typeText(m, "hello there")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	active := m.store.Active()
	if active == nil {
		t.Fatal("no active conversation after submit")
	}
	if active.Messages[0].Content != "hello there" {
		t.Errorf("first message = %q", active.Messages[0].Content)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared after send: %q", m.input.Value())
	}
}

func TestSubmitOfflineKeepsInput(t *testing.T) {
	svc := &fakeService{connected: false}
	m := newTestModel(svc)

	typeText(m, "do not lose me")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.input.Value() != "do not lose me" {
		t.Errorf("input = %q, refused sends must keep the draft", m.input.Value())
	}
	if m.status == "" || !m.statusIsErr {
		t.Error("refused send must surface an error status")
	}
}

func TestSubmitWhileStreamingRefused(t *testing.T) {
	svc := &fakeService{connected: true}
	m := newTestModel(svc)

	typeText(m, "first")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	typeText(m, "second")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.input.Value() != "second" {
		t.Errorf("input = %q, want refused draft kept", m.input.Value())
	}

	// Finish the stream; the next send must go through.
	svc.callback(backend.StreamUpdate{Content: "done", Done: true})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.input.Value() != "" {
		t.Errorf("input = %q after stream ended", m.input.Value())
	}
}

func TestEscCancelsStream(t *testing.T) {
	svc := &fakeService{connected: true}
	m := newTestModel(svc)

	typeText(m, "question")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	svc.callback(backend.StreamUpdate{Content: "part"})

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	if m.store.Streaming() {
		t.Error("esc must cancel the in-flight stream")
	}
	last := m.store.Active().LastMessage()
	if last.Content != "part" {
		t.Errorf("partial content lost on cancel: %q", last.Content)
	}
}

func TestTabCyclesModels(t *testing.T) {
	svc := &fakeService{
		connected: true,
		models: []backend.ModelInfo{
			{Name: "llama2"},
			{Name: "mistral"},
		},
	}
	m := newTestModel(svc)
	m.Update(ModelsLoadedMsg{Models: svc.models})

	if m.store.Model() != "llama2" {
		t.Fatalf("Model = %q, want first available", m.store.Model())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.store.Model() != "mistral" {
		t.Errorf("Model = %q after tab", m.store.Model())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.store.Model() != "llama2" {
		t.Errorf("Model = %q after wraparound", m.store.Model())
	}
}

func TestSidebarToggleAndView(t *testing.T) {
	svc := &fakeService{connected: true}
	m := newTestModel(svc)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	if !m.showSidebar {
		t.Fatal("ctrl+o must open the sidebar")
	}
	if !strings.Contains(m.View(), "Conversations") {
		t.Error("sidebar view missing heading")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.showSidebar {
		t.Error("esc must close the sidebar")
	}
}

func TestViewShowsConnectionState(t *testing.T) {
	svc := &fakeService{connected: true}
	m := newTestModel(svc)

	if !strings.Contains(m.View(), "connected") {
		t.Error("view missing connected state")
	}

	m.Update(ConnStateMsg{State: transport.StateDisconnected})
	if !strings.Contains(m.View(), "offline") {
		t.Error("view missing offline state")
	}
}
