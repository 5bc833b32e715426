// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea terminal interface for parley.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/transport"
	"github.com/parley-chat/parley/internal/util"
)

// sidebarWidth is the display width of the conversation overlay.
const sidebarWidth = 44

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.showSidebar {
		b.WriteString(m.renderSidebar())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())

	return b.String()
}

// =============================================================================
// CHROME
// =============================================================================

func (m *Model) renderHeader() string {
	title := m.styles.HeaderTitle.Render("parley")

	conv := "new conversation"
	if active := m.store.Active(); active != nil {
		conv = active.GetTitle()
	}

	model := m.store.Model()
	if model == "" {
		model = "default model"
	}

	var conn string
	switch m.connState {
	case transport.StateOpen:
		conn = m.styles.ConnUp.Render("connected")
	case transport.StateConnecting:
		conn = m.styles.ConnWait.Render("connecting")
	default:
		conn = m.styles.ConnDown.Render("offline")
	}

	line := title + "  " + m.styles.Header.Render(conv+"  |  "+model+"  |  ") + conn
	return util.TruncateWidth(line, m.width)
}

func (m *Model) renderInput() string {
	return m.styles.InputPrompt.Render("> ") + m.input.View()
}

func (m *Model) renderStatus() string {
	if m.status != "" {
		if m.statusIsErr {
			return m.styles.StatusError.Render(m.status)
		}
		return m.styles.StatusBar.Render(m.status)
	}
	if m.store.Streaming() {
		return m.styles.StatusBar.Render(m.spin.View() + " generating... (esc to cancel)")
	}
	if m.showSidebar {
		return m.styles.Help.Render("enter open | ctrl+d delete | esc close")
	}
	return m.styles.Help.Render("enter send | tab model | ctrl+o conversations | ctrl+n new | ctrl+c quit")
}

// =============================================================================
// CONVERSATION RENDERING
// =============================================================================

// refreshViewport rebuilds the transcript from a store snapshot. Called
// on every stream update; glamour only runs on finalized assistant
// messages, so the per-fragment cost is plain string assembly.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	active := m.store.Active()
	if active == nil || active.IsEmpty() {
		m.viewport.SetContent(m.styles.Help.Render("\n  Type a message to start a conversation."))
		return
	}

	atBottom := m.viewport.AtBottom()

	var b strings.Builder
	for _, msg := range active.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())

	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessage(msg *chat.Message) string {
	var label string
	switch msg.Role {
	case chat.RoleUser:
		label = m.styles.UserLabel.Render(msg.Role.DisplayName())
	case chat.RoleAssistant:
		label = m.styles.AssistantLabel.Render(msg.Role.DisplayName())
	default:
		label = m.styles.SystemLabel.Render(msg.Role.DisplayName())
	}

	if m.cfg.UI.ShowTimestamps && !msg.Timestamp.IsZero() {
		label += " " + m.styles.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}

	content := msg.Content
	switch {
	case msg.Streaming:
		if content == "" {
			content = m.spin.View() + " thinking..."
		}
	case msg.Err != nil:
		content = content + "\n" + m.styles.MessageErr.Render("error: "+msg.Err.Error())
	case msg.Role == chat.RoleAssistant:
		content = m.renderMarkdown(content)
	}

	return label + "\n" + content + "\n"
}

// renderMarkdown renders finalized assistant output, falling back to the
// raw text when the renderer is unavailable or fails.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m *Model) renderSidebar() string {
	listing := m.store.Conversations()

	var b strings.Builder
	b.WriteString(m.styles.HeaderTitle.Render("Conversations"))
	b.WriteString("\n\n")

	if len(listing) == 0 {
		b.WriteString(m.styles.Help.Render("No conversations yet."))
	}

	activeID := m.store.ActiveID()
	for i, conv := range listing {
		title := util.TruncateWidth(conv.GetTitle(), sidebarWidth-6)
		marker := "  "
		if conv.ID == activeID {
			marker = "* "
		}
		line := marker + title
		if i == m.sidebarIdx {
			line = m.styles.SidebarSelected.Render("> " + title)
		} else {
			line = m.styles.SidebarItem.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	box := m.styles.Sidebar.Width(sidebarWidth).Render(b.String())
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}
