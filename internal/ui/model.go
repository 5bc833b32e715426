// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea terminal interface for parley.
package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/parley-chat/parley/internal/backend"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/transport"
)

// statusTTL is how long a transient status line stays visible.
const statusTTL = 4 * time.Second

// Client is the slice of the backend client the UI consumes directly.
// Chat traffic goes through the store, not through this interface.
type Client interface {
	ListModels(ctx context.Context) ([]backend.ModelInfo, error)
	UpdateSettings(ctx context.Context, settings backend.Settings) error
}

// Model is the root Bubble Tea model.
type Model struct {
	store  *chat.Store
	client Client
	cfg    *config.Config
	styles Styles

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	connState transport.State
	connErr   error

	models   []backend.ModelInfo
	modelIdx int

	showSidebar bool
	sidebarIdx  int

	status      string
	statusIsErr bool
	statusSeq   int

	quitting bool
}

// NewModel builds the root model. The store must already be wired to a
// connected backend.
func NewModel(store *chat.Store, client Client, cfg *config.Config) *Model {
	input := textinput.New()
	input.Placeholder = "Send a message..."
	input.CharLimit = 0
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	return &Model{
		store:     store,
		client:    client,
		cfg:       cfg,
		styles:    NewStyles(cfg.UI.Theme),
		input:     input,
		spin:      spin,
		connState: transport.StateOpen,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		m.loadModelsCmd(),
		m.hydrateCmd(),
	)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) loadModelsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		models, err := client.ListModels(context.Background())
		return ModelsLoadedMsg{Models: models, Err: err}
	}
}

func (m *Model) hydrateCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return HydratedMsg{Err: store.Hydrate(context.Background())}
	}
}

func (m *Model) selectCmd(id string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return ConversationSelectedMsg{ID: id, Err: store.Select(context.Background(), id)}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return ConversationDeletedMsg{ID: id, Err: store.Delete(context.Background(), id)}
	}
}

func (m *Model) applySettingsCmd(settings backend.Settings) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return SettingsAppliedMsg{Err: client.UpdateSettings(context.Background(), settings)}
	}
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.status = text
	m.statusIsErr = isErr
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cmds = append(cmds, m.handleResize(msg))

	case tea.KeyMsg:
		model, cmd := m.handleKey(msg)
		return model, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case StoreEventMsg:
		m.refreshViewport()
		if msg.Event.Kind == chat.EventStreamEnded {
			if msg.Event.Err != nil {
				cmds = append(cmds, m.setStatus(msg.Event.Err.Error(), true))
			}
			cmds = append(cmds, m.spin.Tick)
		}

	case ConnStateMsg:
		m.connState = msg.State
		m.connErr = msg.Err
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("connection lost: "+msg.Err.Error(), true))
		}

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.styles = NewStyles(msg.Config.UI.Theme)
		if msg.Config.Generation.Model != "" {
			m.store.SetModel(msg.Config.Generation.Model)
		}
		m.refreshViewport()
		cmds = append(cmds, m.applySettingsCmd(backend.Settings{
			Model:       msg.Config.Generation.Model,
			MaxTokens:   msg.Config.Generation.MaxTokens,
			Temperature: msg.Config.Generation.Temperature,
		}))

	case ModelsLoadedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("could not load models: "+msg.Err.Error(), true))
			break
		}
		m.models = msg.Models
		m.modelIdx = 0
		current := m.store.Model()
		for i, info := range msg.Models {
			if info.Name == current {
				m.modelIdx = i
				break
			}
		}
		if current == "" && len(msg.Models) > 0 {
			m.store.SetModel(msg.Models[0].Name)
		}

	case HydratedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("could not load history: "+msg.Err.Error(), true))
		}

	case ConversationSelectedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("could not open conversation: "+msg.Err.Error(), true))
		} else {
			m.showSidebar = false
			m.refreshViewport()
			m.viewport.GotoBottom()
		}

	case ConversationDeletedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("could not delete conversation: "+msg.Err.Error(), true))
		} else {
			if m.sidebarIdx > 0 {
				m.sidebarIdx--
			}
			m.refreshViewport()
		}

	case SettingsAppliedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("settings rejected: "+msg.Err.Error(), true))
		} else {
			cmds = append(cmds, m.setStatus("settings applied", false))
		}

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusIsErr = false
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) tea.Cmd {
	m.width = msg.Width
	m.height = msg.Height

	chromeHeight := 4 // header, input, status, spacing
	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 4

	wrap := msg.Width - 2
	if wrap > 100 {
		wrap = 100
	}
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.refreshViewport()
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.store.CancelStream()
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.showSidebar {
			m.showSidebar = false
			return m, nil
		}
		if m.store.Streaming() {
			m.store.CancelStream()
			return m, m.setStatus("generation canceled", false)
		}
		return m, nil

	case "ctrl+n":
		m.store.NewConversation()
		m.showSidebar = false
		m.refreshViewport()
		return m, nil

	case "ctrl+o":
		m.showSidebar = !m.showSidebar
		m.sidebarIdx = 0
		return m, nil

	case "tab":
		if len(m.models) > 0 && !m.showSidebar {
			m.modelIdx = (m.modelIdx + 1) % len(m.models)
			name := m.models[m.modelIdx].Name
			m.store.SetModel(name)
			return m, m.setStatus("model: "+name, false)
		}
		return m, nil

	case "up", "ctrl+k":
		if m.showSidebar {
			if m.sidebarIdx > 0 {
				m.sidebarIdx--
			}
			return m, nil
		}

	case "down", "ctrl+j":
		if m.showSidebar {
			if m.sidebarIdx < len(m.store.Conversations())-1 {
				m.sidebarIdx++
			}
			return m, nil
		}

	case "ctrl+d":
		if m.showSidebar {
			listing := m.store.Conversations()
			if m.sidebarIdx < len(listing) {
				return m, m.deleteCmd(listing[m.sidebarIdx].ID)
			}
			return m, nil
		}

	case "enter":
		if m.showSidebar {
			listing := m.store.Conversations()
			if m.sidebarIdx < len(listing) {
				return m, m.selectCmd(listing[m.sidebarIdx].ID)
			}
			return m, nil
		}
		return m, m.submit()
	}

	// Everything else flows into the focused components.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit sends the input line through the store. Refusals become status
// messages; the input survives so nothing typed is lost.
func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if err := m.store.Send(text); err != nil {
		switch err {
		case chat.ErrEmptyMessage:
			return nil
		case chat.ErrStreamBusy:
			return m.setStatus("wait for the current response to finish", true)
		case chat.ErrOffline:
			return m.setStatus("not connected; message not sent", true)
		default:
			return m.setStatus(err.Error(), true)
		}
	}
	m.input.Reset()
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m.spin.Tick
}
