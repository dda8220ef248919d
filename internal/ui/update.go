// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/haven-tui/internal/model"
)

// actionFailedMsg reports a refused controller action for the status line.
type actionFailedMsg struct {
	err error
}

// syncTickCmd schedules the next header refresh.
func syncTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return SyncTickMsg{Time: t}
	})
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one Bubble Tea message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamUpdateMsg:
		m.buffer.Put(msg.Update)
		// Terminal events render immediately; token chunks wait for the
		// next frame.
		if msg.Update.Done {
			m.applyPending()
		}
		return m, nil

	case FrameTickMsg:
		m.applyPending()
		return m, frameTickCmd()

	case SyncTickMsg:
		// View reads the sync status directly; the tick just forces a
		// periodic re-render of the header.
		return m, syncTickCmd()

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.theme = NewTheme(m.cfg.UI.Theme)
		m.markdown = NewMarkdown(m.theme, m.contentWidth(), m.cfg.UI.Markdown)
		m.rerender()
		m.statusText = "config reloaded"
		return m, nil

	case actionFailedMsg:
		m.statusText = msg.err.Error()
		return m, nil
	}

	return m.forward(msg)
}

// handleResize lays out the viewport and input for the new terminal size.
func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 2
	inputHeight := 5
	statusHeight := 1
	vpHeight := msg.Height - headerHeight - inputHeight - statusHeight
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
	m.input.SetWidth(msg.Width - 4)
	m.markdown = NewMarkdown(m.theme, m.contentWidth(), m.cfg.UI.Markdown)
	m.rerender()
	return m, nil
}

// handleKey dispatches a key press.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		// First C-c stops an active stream; a second one quits.
		if conv := m.active(); conv != nil && conv.Streaming {
			convID := m.convID
			return m, func() tea.Msg {
				m.controller.Stop(convID)
				return nil
			}
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Retry):
		convID := m.convID
		if convID == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			if err := m.controller.Retry(context.Background(), convID); err != nil {
				return actionFailedMsg{err}
			}
			return nil
		}

	case key.Matches(msg, m.keys.NewChat):
		conv := m.controller.NewConversation(context.Background(), model.SearchMode(m.cfg.Chat.DefaultSearchMode))
		m.setActive(conv)
		m.statusText = "new conversation"
		return m, nil

	case key.Matches(msg, m.keys.NextChat):
		m.cycleConversation()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	return m.forward(msg)
}

// submit sends the input box content as the next user message. Lines
// starting with "/" are commands, not messages.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}

	if m.convID == "" {
		conv := m.controller.NewConversation(context.Background(), model.SearchMode(m.cfg.Chat.DefaultSearchMode))
		m.setActive(conv)
	}

	convID := m.convID
	m.input.Reset()
	m.statusText = ""
	return m, func() tea.Msg {
		if err := m.controller.Send(context.Background(), convID, text); err != nil {
			return actionFailedMsg{err}
		}
		return nil
	}
}

// runCommand executes a slash command against the active conversation.
func (m *Model) runCommand(text string) (tea.Model, tea.Cmd) {
	name, arg := splitCommand(text)
	switch name {
	case "title":
		if arg == "" {
			m.statusText = "usage: /title <new title>"
			return m, nil
		}
		if m.convID == "" {
			m.statusText = "no active conversation"
			return m, nil
		}
		convID := m.convID
		return m, func() tea.Msg {
			if err := m.controller.Rename(context.Background(), convID, arg); err != nil {
				return actionFailedMsg{err}
			}
			return nil
		}

	case "mode":
		mode := model.SearchMode(arg)
		if !mode.Valid() {
			m.statusText = "usage: /mode normal|embeddings|all"
			return m, nil
		}
		if m.convID == "" {
			m.statusText = "no active conversation"
			return m, nil
		}
		convID := m.convID
		return m, func() tea.Msg {
			if err := m.controller.SetSearchMode(context.Background(), convID, mode); err != nil {
				return actionFailedMsg{err}
			}
			return nil
		}

	default:
		m.statusText = "unknown command: /" + name
		return m, nil
	}
}

// splitCommand separates "/name arg..." into the command name and its
// argument text.
func splitCommand(text string) (name, arg string) {
	text = strings.TrimPrefix(text, "/")
	if i := strings.IndexByte(text, ' '); i >= 0 {
		return text[:i], strings.TrimSpace(text[i+1:])
	}
	return text, ""
}

// cycleConversation switches to the next conversation in recency order.
func (m *Model) cycleConversation() {
	list := m.cache.List()
	if len(list) < 2 {
		return
	}
	for i, conv := range list {
		if conv.LocalID == m.convID {
			m.setActive(list[(i+1)%len(list)])
			return
		}
	}
	m.setActive(list[0])
}

// applyPending drains coalesced updates and re-renders if the active
// conversation changed.
func (m *Model) applyPending() {
	updates := m.buffer.Drain()
	if len(updates) == 0 {
		return
	}
	var activeChanged bool
	for _, u := range updates {
		if u.Conv != nil {
			m.snapshots[u.ConvID] = u.Conv
		}
		if u.ConvID == m.convID {
			activeChanged = true
		}
		if u.Err != nil && u.ConvID == m.convID {
			m.statusText = u.Err.Error()
		}
	}
	if activeChanged {
		m.rerender()
	}
}

// rerender rebuilds the viewport content from the active snapshot.
func (m *Model) rerender() {
	if !m.ready {
		return
	}
	conv := m.active()
	if conv == nil {
		m.viewport.SetContent(m.welcome())
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation(conv))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// forward passes a message to the focused child components.
func (m *Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// contentWidth is the wrap width for rendered markdown.
func (m *Model) contentWidth() int {
	if m.width <= 4 {
		return 80
	}
	if m.width > 120 {
		return 116
	}
	return m.width - 4
}
