// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/haven-tui/internal/chat"
	"github.com/jeranaias/haven-tui/internal/chatsync"
	"github.com/jeranaias/haven-tui/internal/config"
	"github.com/jeranaias/haven-tui/internal/logging"
	"github.com/jeranaias/haven-tui/internal/model"
	"github.com/jeranaias/haven-tui/internal/store"
)

// =============================================================================
// UI MODEL
// =============================================================================

// Model is the root Bubble Tea model for haven.
type Model struct {
	controller *chat.Controller
	cache      *store.Cache
	syncEngine *chatsync.Engine // may be nil
	cfg        *config.Config

	theme    *Theme
	keys     KeyMap
	markdown *Markdown
	buffer   *UpdateBuffer

	viewport viewport.Model
	input    textarea.Model

	// convID is the conversation shown in the viewport. snapshots holds the
	// latest detached record per conversation so rendering never reads the
	// shared cache mid-stream.
	convID    string
	snapshots map[string]*model.Conversation

	width  int
	height int
	ready  bool

	statusText string

	log *logging.Logger
}

// New builds the root model. The caller wires controller notifications into
// the program with Deliver.
func New(controller *chat.Controller, cache *store.Cache, syncEngine *chatsync.Engine, cfg *config.Config) *Model {
	theme := NewTheme(cfg.UI.Theme)

	input := textarea.New()
	input.Placeholder = "Ask anything..."
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.CharLimit = 0
	input.Focus()

	m := &Model{
		controller: controller,
		cache:      cache,
		syncEngine: syncEngine,
		cfg:        cfg,
		theme:      theme,
		keys:       DefaultKeyMap(),
		markdown:   NewMarkdown(theme, 80, cfg.UI.Markdown),
		buffer:     NewUpdateBuffer(),
		input:      input,
		snapshots:  make(map[string]*model.Conversation),
		log:        logging.New("ui"),
	}

	// Resume the most recent conversation, if any.
	if list := cache.List(); len(list) > 0 {
		m.setActive(list[0])
	}
	return m
}

// Deliver converts a controller update into a Bubble Tea message. Pass
// func(u chat.Update) { p.Send(ui.Deliver(u)) } as the controller's Notify.
func Deliver(u chat.Update) tea.Msg {
	return StreamUpdateMsg{Update: u}
}

// Init starts the blink and render loops.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, frameTickCmd(), syncTickCmd())
}

// setActive switches the viewport to a conversation.
func (m *Model) setActive(conv *model.Conversation) {
	m.convID = conv.LocalID
	m.snapshots[conv.LocalID] = conv
	if m.ready {
		m.viewport.SetContent(m.renderConversation(conv))
		m.viewport.GotoBottom()
	}
}

// active returns the snapshot of the current conversation, or nil.
func (m *Model) active() *model.Conversation {
	if m.convID == "" {
		return nil
	}
	return m.snapshots[m.convID]
}
