// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/jeranaias/haven-tui/internal/model"
	"github.com/jeranaias/haven-tui/internal/parse"
	"github.com/jeranaias/haven-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full interface.
func (m *Model) View() string {
	if !m.ready {
		return "starting haven..."
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.theme.InputBox.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

// header shows the conversation title and sync state.
func (m *Model) header() string {
	title := "haven"
	var info string

	if conv := m.active(); conv != nil {
		title = util.TruncateWidth(conv.Title, 48)
		if conv.Streaming {
			info = m.theme.Streaming.Render("streaming")
		} else {
			info = m.theme.SyncInfo.Render(conv.Sync.String())
		}
	}

	if m.syncEngine != nil {
		status := m.syncEngine.Status()
		if status.Pending > 0 {
			info += m.theme.SyncInfo.Render(fmt.Sprintf("  %d pending", status.Pending))
		}
		if status.LastError != nil {
			info += "  " + m.theme.ErrorText.Render("sync error")
		}
	}

	line := m.theme.Title.Render(title)
	if info != "" {
		line += "  " + info
	}
	return m.theme.Header.Width(m.width).Render(line)
}

// statusBar shows shortcuts, or the last action failure.
func (m *Model) statusBar() string {
	if m.statusText != "" {
		return m.theme.ErrorText.Render(util.TruncateWidth(m.statusText, m.width))
	}

	var parts []string
	for _, binding := range m.keys.ShortHelp() {
		help := binding.Help()
		parts = append(parts, m.theme.StatusKey.Render(help.Key)+" "+m.theme.StatusBar.Render(help.Desc))
	}
	return strings.Join(parts, m.theme.StatusBar.Render("  "))
}

// welcome is shown before the first conversation exists.
func (m *Model) welcome() string {
	return m.theme.SyncInfo.Render("\n  No conversations yet. Type a message and press Enter to start one.\n")
}

// =============================================================================
// CONVERSATION RENDERING
// =============================================================================

// renderConversation renders the full scrollback for one conversation.
// Assistant content is re-split into reasoning and answer on every render,
// so a tag that closes mid-stream moves from the answer area into the
// thinking section on the next frame.
func (m *Model) renderConversation(conv *model.Conversation) string {
	var b strings.Builder
	for _, msg := range conv.Messages {
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(m.theme.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")

		case model.RoleAssistant:
			b.WriteString(m.renderAssistant(msg))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderAssistant renders one assistant message: thinking blocks, answer,
// failure, and sources.
func (m *Model) renderAssistant(msg *model.Message) string {
	var b strings.Builder

	label := "Assistant"
	if msg.IsStreaming {
		label += " ..."
	}
	b.WriteString(m.theme.AssistantLabel.Render(label))
	b.WriteString("\n")

	result := parse.Parse(msg.GetDisplayContent())

	if m.cfg.UI.ShowThinking {
		for _, block := range result.Blocks {
			b.WriteString(m.theme.Thinking.Render(formatThinking(block)))
			b.WriteString("\n")
		}
	}

	answer := parse.NormalizeMarkdown(result.FinalContent)
	if answer != "" {
		b.WriteString(m.markdown.Render(answer))
		b.WriteString("\n")
	}

	if msg.HasError() {
		b.WriteString(m.theme.ErrorText.Render("error: " + msg.Err))
		b.WriteString("\n")
	}

	if len(msg.Sources) > 0 {
		names := make([]string, len(msg.Sources))
		for i, src := range msg.Sources {
			names[i] = src.Filename
		}
		b.WriteString(m.theme.SourceText.Render("sources: " + strings.Join(names, ", ")))
		b.WriteString("\n")
	}

	return b.String()
}

// formatThinking lays out one reasoning block for display.
func formatThinking(block parse.ThinkingBlock) string {
	header := "[" + block.Tag
	if block.IsOpen {
		header += " ..."
	}
	header += "]"
	if block.Content == "" {
		return header
	}
	return header + "\n" + block.Content
}
