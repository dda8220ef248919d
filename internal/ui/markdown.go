// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown wraps a glamour renderer. Rendering failures fall back to the
// plain text so a malformed fragment mid-stream never blanks the view.
type Markdown struct {
	renderer *glamour.TermRenderer
	enabled  bool
}

// NewMarkdown builds a renderer for the theme. width bounds word wrap.
func NewMarkdown(theme *Theme, width int, enabled bool) *Markdown {
	if !enabled {
		return &Markdown{}
	}
	if width <= 0 {
		width = 80
	}

	style := glamour.WithStandardStyle("dark")
	if !theme.IsDark {
		style = glamour.WithStandardStyle("light")
	}
	renderer, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Markdown{}
	}
	return &Markdown{renderer: renderer, enabled: true}
}

// Render returns the styled markdown, or the input unchanged when rendering
// is disabled or fails.
func (m *Markdown) Render(text string) string {
	if m.renderer == nil || !m.enabled || text == "" {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
