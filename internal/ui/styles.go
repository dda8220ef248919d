// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the interface.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Header   lipgloss.Style
	Title    lipgloss.Style
	SyncInfo lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Thinking       lipgloss.Style
	ErrorText      lipgloss.Style
	SourceText     lipgloss.Style

	InputBox  lipgloss.Style
	StatusBar lipgloss.Style
	StatusKey lipgloss.Style
	Streaming lipgloss.Style
}

// NewTheme builds a theme for the configured mode: "dark", "light", or
// "auto" (detect the terminal background).
func NewTheme(mode string) *Theme {
	isDark := true
	switch mode {
	case "light":
		isDark = false
	case "dark":
		isDark = true
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}

	accent := lipgloss.AdaptiveColor{Light: "25", Dark: "39"}
	dim := lipgloss.AdaptiveColor{Light: "245", Dark: "240"}
	errRed := lipgloss.AdaptiveColor{Light: "124", Dark: "203"}

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(dim)
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.SyncInfo = lipgloss.NewStyle().Foreground(dim)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "78"})
	t.Thinking = lipgloss.NewStyle().Foreground(dim).Italic(true)
	t.ErrorText = lipgloss.NewStyle().Foreground(errRed)
	t.SourceText = lipgloss.NewStyle().Foreground(dim).Italic(true)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(dim)
	t.StatusBar = lipgloss.NewStyle().Foreground(dim)
	t.StatusKey = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Streaming = lipgloss.NewStyle().Foreground(accent)

	return t
}
