// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is a document citation attached to an assistant message.
type Source struct {
	Filename string `json:"filename"`
	ChatID   string `json:"chat_id,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content. Immutable once the owning stream delivers its terminal event.
	Content string `json:"content"`

	// Citations attached by the terminal stream event.
	Sources []Source `json:"sources,omitempty"`

	// Err holds a user-visible failure description when the stream that
	// produced this message ended in an error.
	Err string `json:"error,omitempty"`

	// Retrying marks an assistant message that is being regenerated after a
	// failure. The retry replaces this message's content rather than
	// appending a new one.
	Retrying bool `json:"retrying,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          uuid.New().String(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a token to a streaming message. No-op once finalized.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// SetStreamContent replaces the accumulated streaming content wholesale.
// Used when the caller re-derives display content from the full accumulated
// text rather than appending deltas.
func (m *Message) SetStreamContent(content string) {
	if !m.IsStreaming {
		return
	}
	m.streamContent.Reset()
	m.streamContent.WriteString(content)
}

// Finalize freezes the streamed content and attaches sources.
// After Finalize the Content field is immutable.
func (m *Message) Finalize(sources []Source) {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false
	m.Retrying = false
	if len(sources) > 0 {
		m.Sources = sources
	}
}

// Fail freezes the message with an error description. Any partial content is
// kept so the user can see how far the response got.
func (m *Message) Fail(errText string) {
	if m.IsStreaming {
		m.Content = m.streamContent.String()
		m.streamContent.Reset()
		m.IsStreaming = false
	}
	m.Err = errText
	m.Retrying = false
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *Message) GetDisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.GetDisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// HasError returns true if the message carries a stream failure.
func (m *Message) HasError() bool {
	return m.Err != ""
}
