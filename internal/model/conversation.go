// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the placeholder title the backend assigns until it
// generates one from the first exchange.
const DefaultTitle = "New Chat"

// =============================================================================
// SEARCH MODE
// =============================================================================

// SearchMode selects how the backend augments a chat request with retrieval.
type SearchMode string

const (
	SearchModeNormal     SearchMode = "normal"     // no document retrieval
	SearchModeEmbeddings SearchMode = "embeddings" // vector search over uploaded documents
	SearchModeAll        SearchMode = "all"        // retrieval across all sources
)

// Valid reports whether the mode is one the backend accepts.
func (s SearchMode) Valid() bool {
	switch s {
	case SearchModeNormal, SearchModeEmbeddings, SearchModeAll:
		return true
	}
	return false
}

// =============================================================================
// SYNC STATE
// =============================================================================

// SyncState tracks a conversation's lifecycle relative to backend persistence.
//
// LocalOnly -> Synced is one-way: it happens exactly once, when the create
// call succeeds and the server identifier is recorded. SyncedStale marks a
// Synced conversation whose metadata (title, search mode) changed locally and
// has not been pushed yet.
type SyncState int

const (
	SyncLocalOnly SyncState = iota
	SyncSynced
	SyncedStale
)

// String returns the state name for logs and tests.
func (s SyncState) String() string {
	switch s {
	case SyncLocalOnly:
		return "local-only"
	case SyncSynced:
		return "synced"
	case SyncedStale:
		return "stale"
	default:
		return "unknown"
	}
}

// IsSynced reports whether the conversation has a server identifier.
func (s SyncState) IsSynced() bool {
	return s == SyncSynced || s == SyncedStale
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat thread with history and sync metadata.
type Conversation struct {
	// LocalID is generated at creation and never changes.
	LocalID string `json:"local_id"`
	// ServerID is assigned at most once, when the backend create succeeds.
	ServerID string `json:"server_id,omitempty"`

	Title      string     `json:"title"`
	SearchMode SearchMode `json:"search_mode"`

	Messages []*Message `json:"messages"`

	// Streaming is true while an assistant message is receiving tokens.
	Streaming bool `json:"-"`

	Sync SyncState `json:"sync_state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates a local-only conversation with a generated ID.
func NewConversation(mode SearchMode) *Conversation {
	if !mode.Valid() {
		mode = SearchModeNormal
	}
	now := time.Now()
	return &Conversation{
		LocalID:    uuid.New().String(),
		Title:      DefaultTitle,
		SearchMode: mode,
		Messages:   make([]*Message, 0),
		Sync:       SyncLocalOnly,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// InProgress returns the assistant message still receiving content, or nil.
// At most one message per conversation is in progress at any time.
func (c *Conversation) InProgress() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsStreaming {
			return c.Messages[i]
		}
	}
	return nil
}

// AddUserMessage appends a user message. It returns nil if an assistant
// message is still in progress; callers must wait or cancel first (the retry
// path replaces instead of appending and does not go through here).
func (c *Conversation) AddUserMessage(content string) *Message {
	if c.InProgress() != nil {
		return nil
	}
	msg := NewUserMessage(content)
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	return msg
}

// BeginAssistantMessage appends a streaming assistant message and marks the
// conversation as streaming. Returns nil if one is already in progress.
func (c *Conversation) BeginAssistantMessage() *Message {
	if c.InProgress() != nil {
		return nil
	}
	msg := NewAssistantMessage()
	c.Messages = append(c.Messages, msg)
	c.Streaming = true
	c.UpdatedAt = time.Now()
	return msg
}

// FinalizeAssistant freezes the in-progress assistant message with sources
// and clears the streaming flag.
func (c *Conversation) FinalizeAssistant(sources []Source) {
	if msg := c.InProgress(); msg != nil {
		msg.Finalize(sources)
	}
	c.Streaming = false
	c.UpdatedAt = time.Now()
}

// FailAssistant freezes the in-progress assistant message with an error.
func (c *Conversation) FailAssistant(errText string) {
	if msg := c.InProgress(); msg != nil {
		msg.Fail(errText)
	}
	c.Streaming = false
	c.UpdatedAt = time.Now()
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastUserMessage returns the most recent user message, or nil.
func (c *Conversation) LastUserMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i]
		}
	}
	return nil
}

// LastAssistantMessage returns the most recent assistant message, or nil.
func (c *Conversation) LastAssistantMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i]
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// SYNC TRANSITIONS
// =============================================================================

// MarkSynced records the server identifier and transitions LocalOnly ->
// Synced. The transition is monotonic: once a server ID is set it is never
// replaced, and a synced conversation never reverts to local-only.
func (c *Conversation) MarkSynced(serverID string) bool {
	if c.Sync != SyncLocalOnly || serverID == "" {
		return false
	}
	c.ServerID = serverID
	c.Sync = SyncSynced
	c.UpdatedAt = time.Now()
	return true
}

// MarkStale flags a synced conversation as having unpushed metadata edits.
// Local-only conversations are not affected; their whole record is pending.
func (c *Conversation) MarkStale() {
	if c.Sync == SyncSynced {
		c.Sync = SyncedStale
	}
}

// ClearStale marks the pending metadata edit as pushed.
func (c *Conversation) ClearStale() {
	if c.Sync == SyncedStale {
		c.Sync = SyncSynced
	}
}

// =============================================================================
// TITLE AND METADATA
// =============================================================================

// SetTitle updates the title and flags the edit for push.
func (c *Conversation) SetTitle(title string) {
	if title == "" || title == c.Title {
		return
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	c.MarkStale()
}

// SetSearchMode updates the search mode and flags the edit for push.
func (c *Conversation) SetSearchMode(mode SearchMode) {
	if !mode.Valid() || mode == c.SearchMode {
		return
	}
	c.SearchMode = mode
	c.UpdatedAt = time.Now()
	c.MarkStale()
}

// HasGeneratedTitle reports whether the backend has replaced the placeholder.
func (c *Conversation) HasGeneratedTitle() bool {
	return c.Title != "" && c.Title != DefaultTitle
}

// Preview returns a short preview of the conversation for list display.
func (c *Conversation) Preview() string {
	if len(c.Messages) == 0 {
		return "Empty conversation"
	}
	first := c.LastUserMessage()
	if first == nil {
		first = c.Messages[0]
	}
	return first.Preview(100)
}

// =============================================================================
// COPY-ON-WRITE SUPPORT
// =============================================================================

// Clone creates a deep copy of the conversation. The shared cache hands out
// clones so that concurrent readers see either the old or the new record,
// never a partial update.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		LocalID:    c.LocalID,
		ServerID:   c.ServerID,
		Title:      c.Title,
		SearchMode: c.SearchMode,
		Streaming:  c.Streaming,
		Sync:       c.Sync,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		Messages:   make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		msgCopy := &Message{
			ID:        msg.ID,
			Role:      msg.Role,
			Timestamp: msg.Timestamp,
			Content:   msg.GetDisplayContent(),
			Err:       msg.Err,
			Retrying:  msg.Retrying,
		}
		// A clone of a streaming message stays streaming so the in-progress
		// invariant survives the copy.
		if msg.IsStreaming {
			msgCopy.IsStreaming = true
			msgCopy.streamContent.WriteString(msg.GetDisplayContent())
			msgCopy.Content = ""
		}
		if len(msg.Sources) > 0 {
			msgCopy.Sources = append([]Source(nil), msg.Sources...)
		}
		clone.Messages[i] = msgCopy
	}
	return clone
}
