// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "time"

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamRequest is the body of POST /api/chat/stream.
type StreamRequest struct {
	ChatID       string  `json:"chatId,omitempty"`
	UserID       string  `json:"userId"`
	Message      string  `json:"message"`
	SearchMode   string  `json:"searchMode"`
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"maxTokens,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	UseMemory    bool    `json:"useMemory"`
}

// StreamChunk is one decoded stream event. Token chunks carry text; the
// terminal chunk has Done set and may carry Sources. Backend-side failures
// arrive as a terminal chunk with Error set.
type StreamChunk struct {
	Token   string   `json:"token"`
	Done    bool     `json:"done"`
	Sources []Source `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Source is a document citation attached to the terminal stream event.
type Source struct {
	Filename string `json:"filename"`
	ChatID   string `json:"chatId,omitempty"`
}

// StreamCallback is called for each chunk received during streaming.
type StreamCallback func(chunk StreamChunk)

// =============================================================================
// CHAT CRUD TYPES
// =============================================================================

// ChatSummary is one entry in the authoritative chat listing.
type ChatSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SearchMode   string    `json:"search_mode"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage is a persisted message inside a chat detail response.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatDetail is the full metadata for one chat, including messages. Used to
// poll for the asynchronously generated title.
type ChatDetail struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	SearchMode string        `json:"search_mode"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Messages   []ChatMessage `json:"messages"`
}

// ChatUpdate carries the changed metadata fields for an update call. Nil
// fields are omitted from the request.
type ChatUpdate struct {
	Title      *string
	SearchMode *string
}

// IsEmpty reports whether the update carries no fields.
func (u ChatUpdate) IsEmpty() bool {
	return u.Title == nil && u.SearchMode == nil
}

// createChatRequest is the body of POST /api/chats/create.
type createChatRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

// backendError is the FastAPI error body shape.
type backendError struct {
	Detail string `json:"detail"`
}
