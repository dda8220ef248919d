// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/haven-tui/internal/chat"
)

// =============================================================================
// UPDATE BUFFER
// =============================================================================

// frameInterval caps streaming re-renders at ~30fps. Token bursts above that
// rate collapse into one frame.
const frameInterval = 33 * time.Millisecond

// UpdateBuffer coalesces streaming updates per conversation. Writers store
// the latest snapshot; the render loop drains at the frame tick. Since every
// update carries the full re-parsed state, dropping intermediate ones loses
// nothing.
//
// Thread-safety: updates arrive from streaming goroutines while the drain
// runs on the Bubble Tea loop.
type UpdateBuffer struct {
	mu      sync.Mutex
	pending map[string]chat.Update
}

// NewUpdateBuffer creates an empty buffer.
func NewUpdateBuffer() *UpdateBuffer {
	return &UpdateBuffer{pending: make(map[string]chat.Update)}
}

// Put stores the latest update for its conversation, superseding any
// undrained one. Terminal updates are never superseded by late chunks.
func (b *UpdateBuffer) Put(u chat.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.pending[u.ConvID]; ok && prev.Done && !u.Done {
		return
	}
	b.pending[u.ConvID] = u
}

// Drain removes and returns all pending updates.
func (b *UpdateBuffer) Drain() []chat.Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	out := make([]chat.Update, 0, len(b.pending))
	for _, u := range b.pending {
		out = append(out, u)
	}
	b.pending = make(map[string]chat.Update)
	return out
}

// Pending returns the number of conversations with undrained updates.
func (b *UpdateBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// frameTickCmd schedules the next render frame.
func frameTickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return FrameTickMsg{Time: t}
	})
}
