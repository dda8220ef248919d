// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"sync"

	"github.com/jeranaias/haven-tui/internal/backend"
	"github.com/jeranaias/haven-tui/internal/logging"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager enforces one active stream per conversation. Each conversation ID
// owns at most one cancel handle; unrelated conversations stream
// independently and concurrently.
type Manager struct {
	streamer Streamer

	mu       sync.Mutex
	sessions map[string]*Session

	log *logging.Logger
}

// NewManager creates a manager that issues streams through the given
// transport.
func NewManager(streamer Streamer) *Manager {
	return &Manager{
		streamer: streamer,
		sessions: make(map[string]*Session),
		log:      logging.New("manager"),
	}
}

// Start begins a stream for the conversation. If a session is already active
// for the same conversation, it is cancelled before the new one begins
// (last-writer-wins; this is the retry and resend path).
func (m *Manager) Start(ctx context.Context, convID string, req backend.StreamRequest, callbacks Callbacks) *Session {
	sess := NewSession(m.streamer, req, callbacks)
	sess.onFinish = func() { m.deregister(convID, sess) }

	m.mu.Lock()
	prev := m.sessions[convID]
	m.sessions[convID] = sess
	m.mu.Unlock()

	if prev != nil {
		m.log.Debugf("replacing active stream for conversation %s", convID)
		prev.Cancel()
	}

	sess.Start(ctx)
	return sess
}

// Stop cancels and deregisters the session for a conversation. Safe to call
// when none is active.
func (m *Manager) Stop(convID string) {
	m.mu.Lock()
	sess := m.sessions[convID]
	delete(m.sessions, convID)
	m.mu.Unlock()

	if sess != nil {
		sess.Cancel()
	}
}

// StopAll cancels every registered session. Used on application teardown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		all = append(all, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range all {
		sess.Cancel()
	}
}

// Active reports whether a session is registered for the conversation.
func (m *Manager) Active(convID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[convID]
	return ok
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// deregister removes a session after it finishes naturally, but only if it
// still owns its conversation's slot (a replacement may have taken it).
func (m *Manager) deregister(convID string, sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[convID] == sess {
		delete(m.sessions, convID)
	}
}
