// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/haven-tui/internal/backend"
	"github.com/jeranaias/haven-tui/internal/logging"
)

// Streamer issues one streaming chat request. *backend.Client satisfies it.
type Streamer interface {
	Stream(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error
}

// Callbacks receive the session's events. All callbacks are invoked
// sequentially, in arrival order, and never after Cancel returns. Callbacks
// must not call back into the owning Session.
type Callbacks struct {
	OnChunk    func(token string)
	OnComplete func(sources []backend.Source)
	OnError    func(err error)
}

// =============================================================================
// SESSION
// =============================================================================

// Session manages exactly one network stream for one request.
type Session struct {
	streamer  Streamer
	req       backend.StreamRequest
	callbacks Callbacks

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
	terminal  bool

	// onFinish is invoked once when the session's goroutine exits, whether
	// the stream ended naturally or was cancelled. Set by the Manager for
	// self-deregistration.
	onFinish func()

	finished chan struct{}
	log      *logging.Logger
}

// NewSession creates a session for one streaming request. Start must be
// called to begin streaming.
func NewSession(streamer Streamer, req backend.StreamRequest, callbacks Callbacks) *Session {
	return &Session{
		streamer:  streamer,
		req:       req,
		callbacks: callbacks,
		finished:  make(chan struct{}),
		log:       logging.New("session"),
	}
}

// Start begins streaming in a new goroutine and returns immediately.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancelled {
		// Cancelled before Start: release the context and never stream.
		s.mu.Unlock()
		cancel()
		close(s.finished)
		if s.onFinish != nil {
			s.onFinish()
		}
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx, cancel)
}

// Cancel marks the session aborted and releases the underlying transport.
// Idempotent; once Cancel returns, no callback will fire again.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Done returns a channel closed when the session's goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.finished
}

// run drives the stream to completion and fires the terminal callback.
func (s *Session) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	defer func() {
		close(s.finished)
		if s.onFinish != nil {
			s.onFinish()
		}
	}()

	err := s.streamer.Stream(ctx, s.req, s.handleChunk)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.terminal {
		return
	}
	s.terminal = true

	if err != nil {
		// A context cancellation that raced ahead of the cancelled flag is
		// not a real failure.
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Warnf("stream failed: %v", err)
		if s.callbacks.OnError != nil {
			s.callbacks.OnError(err)
		}
		return
	}

	// Stream ended without a terminal event (connection drop after EOF).
	if s.callbacks.OnComplete != nil {
		s.callbacks.OnComplete(nil)
	}
}

// handleChunk dispatches one decoded chunk. Callbacks run under the session
// mutex: Cancel blocks on the same mutex, so once Cancel returns no callback
// can be in flight or start again.
func (s *Session) handleChunk(chunk backend.StreamChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.terminal {
		return
	}

	if chunk.Done {
		s.terminal = true
		if s.callbacks.OnComplete != nil {
			s.callbacks.OnComplete(chunk.Sources)
		}
		return
	}

	if s.callbacks.OnChunk != nil {
		s.callbacks.OnChunk(chunk.Token)
	}
}
