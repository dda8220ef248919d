// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/haven-tui/internal/backend"
)

// streamFunc adapts a function to the Streamer interface.
type streamFunc func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error

func (f streamFunc) Stream(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
	return f(ctx, req, cb)
}

// recorder collects callback invocations for assertions.
type recorder struct {
	mu        sync.Mutex
	tokens    []string
	completes int
	sources   []backend.Source
	errs      []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnChunk: func(token string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.tokens = append(r.tokens, token)
		},
		OnComplete: func(sources []backend.Source) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes++
			r.sources = sources
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) snapshot() (tokens []string, completes int, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...), r.completes, len(r.errs)
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish in time")
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSession_ChunksThenComplete(t *testing.T) {
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		cb(backend.StreamChunk{Token: "Hel"})
		cb(backend.StreamChunk{Token: "lo"})
		cb(backend.StreamChunk{Done: true, Sources: []backend.Source{{Filename: "doc.pdf"}}})
		return nil
	})

	rec := &recorder{}
	sess := NewSession(fake, backend.StreamRequest{}, rec.callbacks())
	sess.Start(context.Background())
	waitDone(t, sess)

	tokens, completes, errs := rec.snapshot()
	if len(tokens) != 2 || tokens[0] != "Hel" || tokens[1] != "lo" {
		t.Errorf("tokens = %v", tokens)
	}
	if completes != 1 {
		t.Errorf("completes = %d, want exactly 1", completes)
	}
	if errs != 0 {
		t.Errorf("errs = %d, want 0", errs)
	}
	if len(rec.sources) != 1 || rec.sources[0].Filename != "doc.pdf" {
		t.Errorf("sources = %v", rec.sources)
	}
}

func TestSession_ErrorTerminal(t *testing.T) {
	streamErr := errors.New("connection reset")
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		cb(backend.StreamChunk{Token: "partial"})
		return streamErr
	})

	rec := &recorder{}
	sess := NewSession(fake, backend.StreamRequest{}, rec.callbacks())
	sess.Start(context.Background())
	waitDone(t, sess)

	tokens, completes, errs := rec.snapshot()
	if len(tokens) != 1 || tokens[0] != "partial" {
		t.Errorf("tokens = %v", tokens)
	}
	if completes != 0 {
		t.Error("OnComplete must not fire after an error")
	}
	if errs != 1 {
		t.Errorf("errs = %d, want exactly 1", errs)
	}
}

func TestSession_EOFWithoutDoneCompletes(t *testing.T) {
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		cb(backend.StreamChunk{Token: "half"})
		return nil
	})

	rec := &recorder{}
	sess := NewSession(fake, backend.StreamRequest{}, rec.callbacks())
	sess.Start(context.Background())
	waitDone(t, sess)

	_, completes, errs := rec.snapshot()
	if completes != 1 || errs != 0 {
		t.Errorf("completes = %d, errs = %d; want one completion", completes, errs)
	}
}

func TestSession_CancelSuppressesCallbacks(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		cb(backend.StreamChunk{Token: "early"})
		close(started)
		<-release
		// Events injected after cancel: all must be discarded.
		cb(backend.StreamChunk{Token: "late"})
		cb(backend.StreamChunk{Done: true})
		return nil
	})

	rec := &recorder{}
	sess := NewSession(fake, backend.StreamRequest{}, rec.callbacks())
	sess.Start(context.Background())

	<-started
	sess.Cancel()
	close(release)
	waitDone(t, sess)

	tokens, completes, errs := rec.snapshot()
	if len(tokens) != 1 || tokens[0] != "early" {
		t.Errorf("tokens = %v, want only the pre-cancel token", tokens)
	}
	if completes != 0 || errs != 0 {
		t.Errorf("terminal callbacks fired after cancel: completes=%d errs=%d", completes, errs)
	}
}

func TestSession_CancelReleasesTransport(t *testing.T) {
	ctxSeen := make(chan context.Context, 1)
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		ctxSeen <- ctx
		<-ctx.Done()
		return ctx.Err()
	})

	rec := &recorder{}
	sess := NewSession(fake, backend.StreamRequest{}, rec.callbacks())
	sess.Start(context.Background())

	ctx := <-ctxSeen
	sess.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Cancel did not cancel the stream context")
	}
	waitDone(t, sess)

	_, completes, errs := rec.snapshot()
	if completes != 0 || errs != 0 {
		t.Errorf("cancelled session fired terminal callbacks: completes=%d errs=%d", completes, errs)
	}
}

func TestSession_CancelIdempotent(t *testing.T) {
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		<-ctx.Done()
		return ctx.Err()
	})

	sess := NewSession(fake, backend.StreamRequest{}, Callbacks{})
	sess.Start(context.Background())

	sess.Cancel()
	sess.Cancel()
	sess.Cancel()
	waitDone(t, sess)
}

// =============================================================================
// MANAGER TESTS
// =============================================================================

func TestManager_LastWriterWins(t *testing.T) {
	firstStarted := make(chan struct{})
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		if req.Message == "first" {
			cb(backend.StreamChunk{Token: "from-first"})
			close(firstStarted)
			<-ctx.Done()
			// Injected after replacement: must not reach callbacks.
			cb(backend.StreamChunk{Token: "late-first"})
			cb(backend.StreamChunk{Done: true})
			return ctx.Err()
		}
		cb(backend.StreamChunk{Token: "from-second"})
		cb(backend.StreamChunk{Done: true})
		return nil
	})

	mgr := NewManager(fake)
	firstRec := &recorder{}
	first := mgr.Start(context.Background(), "c1", backend.StreamRequest{Message: "first"}, firstRec.callbacks())
	<-firstStarted

	secondRec := &recorder{}
	second := mgr.Start(context.Background(), "c1", backend.StreamRequest{Message: "second"}, secondRec.callbacks())

	waitDone(t, first)
	waitDone(t, second)

	tokens, completes, errs := firstRec.snapshot()
	if len(tokens) != 1 || tokens[0] != "from-first" {
		t.Errorf("first session tokens = %v", tokens)
	}
	if completes != 0 || errs != 0 {
		t.Errorf("replaced session fired terminal callbacks: completes=%d errs=%d", completes, errs)
	}

	tokens, completes, _ = secondRec.snapshot()
	if len(tokens) != 1 || tokens[0] != "from-second" || completes != 1 {
		t.Errorf("second session tokens=%v completes=%d", tokens, completes)
	}
}

func TestManager_IndependentConversations(t *testing.T) {
	release := make(chan struct{})
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		cb(backend.StreamChunk{Done: true})
		return nil
	})

	mgr := NewManager(fake)
	s1 := mgr.Start(context.Background(), "c1", backend.StreamRequest{}, Callbacks{})
	s2 := mgr.Start(context.Background(), "c2", backend.StreamRequest{}, Callbacks{})

	if mgr.Count() != 2 {
		t.Errorf("Count = %d, want 2 concurrent sessions", mgr.Count())
	}
	if !mgr.Active("c1") || !mgr.Active("c2") {
		t.Error("both conversations should be active")
	}

	close(release)
	waitDone(t, s1)
	waitDone(t, s2)
}

func TestManager_SelfDeregisters(t *testing.T) {
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		cb(backend.StreamChunk{Done: true})
		return nil
	})

	mgr := NewManager(fake)
	sess := mgr.Start(context.Background(), "c1", backend.StreamRequest{}, Callbacks{})
	waitDone(t, sess)

	// The finished session removes itself; a later Stop is a no-op.
	deadline := time.After(time.Second)
	for mgr.Active("c1") {
		select {
		case <-deadline:
			t.Fatal("session did not deregister after natural completion")
		case <-time.After(5 * time.Millisecond):
		}
	}
	mgr.Stop("c1")
}

func TestManager_StopWhenAbsent(t *testing.T) {
	mgr := NewManager(streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		return nil
	}))
	mgr.Stop("never-started")
}

func TestManager_StopAll(t *testing.T) {
	fake := streamFunc(func(ctx context.Context, req backend.StreamRequest, cb backend.StreamCallback) error {
		<-ctx.Done()
		return ctx.Err()
	})

	mgr := NewManager(fake)
	s1 := mgr.Start(context.Background(), "c1", backend.StreamRequest{}, Callbacks{})
	s2 := mgr.Start(context.Background(), "c2", backend.StreamRequest{}, Callbacks{})
	s3 := mgr.Start(context.Background(), "c3", backend.StreamRequest{}, Callbacks{})

	mgr.StopAll()

	waitDone(t, s1)
	waitDone(t, s2)
	waitDone(t, s3)

	if mgr.Count() != 0 {
		t.Errorf("Count = %d after StopAll, want 0", mgr.Count())
	}
}
