// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/haven-tui/internal/backend"
	"github.com/jeranaias/haven-tui/internal/logging"
	"github.com/jeranaias/haven-tui/internal/model"
	"github.com/jeranaias/haven-tui/internal/store"
)

// =============================================================================
// ERRORS AND MODES
// =============================================================================

var (
	ErrNotCached = errors.New("conversation not in cache")
	ErrNoUser    = errors.New("no active user")
)

// Mode selects the trigger policy for background sync.
type Mode string

const (
	ModeAuto   Mode = "auto"   // interval ticker plus explicit triggers
	ModeManual Mode = "manual" // explicit Pull/Push only
)

// API is the backend surface the engine needs. *backend.Client satisfies it.
type API interface {
	ListChats(ctx context.Context, userID string) ([]backend.ChatSummary, error)
	CreateChat(ctx context.Context, userID, title string) (*backend.ChatSummary, error)
	UpdateChat(ctx context.Context, chatID string, update backend.ChatUpdate) error
}

// Status describes the engine's view of the world, scoped to the active
// user session. Reset on logout, rebuilt on login.
type Status struct {
	LastSync  time.Time
	Pending   int // conversations with no server identifier
	LastError error
}

// Config holds engine options.
type Config struct {
	// Mode selects automatic or manual sync (default: auto).
	Mode Mode

	// Interval between automatic pulls (default: 60s).
	Interval time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:     ModeAuto,
		Interval: 60 * time.Second,
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine keeps the local cache consistent with the backend without ever
// discarding local-only data the backend does not know about yet.
type Engine struct {
	api   API
	cache *store.Cache
	db    *store.Store // optional write-through persistence; may be nil

	config *Config
	group  singleflight.Group

	// opMu serializes the pull and push bodies. Coalescing duplicate calls
	// is the singleflight group's job; this mutex ensures a pull never
	// observes a half-applied push (a create the backend has committed but
	// whose server id is not recorded locally yet), which would duplicate
	// the conversation on merge.
	opMu sync.Mutex

	mu     sync.Mutex
	userID string
	status Status

	log *logging.Logger
}

// NewEngine creates a sync engine over the given cache. db may be nil to
// disable write-through persistence.
func NewEngine(api API, cache *store.Cache, db *store.Store, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Mode == "" {
		config.Mode = ModeAuto
	}
	if config.Interval == 0 {
		config.Interval = 60 * time.Second
	}
	return &Engine{
		api:    api,
		cache:  cache,
		db:     db,
		config: config,
		log:    logging.New("sync"),
	}
}

// SetUser establishes the active user. Resets status; the caller should
// follow with a Pull.
func (e *Engine) SetUser(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = userID
	e.status = Status{}
}

// Reset clears the user and status. Used on logout.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = ""
	e.status = Status{}
}

// Status returns a snapshot of the sync state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.status
	s.Pending = e.cache.PendingCount()
	return s
}

func (e *Engine) currentUser() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return "", ErrNoUser
	}
	return e.userID, nil
}

func (e *Engine) recordResult(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.status.LastError = err
		return
	}
	e.status.LastSync = time.Now()
	e.status.LastError = nil
}

// =============================================================================
// PULL
// =============================================================================

// Pull fetches the authoritative chat list and merges it into the cache.
// Server metadata overwrites local metadata; messages are never touched.
// Conversations present locally but absent from the response are kept:
// local-only records stay local-only, and synced records are left untouched
// (a deletion that did not propagate is not guessed at). Concurrent Pull
// calls coalesce into the in-flight one, and a Pull never interleaves with
// an in-flight Push.
func (e *Engine) Pull(ctx context.Context) error {
	_, err, _ := e.group.Do("pull", func() (interface{}, error) {
		return nil, e.pull(ctx)
	})
	return err
}

func (e *Engine) pull(ctx context.Context) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	userID, err := e.currentUser()
	if err != nil {
		return err
	}

	chats, err := e.api.ListChats(ctx, userID)
	if err != nil {
		e.log.Warnf("pull failed: %v", err)
		e.recordResult(err)
		return err
	}

	for _, summary := range chats {
		e.mergeSummary(ctx, summary)
	}

	e.recordResult(nil)
	e.log.Debugf("pull merged %d chats", len(chats))
	return nil
}

// mergeSummary merges one server record into the cache. Known server ids
// update in place; unknown ones become new synced conversations with no
// messages (the listing is metadata-only).
func (e *Engine) mergeSummary(ctx context.Context, summary backend.ChatSummary) {
	if local, ok := e.cache.GetByServerID(summary.ID); ok {
		updated, _ := e.cache.Update(local.LocalID, func(conv *model.Conversation) {
			conv.Title = summary.Title
			if mode := model.SearchMode(summary.SearchMode); mode.Valid() {
				conv.SearchMode = mode
			}
			if !summary.CreatedAt.IsZero() {
				conv.CreatedAt = summary.CreatedAt
			}
			if !summary.UpdatedAt.IsZero() {
				conv.UpdatedAt = summary.UpdatedAt
			}
			// Server metadata takes precedence over an unpushed local edit.
			conv.ClearStale()
		})
		e.persist(ctx, updated)
		return
	}

	conv := model.NewConversation(model.SearchMode(summary.SearchMode))
	conv.MarkSynced(summary.ID)
	conv.Title = summary.Title
	if !summary.CreatedAt.IsZero() {
		conv.CreatedAt = summary.CreatedAt
	}
	if !summary.UpdatedAt.IsZero() {
		conv.UpdatedAt = summary.UpdatedAt
	}
	e.cache.Put(conv)
	e.persist(ctx, conv)
}

// =============================================================================
// PUSH
// =============================================================================

// Push sends one conversation to the backend: a local-only record is
// created and promoted to synced, a stale record has its metadata updated.
// Failure leaves the conversation's state unchanged and surfaces the error;
// there is no automatic retry. Concurrent Push calls for the same
// conversation coalesce into one request, and a Push never interleaves
// with an in-flight Pull.
func (e *Engine) Push(ctx context.Context, localID string) error {
	_, err, _ := e.group.Do("push:"+localID, func() (interface{}, error) {
		return nil, e.push(ctx, localID)
	})
	return err
}

func (e *Engine) push(ctx context.Context, localID string) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	userID, err := e.currentUser()
	if err != nil {
		return err
	}

	conv, ok := e.cache.Get(localID)
	if !ok {
		return ErrNotCached
	}

	switch conv.Sync {
	case model.SyncLocalOnly:
		created, err := e.api.CreateChat(ctx, userID, conv.Title)
		if err != nil {
			e.log.Warnf("push create failed for %s: %v", localID, err)
			e.recordResult(err)
			return err
		}
		updated, _ := e.cache.Update(localID, func(c *model.Conversation) {
			c.MarkSynced(created.ID)
		})
		e.persist(ctx, updated)
		e.log.Infof("conversation %s synced as %s", localID, created.ID)

	case model.SyncedStale:
		title := conv.Title
		mode := string(conv.SearchMode)
		err := e.api.UpdateChat(ctx, conv.ServerID, backend.ChatUpdate{
			Title:      &title,
			SearchMode: &mode,
		})
		if err != nil {
			e.log.Warnf("push update failed for %s: %v", localID, err)
			e.recordResult(err)
			return err
		}
		updated, _ := e.cache.Update(localID, func(c *model.Conversation) {
			c.ClearStale()
		})
		e.persist(ctx, updated)

	case model.SyncSynced:
		// Nothing pending.
	}

	e.recordResult(nil)
	return nil
}

// PushAll pushes every conversation that has pending state.
func (e *Engine) PushAll(ctx context.Context) error {
	var firstErr error
	for _, conv := range e.cache.List() {
		if conv.Sync == model.SyncSynced {
			continue
		}
		if err := e.Push(ctx, conv.LocalID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// persist writes a merged record through to SQLite when persistence is
// configured.
func (e *Engine) persist(ctx context.Context, conv *model.Conversation) {
	if e.db == nil || conv == nil {
		return
	}
	if err := e.db.SaveConversation(ctx, conv); err != nil {
		e.log.Warnf("write-through failed for %s: %v", conv.LocalID, err)
	}
}

// =============================================================================
// TRIGGER LOOP
// =============================================================================

// Run pulls immediately and then, in auto mode, keeps pulling and pushing
// pending records on the configured interval until the context is
// cancelled. Manual mode performs only the initial pull.
func (e *Engine) Run(ctx context.Context) {
	_ = e.Pull(ctx)

	if e.config.Mode != ModeAuto {
		return
	}

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = e.Pull(ctx)
			_ = e.PushAll(ctx)
		}
	}
}
