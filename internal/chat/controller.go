// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/haven-tui/internal/backend"
	"github.com/jeranaias/haven-tui/internal/chatsync"
	"github.com/jeranaias/haven-tui/internal/logging"
	"github.com/jeranaias/haven-tui/internal/model"
	"github.com/jeranaias/haven-tui/internal/parse"
	"github.com/jeranaias/haven-tui/internal/store"
	"github.com/jeranaias/haven-tui/internal/stream"
)

// =============================================================================
// ERRORS AND TYPES
// =============================================================================

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrStreamActive         = errors.New("a response is already streaming for this conversation")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrNothingToRetry       = errors.New("no user message to retry")
	ErrEmptyTitle           = errors.New("title is empty")
	ErrInvalidSearchMode    = errors.New("invalid search mode")
)

// Detailer is the backend surface needed for title polling. *backend.Client
// satisfies it.
type Detailer interface {
	GetChatDetail(ctx context.Context, chatID string) (*backend.ChatDetail, error)
}

// Update is one progress report for a conversation. Conv is a detached
// snapshot; Thinking and Answer are the parsed view of the in-progress or
// final assistant content.
type Update struct {
	ConvID   string
	Conv     *model.Conversation
	Thinking []parse.ThinkingBlock
	Answer   string
	Done     bool
	Err      error
}

// Notify receives updates. It is called from streaming goroutines and must
// not block for long.
type Notify func(Update)

// Options carries the request defaults applied to every turn.
type Options struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	UseMemory    bool
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives conversation turns against the backend.
type Controller struct {
	detailer Detailer
	manager  *stream.Manager
	cache    *store.Cache
	db       *store.Store     // optional write-through; may be nil
	sync     *chatsync.Engine // optional; may be nil

	userID string
	opts   Options
	notify Notify

	mu    sync.Mutex
	accum map[string]*strings.Builder

	titlePollInterval time.Duration
	titlePollAttempts int

	done chan struct{} // closed by Close; stops title pollers
	once sync.Once

	log *logging.Logger
}

// NewController wires the streaming, caching, and sync subsystems into one
// conversation driver. db and syncEngine may be nil.
func NewController(detailer Detailer, manager *stream.Manager, cache *store.Cache, db *store.Store, syncEngine *chatsync.Engine, userID string, opts Options, notify Notify) *Controller {
	return &Controller{
		detailer:          detailer,
		manager:           manager,
		cache:             cache,
		db:                db,
		sync:              syncEngine,
		userID:            userID,
		opts:              opts,
		notify:            notify,
		accum:             make(map[string]*strings.Builder),
		titlePollInterval: 2 * time.Second,
		titlePollAttempts: 5,
		done:              make(chan struct{}),
		log:               logging.New("chat"),
	}
}

// SetNotify replaces the update sink. Used when the consumer (the terminal
// program) is constructed after the controller.
func (c *Controller) SetNotify(notify Notify) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = notify
}

// NewConversation creates a local conversation, caches and persists it, and
// kicks off a background push when a sync engine is attached.
func (c *Controller) NewConversation(ctx context.Context, mode model.SearchMode) *model.Conversation {
	conv := model.NewConversation(mode)
	c.cache.Put(conv)
	c.persist(ctx, conv)
	if c.sync != nil {
		go func() {
			if err := c.sync.Push(context.Background(), conv.LocalID); err != nil {
				c.log.Warnf("initial push for %s failed: %v", conv.LocalID, err)
			}
		}()
	}
	return conv
}

// Send appends a user message and streams the assistant response. Returns
// ErrStreamActive while a previous response for the same conversation is
// still in flight; other conversations are unaffected.
func (c *Controller) Send(ctx context.Context, convID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	var busy bool
	updated, ok := c.cache.Update(convID, func(conv *model.Conversation) {
		if conv.InProgress() != nil {
			busy = true
			return
		}
		conv.AddUserMessage(text)
		conv.BeginAssistantMessage()
	})
	if !ok {
		return ErrConversationNotFound
	}
	if busy {
		return ErrStreamActive
	}
	c.persist(ctx, updated)
	c.emit(Update{ConvID: convID, Conv: updated})

	// A local-only conversation gets one push attempt so the backend can
	// associate the stream with a chat. Streaming works either way.
	if c.sync != nil && updated.Sync == model.SyncLocalOnly {
		if err := c.sync.Push(ctx, convID); err != nil {
			c.log.Debugf("pre-stream push for %s failed: %v", convID, err)
		}
	}

	c.startStream(ctx, convID, text)
	return nil
}

// Retry regenerates the last assistant response. The failed message is
// replaced, not appended to.
func (c *Controller) Retry(ctx context.Context, convID string) error {
	var (
		busy     bool
		lastUser string
	)
	updated, ok := c.cache.Update(convID, func(conv *model.Conversation) {
		if conv.InProgress() != nil {
			busy = true
			return
		}
		user := conv.LastUserMessage()
		if user == nil {
			return
		}
		lastUser = user.Content

		// Drop the assistant message being replaced.
		if last := conv.LastMessage(); last != nil && last.Role == model.RoleAssistant {
			conv.Messages = conv.Messages[:len(conv.Messages)-1]
		}
		if msg := conv.BeginAssistantMessage(); msg != nil {
			msg.Retrying = true
		}
	})
	if !ok {
		return ErrConversationNotFound
	}
	if busy {
		return ErrStreamActive
	}
	if lastUser == "" {
		return ErrNothingToRetry
	}
	c.persist(ctx, updated)
	c.emit(Update{ConvID: convID, Conv: updated})

	c.startStream(ctx, convID, lastUser)
	return nil
}

// Stop cancels the active stream for a conversation, keeping whatever
// partial content arrived. No-op when nothing is streaming.
func (c *Controller) Stop(convID string) {
	c.manager.Stop(convID)
	c.finalizePartial(convID)
}

// Close cancels every active stream and freezes their partial content.
func (c *Controller) Close() {
	c.once.Do(func() { close(c.done) })
	c.manager.StopAll()
	for _, conv := range c.cache.List() {
		if conv.Streaming {
			c.finalizePartial(conv.LocalID)
		}
	}
}

// =============================================================================
// METADATA EDITS
// =============================================================================

// Rename sets the conversation title locally. The edit is flagged for push
// and sent to the backend in the background when a sync engine is attached.
func (c *Controller) Rename(ctx context.Context, convID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	updated, ok := c.cache.Update(convID, func(conv *model.Conversation) {
		conv.SetTitle(title)
	})
	if !ok {
		return ErrConversationNotFound
	}
	c.persist(ctx, updated)
	c.emit(Update{ConvID: convID, Conv: updated})
	c.pushMetadata(convID)
	return nil
}

// SetSearchMode changes the retrieval mode applied to future turns. Like
// Rename, the edit is flagged for push.
func (c *Controller) SetSearchMode(ctx context.Context, convID string, mode model.SearchMode) error {
	if !mode.Valid() {
		return ErrInvalidSearchMode
	}
	updated, ok := c.cache.Update(convID, func(conv *model.Conversation) {
		conv.SetSearchMode(mode)
	})
	if !ok {
		return ErrConversationNotFound
	}
	c.persist(ctx, updated)
	c.emit(Update{ConvID: convID, Conv: updated})
	c.pushMetadata(convID)
	return nil
}

// pushMetadata pushes a pending local edit in the background.
func (c *Controller) pushMetadata(convID string) {
	if c.sync == nil {
		return
	}
	go func() {
		if err := c.sync.Push(context.Background(), convID); err != nil {
			c.log.Warnf("metadata push for %s failed: %v", convID, err)
		}
	}()
}

// =============================================================================
// STREAMING
// =============================================================================

// startStream opens the network stream for one turn. Any stream already
// active for the conversation is replaced by the manager.
func (c *Controller) startStream(ctx context.Context, convID, text string) {
	conv, _ := c.cache.Get(convID)

	req := backend.StreamRequest{
		UserID:       c.userID,
		Message:      text,
		Model:        c.opts.Model,
		Temperature:  c.opts.Temperature,
		MaxTokens:    c.opts.MaxTokens,
		SystemPrompt: c.opts.SystemPrompt,
		UseMemory:    c.opts.UseMemory,
	}
	if conv != nil {
		req.ChatID = conv.ServerID
		req.SearchMode = string(conv.SearchMode)
	}

	c.mu.Lock()
	c.accum[convID] = &strings.Builder{}
	c.mu.Unlock()

	c.manager.Start(ctx, convID, req, stream.Callbacks{
		OnChunk:    func(token string) { c.onChunk(convID, token) },
		OnComplete: func(sources []backend.Source) { c.onComplete(convID, sources) },
		OnError:    func(err error) { c.onError(convID, err) },
	})
}

// onChunk re-parses the whole accumulated text and publishes the split view.
// Parsing is stateless over the full text, so a tag that closes late is
// reclassified correctly on the next chunk.
func (c *Controller) onChunk(convID, token string) {
	c.mu.Lock()
	buf, ok := c.accum[convID]
	if !ok {
		c.mu.Unlock()
		return
	}
	buf.WriteString(token)
	text := buf.String()
	c.mu.Unlock()

	result := parse.Parse(text)
	updated, _ := c.cache.Update(convID, func(conv *model.Conversation) {
		if msg := conv.InProgress(); msg != nil {
			msg.SetStreamContent(text)
		}
	})
	c.emit(Update{
		ConvID:   convID,
		Conv:     updated,
		Thinking: result.Blocks,
		Answer:   parse.NormalizeMarkdown(result.FinalContent),
	})
}

// onComplete freezes the assistant message with the full text and sources.
func (c *Controller) onComplete(convID string, sources []backend.Source) {
	text := c.takeAccum(convID)

	modelSources := make([]model.Source, 0, len(sources))
	for _, src := range sources {
		modelSources = append(modelSources, model.Source{Filename: src.Filename, ChatID: src.ChatID})
	}

	updated, ok := c.cache.Update(convID, func(conv *model.Conversation) {
		if msg := conv.InProgress(); msg != nil {
			msg.SetStreamContent(text)
		}
		conv.FinalizeAssistant(modelSources)
	})
	if !ok {
		return
	}
	c.persist(context.Background(), updated)

	result := parse.Parse(text)
	c.emit(Update{
		ConvID:   convID,
		Conv:     updated,
		Thinking: result.Blocks,
		Answer:   parse.NormalizeMarkdown(result.FinalContent),
		Done:     true,
	})

	if updated.Sync.IsSynced() && !updated.HasGeneratedTitle() {
		go c.pollTitle(updated.LocalID, updated.ServerID)
	}
}

// onError freezes the assistant message with the failure, keeping partial
// content so the user can see how far the response got.
func (c *Controller) onError(convID string, err error) {
	text := c.takeAccum(convID)

	updated, ok := c.cache.Update(convID, func(conv *model.Conversation) {
		if msg := conv.InProgress(); msg != nil {
			msg.SetStreamContent(text)
		}
		conv.FailAssistant(err.Error())
	})
	if !ok {
		return
	}
	c.persist(context.Background(), updated)

	result := parse.Parse(text)
	c.emit(Update{
		ConvID:   convID,
		Conv:     updated,
		Thinking: result.Blocks,
		Answer:   parse.NormalizeMarkdown(result.FinalContent),
		Done:     true,
		Err:      err,
	})
}

// finalizePartial freezes an in-progress message after a local cancel. The
// manager guarantees no callback fires after Stop returns, so this cannot
// race a terminal event.
func (c *Controller) finalizePartial(convID string) {
	c.takeAccum(convID)

	var hadStream bool
	updated, ok := c.cache.Update(convID, func(conv *model.Conversation) {
		if conv.InProgress() != nil {
			hadStream = true
			conv.FinalizeAssistant(nil)
		}
	})
	if !ok || !hadStream {
		return
	}
	c.persist(context.Background(), updated)

	var text string
	if msg := updated.LastAssistantMessage(); msg != nil {
		text = msg.Content
	}
	result := parse.Parse(text)
	c.emit(Update{
		ConvID:   convID,
		Conv:     updated,
		Thinking: result.Blocks,
		Answer:   parse.NormalizeMarkdown(result.FinalContent),
		Done:     true,
	})
}

// takeAccum removes and returns the accumulated stream text for a
// conversation.
func (c *Controller) takeAccum(convID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.accum[convID]
	if !ok {
		return ""
	}
	delete(c.accum, convID)
	return buf.String()
}

// =============================================================================
// TITLE POLLING
// =============================================================================

// pollTitle watches for the backend's asynchronously generated title after
// the first completed exchange. The title comes from the server, so applying
// it must not flag the conversation as having a pending local edit.
func (c *Controller) pollTitle(localID, serverID string) {
	for i := 0; i < c.titlePollAttempts; i++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.titlePollInterval):
		}

		conv, ok := c.cache.Get(localID)
		if !ok || conv.HasGeneratedTitle() {
			return
		}

		detail, err := c.detailer.GetChatDetail(context.Background(), serverID)
		if err != nil {
			c.log.Debugf("title poll for %s: %v", localID, err)
			continue
		}
		if detail.Title == "" || detail.Title == model.DefaultTitle {
			continue
		}

		updated, ok := c.cache.Update(localID, func(conv *model.Conversation) {
			conv.Title = detail.Title
		})
		if !ok {
			return
		}
		c.persist(context.Background(), updated)
		c.emit(Update{ConvID: localID, Conv: updated})
		c.log.Infof("title for %s: %q", localID, detail.Title)
		return
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) persist(ctx context.Context, conv *model.Conversation) {
	if c.db == nil || conv == nil {
		return
	}
	if err := c.db.SaveConversation(ctx, conv); err != nil {
		c.log.Warnf("persist failed for %s: %v", conv.LocalID, err)
	}
}

func (c *Controller) emit(update Update) {
	c.mu.Lock()
	notify := c.notify
	c.mu.Unlock()
	if notify != nil {
		notify(update)
	}
}
