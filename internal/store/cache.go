// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sort"
	"sync"

	"github.com/jeranaias/haven-tui/internal/model"
)

// =============================================================================
// CONVERSATION CACHE
// =============================================================================

// Cache is the in-memory conversation registry shared by the streaming and
// sync subsystems. Every read hands out a clone and every write goes through
// clone-then-swap, so no caller ever holds a reference into the cache's own
// records.
type Cache struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		conversations: make(map[string]*model.Conversation),
	}
}

// Get returns a clone of the conversation with the given local ID.
func (c *Cache) Get(localID string) (*model.Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conv, ok := c.conversations[localID]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// GetByServerID returns a clone of the conversation with the given server ID.
func (c *Cache) GetByServerID(serverID string) (*model.Conversation, bool) {
	if serverID == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, conv := range c.conversations {
		if conv.ServerID == serverID {
			return conv.Clone(), true
		}
	}
	return nil, false
}

// List returns clones of all conversations, most recently updated first.
func (c *Cache) List() []*model.Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make([]*model.Conversation, 0, len(c.conversations))
	for _, conv := range c.conversations {
		all = append(all, conv.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	return all
}

// Put stores a clone of the conversation, replacing any previous record.
func (c *Cache) Put(conv *model.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversations[conv.LocalID] = conv.Clone()
}

// Update applies fn to a clone of the conversation and swaps the result in
// atomically. Returns a clone of the updated record, or false if the
// conversation is not cached. Readers running concurrently see either the
// old or the new record.
func (c *Cache) Update(localID string, fn func(conv *model.Conversation)) (*model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.conversations[localID]
	if !ok {
		return nil, false
	}
	updated := current.Clone()
	fn(updated)
	c.conversations[localID] = updated
	return updated.Clone(), true
}

// Delete removes a conversation. No-op when absent.
func (c *Cache) Delete(localID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conversations, localID)
}

// Len returns the number of cached conversations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conversations)
}

// PendingCount returns the number of conversations with no server identifier.
func (c *Cache) PendingCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for _, conv := range c.conversations {
		if conv.Sync == model.SyncLocalOnly {
			count++
		}
	}
	return count
}

// Clear removes every conversation. Used on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversations = make(map[string]*model.Conversation)
}
