// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
	if msg.ID == "" {
		t.Error("ID should be generated")
	}
}

func TestAssistantMessageStreaming(t *testing.T) {
	msg := NewAssistantMessage()

	if !msg.IsStreaming {
		t.Fatal("new assistant message should be streaming")
	}

	msg.AppendToken("Hello")
	msg.AppendToken(" world")

	if got := msg.GetDisplayContent(); got != "Hello world" {
		t.Errorf("GetDisplayContent() = %q, want 'Hello world'", got)
	}

	msg.Finalize([]Source{{Filename: "notes.pdf"}})

	if msg.IsStreaming {
		t.Error("message should not be streaming after Finalize")
	}
	if msg.Content != "Hello world" {
		t.Errorf("Content = %q, want 'Hello world'", msg.Content)
	}
	if len(msg.Sources) != 1 || msg.Sources[0].Filename != "notes.pdf" {
		t.Errorf("Sources = %v, want one entry", msg.Sources)
	}

	// Content is immutable after the terminal event.
	msg.AppendToken("more")
	if msg.Content != "Hello world" {
		t.Error("AppendToken after Finalize must not change content")
	}
}

func TestMessageFailKeepsPartialContent(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendToken("partial")
	msg.Fail("connection reset")

	if msg.IsStreaming {
		t.Error("failed message should not be streaming")
	}
	if msg.Content != "partial" {
		t.Errorf("Content = %q, want partial content preserved", msg.Content)
	}
	if !msg.HasError() {
		t.Error("HasError() should be true")
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	conv := NewConversation(SearchModeEmbeddings)

	if conv.LocalID == "" {
		t.Error("LocalID should be generated")
	}
	if conv.ServerID != "" {
		t.Error("ServerID should be empty at creation")
	}
	if conv.Sync != SyncLocalOnly {
		t.Errorf("Sync = %v, want local-only", conv.Sync)
	}
	if conv.SearchMode != SearchModeEmbeddings {
		t.Errorf("SearchMode = %q, want embeddings", conv.SearchMode)
	}
	if conv.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", conv.Title, DefaultTitle)
	}
}

func TestNewConversationInvalidMode(t *testing.T) {
	conv := NewConversation("bogus")
	if conv.SearchMode != SearchModeNormal {
		t.Errorf("SearchMode = %q, want fallback to normal", conv.SearchMode)
	}
}

func TestSingleInProgressInvariant(t *testing.T) {
	conv := NewConversation(SearchModeNormal)

	if conv.AddUserMessage("question") == nil {
		t.Fatal("AddUserMessage should succeed on idle conversation")
	}
	if conv.BeginAssistantMessage() == nil {
		t.Fatal("BeginAssistantMessage should succeed")
	}

	// No second assistant message, no new user message while streaming.
	if conv.BeginAssistantMessage() != nil {
		t.Error("second BeginAssistantMessage should be refused")
	}
	if conv.AddUserMessage("interrupt") != nil {
		t.Error("AddUserMessage should be refused while streaming")
	}

	conv.FinalizeAssistant(nil)
	if conv.Streaming {
		t.Error("Streaming flag should clear on finalize")
	}
	if conv.AddUserMessage("follow-up") == nil {
		t.Error("AddUserMessage should succeed after finalize")
	}
}

func TestMarkSyncedMonotonic(t *testing.T) {
	conv := NewConversation(SearchModeNormal)

	if !conv.MarkSynced("srv-1") {
		t.Fatal("first MarkSynced should succeed")
	}
	if conv.ServerID != "srv-1" || conv.Sync != SyncSynced {
		t.Errorf("after MarkSynced: ServerID=%q Sync=%v", conv.ServerID, conv.Sync)
	}

	// Server ID is assigned at most once.
	if conv.MarkSynced("srv-2") {
		t.Error("second MarkSynced should be refused")
	}
	if conv.ServerID != "srv-1" {
		t.Errorf("ServerID = %q, want srv-1", conv.ServerID)
	}
}

func TestStaleEditLifecycle(t *testing.T) {
	conv := NewConversation(SearchModeNormal)

	// Edits before sync do not mark stale; the whole record is pending.
	conv.SetTitle("local title")
	if conv.Sync != SyncLocalOnly {
		t.Errorf("Sync = %v, want local-only", conv.Sync)
	}

	conv.MarkSynced("srv-1")
	conv.SetTitle("renamed")
	if conv.Sync != SyncedStale {
		t.Errorf("Sync = %v, want stale after edit", conv.Sync)
	}
	if !conv.Sync.IsSynced() {
		t.Error("stale conversation still counts as synced")
	}

	conv.ClearStale()
	if conv.Sync != SyncSynced {
		t.Errorf("Sync = %v, want synced after push", conv.Sync)
	}
}

func TestCloneIsDeep(t *testing.T) {
	conv := NewConversation(SearchModeNormal)
	conv.AddUserMessage("hello")
	asst := conv.BeginAssistantMessage()
	asst.AppendToken("streamed")

	clone := conv.Clone()

	// Mutating the clone must not touch the original.
	clone.Messages[0].Content = "changed"
	clone.Title = "other"

	if conv.Messages[0].Content != "hello" {
		t.Error("clone mutation leaked into original message")
	}
	if conv.Title != DefaultTitle {
		t.Error("clone mutation leaked into original title")
	}

	// Streaming state survives the copy.
	if clone.InProgress() == nil {
		t.Error("clone should keep the in-progress assistant message")
	}
	if got := clone.InProgress().GetDisplayContent(); got != "streamed" {
		t.Errorf("clone stream content = %q, want 'streamed'", got)
	}
}
