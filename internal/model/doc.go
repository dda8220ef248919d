// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation is created locally first and only later persisted to the
// backend; its LocalID never changes, while its ServerID is assigned at most
// once when the create call succeeds. Messages accumulate streamed content in
// a builder and freeze it when the owning stream finishes.
package model
