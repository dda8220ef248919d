// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatsync reconciles the local conversation cache with the
// backend's authoritative chat list.
//
// Each conversation moves LocalOnly -> Synced exactly once, when the backend
// create succeeds and the server identifier is recorded. Pull merges server
// metadata into the cache without ever touching messages or discarding
// local-only conversations; Push creates or updates one conversation on the
// backend. Both operations are single-flight: concurrent identical calls
// coalesce into the in-flight one.
package chatsync
