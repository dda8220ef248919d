// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds conversation state: a SQLite-backed Store for
// durability and an in-memory Cache for reads during a session.
//
// The Cache is the only structure shared between the streaming and sync
// subsystems. It enforces copy-on-write per conversation: readers receive
// clones, and Update clones before mutating and swaps the result in, so a
// concurrent reader sees either the old or the new record, never a torn one.
package store
