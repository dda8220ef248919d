// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream runs one incremental response stream per conversation.
//
// A Session owns a single network stream and translates decoded chunks into
// ordered callbacks: zero or more OnChunk, then exactly one of OnComplete or
// OnError, or neither if the session was cancelled first. The Manager is a
// registry keyed by conversation ID that enforces at most one active session
// per conversation while unrelated conversations stream concurrently.
package stream
