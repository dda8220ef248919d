// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the haven chat backend.
//
// The backend exposes a CRUD surface for chat threads plus a streaming
// endpoint that emits newline-delimited "data: " prefixed JSON events.
// All methods return a *ClientError categorized by ErrorType; use the IsX
// helpers for handling.
package backend
