// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates a conversation turn end to end: it appends the
// user message, opens the stream through the session manager, re-parses the
// accumulated text on every chunk to split reasoning from the answer, and
// finalizes or fails the assistant message when the stream ends.
//
// The controller owns no UI. It reports progress through a single Notify
// callback carrying a conversation snapshot plus display-ready parsed
// content.
package chat
