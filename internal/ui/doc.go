// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the haven terminal interface on Bubble Tea.
//
// The layout is a scrollback viewport over a textarea input with a one-line
// status bar. Streaming updates arrive as messages from the chat controller
// and are coalesced through an UpdateBuffer so rendering stays at a capped
// frame rate regardless of token arrival speed.
package ui
