// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"time"

	"github.com/jeranaias/haven-tui/internal/chat"
	"github.com/jeranaias/haven-tui/internal/config"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// StreamUpdateMsg delivers one controller update into the Bubble Tea loop.
type StreamUpdateMsg struct {
	Update chat.Update
}

// FrameTickMsg drives the capped-rate render loop during streaming.
type FrameTickMsg struct {
	Time time.Time
}

// ConfigReloadedMsg delivers an externally edited configuration.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// SyncTickMsg refreshes the sync status shown in the header.
type SyncTickMsg struct {
	Time time.Time
}
