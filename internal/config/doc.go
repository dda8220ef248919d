// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for haven.
//
// Configuration is TOML at ~/.haven/config.toml, with sensible defaults and
// environment variable overrides (HAVEN_SERVER_URL, HAVEN_USER,
// HAVEN_SYNC_MODE, HAVEN_LOG_LEVEL). Saves are atomic. Watch reports
// external edits to the config file so a running session can reload.
package config
