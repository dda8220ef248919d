// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the haven application.
//
// String helpers are rune- and width-aware so UI truncation never splits a
// multi-byte character. AtomicWriteFile is the crash-safe write primitive used
// by the config and store layers.
package util
