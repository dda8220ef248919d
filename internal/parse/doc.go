// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parse separates model reasoning from final answer text.
//
// Local models emit XML-style reasoning tags (<think>, <reasoning>, ...)
// inline with the answer, and tag boundaries can arrive split across stream
// chunks. Parse is a pure function over the whole accumulated text: the
// streaming caller re-parses everything on each chunk instead of patching
// previous results, so an open block is demoted to closed the moment its
// closing tag arrives, with no parser state to drift.
package parse
