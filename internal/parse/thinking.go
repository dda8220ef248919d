// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parse

import (
	"regexp"
	"strings"
)

// =============================================================================
// TAG TABLES
// =============================================================================

// Reasoning tag families. A matched span becomes a ThinkingBlock and is
// removed from the final content.
var reasoningTags = []string{"think", "thinking", "reasoning", "reflection"}

// Answer wrapper tags. The tags are removed but their inner text stays in
// place as final content.
var wrapperTags = []string{"answer", "final_answer", "output"}

type tagPattern struct {
	name   string
	closed *regexp.Regexp // <tag>...</tag>, non-greedy
	open   *regexp.Regexp // bare opening tag
	close  *regexp.Regexp // bare closing tag
}

func compileTag(name string) tagPattern {
	quoted := regexp.QuoteMeta(name)
	return tagPattern{
		name:   name,
		closed: regexp.MustCompile(`(?is)<` + quoted + `>(.*?)</` + quoted + `>`),
		open:   regexp.MustCompile(`(?i)<` + quoted + `>`),
		close:  regexp.MustCompile(`(?i)</` + quoted + `>`),
	}
}

var (
	reasoningPatterns []tagPattern
	wrapperPatterns   []tagPattern
)

func init() {
	for _, name := range reasoningTags {
		reasoningPatterns = append(reasoningPatterns, compileTag(name))
	}
	for _, name := range wrapperTags {
		wrapperPatterns = append(wrapperPatterns, compileTag(name))
	}
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// ThinkingBlock is one extracted reasoning span. IsOpen means the closing tag
// has not been observed yet; the stream is still mid-block.
type ThinkingBlock struct {
	Tag     string
	Content string
	IsOpen  bool
}

// Result is the outcome of splitting a message into reasoning and answer.
type Result struct {
	Blocks       []ThinkingBlock
	FinalContent string
	HasThinking  bool
}

// =============================================================================
// PARSE
// =============================================================================

// Parse splits the full accumulated text of one message into reasoning blocks
// and final answer content.
//
// Matching is case-insensitive. Spans are non-greedy: the first closing tag
// ends a span, and same-family nesting is not supported. After all closed
// spans are removed, a remaining opening tag starts an open block that
// captures everything after it. Answer wrapper tags are unwrapped in place,
// including an unclosed trailing wrapper.
//
// Parse is pure and deterministic; callers re-parse the whole text per chunk.
func Parse(text string) Result {
	remaining := text
	var blocks []ThinkingBlock

	// Closed reasoning spans, family by family.
	for _, tp := range reasoningPatterns {
		for _, m := range tp.closed.FindAllStringSubmatch(remaining, -1) {
			blocks = append(blocks, ThinkingBlock{
				Tag:     tp.name,
				Content: strings.TrimSpace(m[1]),
			})
		}
		remaining = tp.closed.ReplaceAllString(remaining, "")
	}

	// Closed wrappers: drop the tags, keep the inner text in place.
	for _, wp := range wrapperPatterns {
		remaining = wp.closed.ReplaceAllString(remaining, "$1")
	}

	// A reasoning opening tag that survived closed-span removal has no
	// closing tag: everything after the earliest one is an open block.
	openStart, openEnd := -1, -1
	openTag := ""
	for _, tp := range reasoningPatterns {
		if loc := tp.open.FindStringIndex(remaining); loc != nil {
			if openStart == -1 || loc[0] < openStart {
				openStart, openEnd = loc[0], loc[1]
				openTag = tp.name
			}
		}
	}
	if openStart >= 0 {
		blocks = append(blocks, ThinkingBlock{
			Tag:     openTag,
			Content: strings.TrimSpace(remaining[openEnd:]),
			IsOpen:  true,
		})
		remaining = remaining[:openStart]
	}

	// Unclosed wrapper: strip the tag, keep the partial inner text. Stray
	// closing tags (opener consumed by an earlier span) are dropped too.
	for _, wp := range wrapperPatterns {
		remaining = wp.open.ReplaceAllString(remaining, "")
		remaining = wp.close.ReplaceAllString(remaining, "")
	}
	for _, tp := range reasoningPatterns {
		remaining = tp.close.ReplaceAllString(remaining, "")
	}

	return Result{
		Blocks:       blocks,
		FinalContent: strings.TrimSpace(remaining),
		HasThinking:  len(blocks) > 0,
	}
}

// =============================================================================
// MARKDOWN NORMALIZATION
// =============================================================================

// NormalizeMarkdown balances an odd number of triple-backtick fences by
// appending a closing fence, so the renderer never sees a permanently open
// code block mid-stream.
func NormalizeMarkdown(text string) string {
	if strings.Count(text, "```")%2 == 0 {
		return text
	}
	if strings.HasSuffix(text, "\n") {
		return text + "```"
	}
	return text + "\n```"
}
