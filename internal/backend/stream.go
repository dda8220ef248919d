// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/jeranaias/haven-tui/internal/logging"
)

// dataPrefix marks an event line in the stream body.
var dataPrefix = []byte("data: ")

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader decodes an event-stream response body line by line. Lines
// carrying the data prefix hold one JSON-encoded StreamChunk each; malformed
// lines are logged and skipped so an unparseable line never kills an
// otherwise healthy stream.
type StreamReader struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	tokenCount  int
	log         *logging.Logger
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
		log:    logging.New("stream"),
	}
}

// Process reads the stream and calls the callback for each chunk. Blocks
// until the terminal event, EOF, or context cancellation. A terminal error
// event is returned as a *ClientError and does not reach the callback.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			chunk, err := s.readChunk()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return mapTransportError(err)
			}
			if chunk == nil {
				continue
			}

			if chunk.Error != "" {
				return &ClientError{Type: ErrTypeBackend, Message: chunk.Error}
			}

			callback(*chunk)
			if chunk.Done {
				return nil
			}
		}
	}
}

// readChunk reads and parses a single line. Returns (nil, nil) for lines that
// carry no event: blanks, comments, and malformed JSON.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(bytes.TrimSpace(line)) == 0 {
			return nil, io.EOF
		}
		if len(line) == 0 {
			return nil, err
		}
		// Fall through and process the final unterminated line.
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, nil
	}
	payload := bytes.TrimPrefix(line, dataPrefix)

	var chunk StreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		// Forward compatibility: drop the line, keep the stream alive.
		s.log.Warnf("skipping malformed stream line: %s", payload)
		return nil, nil
	}

	if chunk.Token != "" {
		s.accumulator.WriteString(chunk.Token)
		s.tokenCount++
	}
	return &chunk, nil
}

// Accumulated returns all content received so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// TokenCount returns the number of non-empty tokens received.
func (s *StreamReader) TokenCount() int {
	return s.tokenCount
}
