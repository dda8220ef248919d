// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sseServer returns a test server that writes the given raw lines as the
// stream response body.
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/stream" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	}))
}

func TestStream_TokensAndDone(t *testing.T) {
	server := sseServer(t, strings.Join([]string{
		`data: {"token":"Hel","done":false}`,
		`data: {"token":"lo","done":false}`,
		`data: {"token":"","done":true,"sources":[{"filename":"notes.pdf","chatId":"c1"}]}`,
		"",
	}, "\n"))
	defer server.Close()

	var tokens []string
	var done *StreamChunk
	err := newTestClient(server.URL).Stream(context.Background(), StreamRequest{
		UserID: "alice", Message: "hi", SearchMode: "normal",
	}, func(chunk StreamChunk) {
		if chunk.Done {
			c := chunk
			done = &c
			return
		}
		tokens = append(tokens, chunk.Token)
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if strings.Join(tokens, "") != "Hello" {
		t.Errorf("tokens = %v", tokens)
	}
	if done == nil {
		t.Fatal("terminal chunk never delivered")
	}
	if len(done.Sources) != 1 || done.Sources[0].Filename != "notes.pdf" {
		t.Errorf("sources = %v", done.Sources)
	}
}

func TestStream_MalformedLineSkipped(t *testing.T) {
	server := sseServer(t, strings.Join([]string{
		`data: {"token":"a","done":false}`,
		`data: {not json at all`,
		`: comment line`,
		`data: {"token":"b","done":false}`,
		`data: {"token":"","done":true}`,
		"",
	}, "\n"))
	defer server.Close()

	var got strings.Builder
	err := newTestClient(server.URL).Stream(context.Background(), StreamRequest{
		UserID: "alice", Message: "hi", SearchMode: "normal",
	}, func(chunk StreamChunk) {
		got.WriteString(chunk.Token)
	})
	if err != nil {
		t.Fatalf("malformed line should not abort the stream: %v", err)
	}
	if got.String() != "ab" {
		t.Errorf("accumulated = %q, want 'ab'", got.String())
	}
}

func TestStream_ErrorEvent(t *testing.T) {
	server := sseServer(t, strings.Join([]string{
		`data: {"token":"partial","done":false}`,
		`data: {"error":"model crashed","done":true}`,
		"",
	}, "\n"))
	defer server.Close()

	var sawDone bool
	err := newTestClient(server.URL).Stream(context.Background(), StreamRequest{
		UserID: "alice", Message: "hi", SearchMode: "normal",
	}, func(chunk StreamChunk) {
		if chunk.Done {
			sawDone = true
		}
	})

	if err == nil {
		t.Fatal("error event should surface as an error")
	}
	if err.Error() != "model crashed" {
		t.Errorf("err = %q, want backend message", err.Error())
	}
	if sawDone {
		t.Error("error event must not reach the callback as a done chunk")
	}
}

func TestStream_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail": "upstream model unavailable"}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Stream(context.Background(), StreamRequest{
		UserID: "alice", Message: "hi", SearchMode: "normal",
	}, func(chunk StreamChunk) {
		t.Error("callback should not fire on a failed request")
	})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestStream_EOFWithoutDone(t *testing.T) {
	// Connection drop before the terminal event: no error, just an end.
	server := sseServer(t, `data: {"token":"half","done":false}`+"\n")
	defer server.Close()

	var got string
	err := newTestClient(server.URL).Stream(context.Background(), StreamRequest{
		UserID: "alice", Message: "hi", SearchMode: "normal",
	}, func(chunk StreamChunk) {
		got += chunk.Token
	})
	if err != nil {
		t.Fatalf("EOF should end the stream cleanly: %v", err)
	}
	if got != "half" {
		t.Errorf("got %q, want 'half'", got)
	}
}

func TestStreamReader_Accumulates(t *testing.T) {
	body := strings.NewReader(strings.Join([]string{
		`data: {"token":"one ","done":false}`,
		`data: {"token":"two","done":false}`,
		`data: {"token":"","done":true}`,
		"",
	}, "\n"))

	reader := NewStreamReader(body)
	err := reader.Process(context.Background(), func(chunk StreamChunk) {})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if reader.Accumulated() != "one two" {
		t.Errorf("Accumulated = %q", reader.Accumulated())
	}
	if reader.TokenCount() != 2 {
		t.Errorf("TokenCount = %d, want 2", reader.TokenCount())
	}
}
