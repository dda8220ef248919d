// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/jeranaias/haven-tui/internal/logging"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeBackend
	ErrTypeNotFound
	ErrTypeConflict
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Type: ErrTypeConnection, Message: "backend is unreachable"}
	ErrTimeout     = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrNotFound    = &ClientError{Type: ErrTypeNotFound, Message: "resource not found"}
)

// IsUnreachable checks if an error indicates the backend cannot be reached.
func IsUnreachable(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeConnection
	}
	return errors.Is(err, ErrUnreachable)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, ErrTimeout)
}

// IsNotFound checks if an error is a missing-resource error.
func IsNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotFound
	}
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a rejected-update conflict.
func IsConflict(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeConflict
	}
	return false
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend API base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://127.0.0.1:8000",
		Timeout: 30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the haven backend API.
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a new backend client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new backend client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		log: logging.New("backend"),
	}
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// mapTransportError converts low-level transport failures to typed errors.
func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ClientError{Type: ErrTypeConnection, Message: "backend is unreachable", Cause: err}
}

// statusError converts a non-2xx response to a typed error, reading the
// FastAPI error detail when present.
func statusError(resp *http.Response, operation string) error {
	var errType ErrorType
	switch {
	case resp.StatusCode == http.StatusNotFound:
		errType = ErrTypeNotFound
	case resp.StatusCode == http.StatusConflict:
		errType = ErrTypeConflict
	default:
		errType = ErrTypeBackend
	}

	var body backendError
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
		return &ClientError{Type: errType, Message: body.Detail}
	}
	return &ClientError{Type: errType, Message: operation + " failed: " + resp.Status}
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckHealth verifies that the backend is reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/health", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "health check")
	}
	return nil
}

// =============================================================================
// CHAT CRUD
// =============================================================================

// ListChats returns the authoritative chat listing for a user.
func (c *Client) ListChats(ctx context.Context, userID string) ([]ChatSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/api/chats/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "list chats")
	}

	var chats []ChatSummary
	if err := json.NewDecoder(resp.Body).Decode(&chats); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode chat list", Cause: err}
	}
	return chats, nil
}

// GetChatDetail returns full metadata for one chat, including messages.
func (c *Client) GetChatDetail(ctx context.Context, chatID string) (*ChatDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/api/chats/detail/"+url.PathEscape(chatID), nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "get chat detail")
	}

	var detail ChatDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode chat detail", Cause: err}
	}
	return &detail, nil
}

// CreateChat creates a chat thread on the backend and returns its record,
// including the server-assigned identifier.
func (c *Client) CreateChat(ctx context.Context, userID, title string) (*ChatSummary, error) {
	body, err := json.Marshal(createChatRequest{UserID: userID, Title: title})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/chats/create", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "create chat")
	}

	var created ChatSummary
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode created chat", Cause: err}
	}
	return &created, nil
}

// UpdateChat pushes changed metadata fields for one chat. The backend takes
// the fields as query parameters; nil fields are omitted.
func (c *Client) UpdateChat(ctx context.Context, chatID string, update ChatUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	query := url.Values{}
	if update.Title != nil {
		query.Set("title", *update.Title)
	}
	if update.SearchMode != nil {
		query.Set("search_mode", *update.SearchMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.config.BaseURL+"/api/chats/"+url.PathEscape(chatID)+"?"+query.Encode(), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "update chat")
	}
	return nil
}

// DeleteChat deletes a chat and its messages on the backend.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.config.BaseURL+"/api/chats/"+url.PathEscape(chatID), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "delete chat")
	}
	return nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// Stream sends a streaming chat request and calls the callback for each
// decoded chunk, in arrival order. It returns when the terminal event
// arrives, the context is cancelled, or the transport fails. A backend-side
// error event is returned as a *ClientError instead of reaching the callback.
func (c *Client) Stream(ctx context.Context, streamReq StreamRequest, callback StreamCallback) error {
	body, err := json.Marshal(streamReq)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// No client timeout for streaming; lifetime is bounded by the context.
	streamClient := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := streamClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "stream request")
	}

	reader := NewStreamReader(resp.Body)
	return reader.Process(ctx, callback)
}
