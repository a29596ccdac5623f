// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the Hub API.
const (
	// DefaultBaseURL is the local loopback origin the Hub listens on.
	DefaultBaseURL = "http://localhost:3000"

	// DefaultTimeout bounds ingest/index/unindex requests.
	DefaultTimeout = 10 * time.Second

	// HealthTimeout bounds the token validation check.
	HealthTimeout = 3 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrAuthFailed indicates the Hub rejected the bearer token (HTTP 401).
	// This is a reconfiguration problem, never retried with backoff.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrHubUnavailable indicates the request never reached the Hub.
	ErrHubUnavailable = errors.New("hub unreachable")
)

// APIError represents a non-2xx response from the Hub.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hub error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("hub error (HTTP %d)", e.Status)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Hub's REST API. Construct it once at the composition
// root and inject it; there is no package-level instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// limiter paces outbound calls so a misbehaving caller cannot generate
	// hidden bursts of local network traffic.
	limiter *rate.Limiter
}

// NewClient creates a Hub API client for the given base URL. An empty URL
// selects the default loopback origin.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
}

// WithToken sets the bearer token sent on every request.
func (c *Client) WithToken(token string) *Client {
	c.token = strings.TrimSpace(token)
	return c
}

// WithTimeout sets the per-request timeout for non-chat calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the configured Hub origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// setHeaders sets the common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hublink/0.1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// errorResponse is the Hub's error body shape.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleErrorResponse maps a non-2xx response to a typed error. 401 maps to
// ErrAuthFailed so callers can tell reconfiguration from transport failure.
func handleErrorResponse(statusCode int, body []byte) error {
	msg := ""
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		msg = er.Error
		if msg == "" {
			msg = er.Message
		}
	}

	if statusCode == http.StatusUnauthorized {
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		}
		return ErrAuthFailed
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return &APIError{Status: statusCode, Message: msg}
}

// doJSON performs one JSON request/response round trip.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrHubUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, data)
	}
	if respBody != nil && len(data) > 0 {
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// INGESTION
// =============================================================================

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Source    string            `json:"source,omitempty"`
	Type      string            `json:"type"`
	ProjectID string            `json:"project_id,omitempty"`
}

// ingestResponse accepts either id field name the Hub may return.
type ingestResponse struct {
	FileID string `json:"file_id"`
	ID     string `json:"id"`
}

// Ingest uploads content to the Hub and returns its external file id.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (string, error) {
	var resp ingestResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/ingest", req, &resp); err != nil {
		return "", err
	}
	fileID := resp.FileID
	if fileID == "" {
		fileID = resp.ID
	}
	if fileID == "" {
		return "", &APIError{Status: http.StatusOK, Message: "ingest response missing file id"}
	}
	return fileID, nil
}

// =============================================================================
// RETRIEVAL INDEX
// =============================================================================

// IndexFile asks the Hub to add an ingested file to its retrieval index.
func (c *Client) IndexFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return errors.New("file id is required")
	}
	return c.doJSON(ctx, http.MethodPost, "/api/library/files/"+fileID+"/index", nil, nil)
}

// UnindexFile asks the Hub to remove a file from its retrieval index.
func (c *Client) UnindexFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return errors.New("file id is required")
	}
	return c.doJSON(ctx, http.MethodDelete, "/api/library/files/"+fileID+"/unindex", nil, nil)
}

// =============================================================================
// CHAT FALLBACK
// =============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the Hub's non-streaming chat reply.
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}

// Chat sends a message over the non-streaming fallback path, used when no
// live event stream is established. The call has no fixed deadline; cancel
// it through the context.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (*ChatResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := json.Marshal(ChatRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	// Chat runs on a dedicated client without the short default timeout:
	// replies can take as long as inference takes.
	chatClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := chatClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrHubUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &chatResp, nil
}

// =============================================================================
// TOKEN VALIDATION
// =============================================================================

// tokenResponse is the body of GET /api/tokens/validate.
type tokenResponse struct {
	Valid bool `json:"valid"`
}

// ValidateToken checks the configured bearer token against the Hub. The
// check carries its own short deadline; a 401 reports (false, nil) rather
// than an error since that is the answer to the question being asked.
func (c *Client) ValidateToken(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	var resp tokenResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/tokens/validate", nil, &resp)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return false, nil
		}
		return false, err
	}
	return resp.Valid, nil
}
