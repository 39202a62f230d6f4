// Package assistant provides the client for the external inference backend.
//
// The backend exposes a single synchronous endpoint, POST {base}/api/ask,
// which accepts the latest user utterance plus optional conversation/thread
// identifiers and returns generated text and, when it opened a new server-side
// thread, an opaque thread identifier used for continuity on later turns.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotConfigured is returned when no backend base URL has been configured.
// Callers treat it like any other backend failure and serve the fallback
// reply; the omission is a deployment problem, not a request problem.
var ErrNotConfigured = errors.New("assistant: backend URL not configured")

// Query carries the text of the user's latest message.
type Query struct {
	Text string `json:"text"`
}

// AskRequest is the JSON payload sent to the backend.
type AskRequest struct {
	Query          Query  `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	ThreadID       string `json:"thread_id,omitempty"`

	// BearerToken is the caller's identity-provider token, forwarded so the
	// backend can perform authenticated work on the caller's behalf. It is
	// carried in the Authorization header, never in the body.
	BearerToken string `json:"-"`
}

// AskResponse is the decoded backend reply.
type AskResponse struct {
	Text     string `json:"text"`
	ThreadID string `json:"thread_id,omitempty"`
}

// Responder is the contract the chat service depends on. Implementations
// must be safe for concurrent use and honor the provided context.
type Responder interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
}

// Client is the production Responder backed by net/http.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the given base URL. The timeout bounds
// the full request/response cycle; outbound calls are traced via otelhttp.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Ask submits one turn to the backend and decodes its reply.
//
// Any transport error, non-2xx status, or malformed payload is returned as
// an error; the service layer maps all of them to the fallback reply.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("assistant: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ask", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("assistant: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("assistant: call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused; the body content
		// is not part of the error contract.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, fmt.Errorf("assistant: backend returned %s", resp.Status)
	}

	var out AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("assistant: decode response: %w", err)
	}
	return &out, nil
}
