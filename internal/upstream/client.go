// Package upstream is the client for the generative backend. It speaks a
// chat-completions-shaped API and hands back the raw stream body; nothing
// here interprets frames, so any provider that produces the stream grammar
// works (the gateway relays it verbatim).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sunwardhq/helpdesk/internal/log"
)

// Message is one prompt entry sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionRequest is the wire body of a streaming completion call.
type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// StatusError reports a non-success upstream response. The gateway maps
// Status onto its own response codes.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Client issues streaming completion requests.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates an upstream client. endpoint, apiKey and model are all
// required.
func NewClient(endpoint, apiKey, model string, logger log.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("upstream endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("upstream API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("upstream model is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		// No overall timeout: completions stream for as long as the model
		// generates. Callers bound the request via ctx.
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// StreamCompletion starts a streaming completion and returns the response
// body for the caller to relay or decode. The caller owns the body and
// must close it. A non-2xx response is drained, closed, and returned as a
// *StatusError.
func (c *Client) StreamCompletion(ctx context.Context, messages []Message) (io.ReadCloser, error) {
	body, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call upstream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bounded read: enough to log, not enough to buffer an attack.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		c.logger.Error("upstream completion failed", "status", resp.StatusCode, "body", string(detail))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(detail)}
	}

	return resp.Body, nil
}
