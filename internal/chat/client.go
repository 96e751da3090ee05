// Package chat implements the streaming chat client and the per-turn
// orchestration around it: retrieval, request construction, incremental
// decoding, and conversation-state updates.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
	"github.com/sunwardhq/helpdesk/internal/stream"
)

// wireMessage is the message shape carried by the chat request. Article
// snapshots stay local; only role and content go over the wire.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the body of the stream-establishing POST.
type chatRequest struct {
	Messages       []wireMessage `json:"messages"`
	ConversationID string        `json:"conversation_id"`
}

// Client issues chat stream requests against a gateway that speaks the
// frame grammar decoded by the stream package. Which backend produces the
// frames is deliberately opaque.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a chat client for the given gateway endpoint.
//
// The underlying http.Client carries no overall timeout: a stream lives as
// long as the model generates. Callers bound a turn via ctx.
func NewClient(endpoint, apiKey string, logger log.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("chat endpoint is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// Stream sends the full message history and returns the lazy event
// sequence decoded from the response.
//
// A non-success status fails here, before any event is produced:
// 429 maps to ErrRateLimited, 402 to ErrUnavailable, anything else to
// ErrRequestFailed. Once streaming, a transport failure surfaces on the
// sequence's error side wrapped in ErrConnection; decode anomalies never
// surface as errors (see the stream package).
//
// The returned sequence is single-use and owns the response body: it closes
// the body when the sequence ends or the consumer stops early.
func (c *Client) Stream(ctx context.Context, messages []conversation.Message, conversationID string) (iter.Seq2[stream.Event, error], error) {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{Messages: wire, ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode)
	}

	c.logger.Debug("chat stream established", "conversationId", conversationID, "messages", len(wire))

	events := func(yield func(stream.Event, error) bool) {
		defer func() { _ = resp.Body.Close() }()
		for ev, err := range stream.Events(resp.Body, c.logger) {
			if err != nil {
				yield(stream.Event{}, fmt.Errorf("%w: %v", ErrConnection, err))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
	return events, nil
}

// classifyStatus maps the status of a failed stream-establishing request to
// its user-facing error category.
func classifyStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w (status %d)", ErrRateLimited, status)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w (status %d)", ErrUnavailable, status)
	default:
		return fmt.Errorf("%w (status %d)", ErrRequestFailed, status)
	}
}
