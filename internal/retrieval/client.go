// Package retrieval queries the knowledge-base search capability for
// articles relevant to a user utterance.
//
// Retrieval is an enhancement, not a prerequisite: every failure mode
// (transport, status, decode) degrades to an empty result so the chat flow
// is never blocked on it.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
)

// DefaultMatchCount is the number of articles requested per query.
const DefaultMatchCount = 3

// Searcher is the contract the chat orchestrator consumes. Implementations
// return articles in backend rank order and never fail the caller: a lookup
// that goes wrong returns an empty slice.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []conversation.Article
}

// searchRequest is the wire shape of a ranked-search query.
type searchRequest struct {
	SearchQuery string `json:"search_query"`
	MatchCount  int    `json:"match_count"`
}

// searchResult is one ranked record returned by the search backend. Only a
// subset of the fields is consumed here; Content and Tags exist for the
// gateway's prompt construction.
type searchResult struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Content   string   `json:"content"`
	SourceURL string   `json:"source_url"`
	Tags      []string `json:"tags"`
}

// Client issues ranked-search queries over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a retrieval client for the given search endpoint.
// apiKey may be empty when the backend does not require authorization.
func NewClient(endpoint, apiKey string, logger log.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("retrieval endpoint is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}, nil
}

// Search returns the top-ranked articles for query, in backend rank order.
// An empty or whitespace query short-circuits to nil without a network
// call. All failures are swallowed: the result is nil and the cause is
// logged at debug level.
func (c *Client) Search(ctx context.Context, query string, limit int) []conversation.Article {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultMatchCount
	}

	body, err := json.Marshal(searchRequest{SearchQuery: query, MatchCount: limit})
	if err != nil {
		c.logger.Debug("retrieval request marshal failed", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Debug("retrieval request build failed", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("retrieval request failed", "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("retrieval returned non-OK status", "status", resp.StatusCode)
		return nil
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		c.logger.Debug("retrieval response decode failed", "error", err)
		return nil
	}

	articles := make([]conversation.Article, 0, len(results))
	for _, r := range results {
		articles = append(articles, conversation.Article{
			ID:        r.ID,
			Title:     r.Title,
			Category:  r.Category,
			SourceURL: r.SourceURL,
		})
	}
	if len(articles) == 0 {
		return nil
	}
	return articles
}
