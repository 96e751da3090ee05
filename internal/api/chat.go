package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sunwardhq/helpdesk/internal/knowledge"
	"github.com/sunwardhq/helpdesk/internal/log"
	"github.com/sunwardhq/helpdesk/internal/upstream"
)

// Completer streams a model completion. Satisfied by *upstream.Client.
type Completer interface {
	StreamCompletion(ctx context.Context, messages []upstream.Message) (io.ReadCloser, error)
}

// InteractionLogger records chat turns for support analysis. Satisfied by
// *knowledge.Store.
type InteractionLogger interface {
	LogInteraction(ctx context.Context, in knowledge.Interaction) error
}

// chatMessage is one entry of the incoming conversation history.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatInput is the POST /api/v1/chat request body.
type chatInput struct {
	Messages       []chatMessage `json:"messages"`
	ConversationID string        `json:"conversation_id"`
}

// chatHandler proxies the widget's chat request to the upstream model,
// augmenting it with retrieved knowledge and relaying the answer stream.
type chatHandler struct {
	completer    Completer
	searcher     knowledge.Searcher    // optional: nil disables retrieval
	interactions InteractionLogger     // optional: nil disables logging
	matchCount   int
	logger       log.Logger
}

// stream handles POST /api/v1/chat.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	var input chatInput
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(input.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	ctx := r.Context()

	// RAG: search the knowledge base with the latest user utterance.
	latest := latestUserMessage(input.Messages)
	var articles []knowledge.Article
	if h.searcher != nil && latest != "" {
		found, err := h.searcher.Search(ctx, latest, h.matchCount)
		if err != nil {
			// Retrieval is an enhancement; the chat continues without it.
			h.logger.Warn("knowledge search failed", "error", err)
		} else {
			articles = found
		}
	}

	if h.interactions != nil && latest != "" {
		h.logInteraction(input.ConversationID, latest, articles)
	}

	prompt := []upstream.Message{{Role: "system", Content: systemPrompt + ragContext(articles)}}
	for _, m := range input.Messages {
		prompt = append(prompt, upstream.Message{Role: m.Role, Content: m.Content})
	}

	body, err := h.completer.StreamCompletion(ctx, prompt)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	defer func() { _ = body.Close() }()

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Surface the matched sources before the first token so the widget can
	// render citations while the answer streams.
	if len(articles) > 0 {
		if err := sse.WriteMeta("articles", projectArticles(articles)); err != nil {
			h.logger.Debug("client gone before stream start", "error", err)
			return
		}
	}

	if err := sse.Relay(body); err != nil {
		// Either the client went away or upstream broke; nothing to send
		// at this point, the widget treats the cut as stream end.
		h.logger.Debug("chat relay ended early", "error", err)
		return
	}

	h.logger.Info("chat stream completed", "conversationId", input.ConversationID, "articles", len(articles))
}

// writeUpstreamError maps an upstream failure onto the widget-facing
// status contract: 429 and 402 pass through, everything else is a 500.
func (h *chatHandler) writeUpstreamError(w http.ResponseWriter, err error) {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusTooManyRequests:
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again in a moment.")
			return
		case http.StatusPaymentRequired:
			writeError(w, http.StatusPaymentRequired, "Service temporarily unavailable. Please try again later.")
			return
		}
	}
	h.logger.Error("upstream chat request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to get response")
}

// logInteraction records the turn without blocking or failing the chat.
func (h *chatHandler) logInteraction(conversationID, query string, articles []knowledge.Article) {
	matched := make([]uuid.UUID, 0, len(articles))
	for _, a := range articles {
		matched = append(matched, a.ID)
	}

	// Detached context: the record should land even if the client hangs up
	// mid-stream.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.interactions.LogInteraction(ctx, knowledge.Interaction{
		ConversationID:  conversationID,
		UserQuery:       query,
		MatchedArticles: matched,
		WasDeflected:    len(matched) > 0,
	}); err != nil {
		h.logger.Warn("failed to log chat interaction", "error", err)
	}
}

// latestUserMessage returns the content of the most recent user entry.
func latestUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// articleView is the projection of an article carried on the wire to the
// widget: content and tags stay server-side.
type articleView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	SourceURL string `json:"source_url,omitempty"`
}

func projectArticles(articles []knowledge.Article) []articleView {
	out := make([]articleView, 0, len(articles))
	for _, a := range articles {
		out = append(out, articleView{
			ID:        a.ID.String(),
			Title:     a.Title,
			Category:  a.Category,
			SourceURL: a.SourceURL,
		})
	}
	return out
}
