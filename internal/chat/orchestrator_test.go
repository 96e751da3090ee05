package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
	"github.com/sunwardhq/helpdesk/internal/retrieval"
)

// fakeSearcher returns a fixed article list and records queries.
type fakeSearcher struct {
	mu       sync.Mutex
	articles []conversation.Article
	queries  []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) []conversation.Article {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.articles
}

// recordingStore wraps a Store and snapshots every message-list replace, so
// tests can assert on incremental visibility.
type recordingStore struct {
	conversation.Store
	mu       sync.Mutex
	replaces [][]conversation.Message
}

func (r *recordingStore) ReplaceMessages(ctx context.Context, id uuid.UUID, messages []conversation.Message) error {
	r.mu.Lock()
	r.replaces = append(r.replaces, conversation.CloneMessages(messages))
	r.mu.Unlock()
	return r.Store.ReplaceMessages(ctx, id, messages)
}

// sseServer serves the given body as a chat stream for any request.
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOrchestrator(t *testing.T, endpoint string, searcher retrieval.Searcher, store conversation.Store) *Orchestrator {
	t.Helper()
	client, err := NewClient(endpoint, "test-key", log.NewNop())
	require.NoError(t, err)

	o, err := NewOrchestrator(client, searcher, store, log.NewNop())
	require.NoError(t, err)
	return o
}

func TestOrchestrator_Send_FullTurn(t *testing.T) {
	t.Parallel()

	// Scenario: one article retrieved up front, answer streamed in two
	// deltas, sentinel termination.
	srv := sseServer(t, "data: {\"choices\":[{\"delta\":{\"content\":\"Sure\"}}]}\n\n"+
		"data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\n"+
		"data: [DONE]\n\n")

	searcher := &fakeSearcher{articles: []conversation.Article{
		{ID: "kb-1", Title: "How to Factory Reset Your DC-1", Category: "Setup"},
	}}
	store := conversation.NewMemory()
	o := newOrchestrator(t, srv.URL, searcher, store)

	convID, assistant, err := o.Send(context.Background(), uuid.Nil, "How do I reset my device?")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, convID)

	assert.Equal(t, "Sure!", assistant.Content)
	require.Len(t, assistant.Articles, 1)
	assert.Equal(t, "How to Factory Reset Your DC-1", assistant.Articles[0].Title)
	assert.Equal(t, []string{"How do I reset my device?"}, searcher.queries)

	convo, err := store.Get(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, convo.Messages, 2)
	assert.Equal(t, conversation.RoleUser, convo.Messages[0].Role)
	assert.Equal(t, "How do I reset my device?", convo.Messages[0].Content)
	assert.Equal(t, conversation.RoleAssistant, convo.Messages[1].Role)
	assert.Equal(t, "Sure!", convo.Messages[1].Content)
	require.Len(t, convo.Messages[1].Articles, 1)
	assert.Equal(t, "kb-1", convo.Messages[1].Articles[0].ID)
	assert.Equal(t, "How do I reset my device?", convo.Title)
}

func TestOrchestrator_Send_IncrementalWrites(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"+
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo \"}}]}\n\n"+
		"data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n"+
		"data: [DONE]\n\n")

	store := &recordingStore{Store: conversation.NewMemory()}
	o := newOrchestrator(t, srv.URL, nil, store)

	_, assistant, err := o.Send(context.Background(), uuid.Nil, "hello there")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", assistant.Content)

	// First write commits the user message alone; each delta rewrites the
	// in-progress assistant message in place, never stacking duplicates.
	require.GreaterOrEqual(t, len(store.replaces), 5)
	assert.Len(t, store.replaces[0], 1)

	var progression []string
	for _, msgs := range store.replaces[1:] {
		require.Len(t, msgs, 2, "assistant message must be replaced, not stacked")
		progression = append(progression, msgs[1].Content)
	}
	assert.Equal(t, []string{"Hel", "Hello ", "Hello world", "Hello world"}, progression)
}

func TestOrchestrator_Send_RetrievalFailureDoesNotBlockChat(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n")

	// A nil-returning searcher stands in for a failed retrieval call: the
	// Searcher contract swallows failures into an empty result.
	searcher := &fakeSearcher{articles: nil}
	store := conversation.NewMemory()
	o := newOrchestrator(t, srv.URL, searcher, store)

	convID, assistant, err := o.Send(context.Background(), uuid.Nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, "ok", assistant.Content)
	assert.Empty(t, assistant.Articles)

	convo, err := store.Get(context.Background(), convID)
	require.NoError(t, err)
	assert.Empty(t, convo.Messages[1].Articles)
}

func TestOrchestrator_Send_ArticlesUpdateReplacesList(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, ":articles:[{\"id\":\"s1\",\"title\":\"From Stream\",\"category\":\"Docs\"}]\n"+
		"data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"+
		"data: [DONE]\n\n")

	searcher := &fakeSearcher{articles: []conversation.Article{{ID: "pre", Title: "Prefetched", Category: "Docs"}}}
	store := conversation.NewMemory()
	o := newOrchestrator(t, srv.URL, searcher, store)

	_, assistant, err := o.Send(context.Background(), uuid.Nil, "q")
	require.NoError(t, err)

	// Last write wins: the stream's list replaces the prefetched one.
	require.Len(t, assistant.Articles, 1)
	assert.Equal(t, "s1", assistant.Articles[0].ID)
}

func TestOrchestrator_Send_EmptyInput(t *testing.T) {
	t.Parallel()

	store := conversation.NewMemory()
	o := newOrchestrator(t, "http://localhost:9/chat", nil, store)

	_, _, err := o.Send(context.Background(), uuid.Nil, "   \t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	convos, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convos, "no conversation may be created for empty input")
}

func TestOrchestrator_Send_RequestFailureKeepsUserMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	store := conversation.NewMemory()
	o := newOrchestrator(t, srv.URL, nil, store)

	convID, _, err := o.Send(context.Background(), uuid.Nil, "hello?")
	assert.ErrorIs(t, err, ErrRateLimited)

	// The user message was committed before the request; no partial
	// assistant message dangles.
	convo, err := store.Get(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, convo.Messages, 1)
	assert.Equal(t, conversation.RoleUser, convo.Messages[0].Role)
}

func TestOrchestrator_Send_SecondTurnUsesHistory(t *testing.T) {
	t.Parallel()

	var gotMessages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotMessages = len(req.Messages)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"again\"}}]}\n\ndata: [DONE]\n\n"))
	}))
	t.Cleanup(srv.Close)

	store := conversation.NewMemory()
	o := newOrchestrator(t, srv.URL, nil, store)

	convID, _, err := o.Send(context.Background(), uuid.Nil, "first question")
	require.NoError(t, err)

	_, _, err = o.Send(context.Background(), convID, "second question")
	require.NoError(t, err)

	// user + assistant + user from the second turn.
	assert.Equal(t, 3, gotMessages)

	convo, err := store.Get(context.Background(), convID)
	require.NoError(t, err)
	assert.Len(t, convo.Messages, 4)
	assert.Equal(t, "first question", convo.Title, "title stays derived from the first user message")
}
