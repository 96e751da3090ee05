package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunwardhq/helpdesk/internal/knowledge"
	"github.com/sunwardhq/helpdesk/internal/log"
)

// limitRecorder captures the limit passed to Search.
type limitRecorder struct {
	articles []knowledge.Article
	err      error
	limit    int
}

func (f *limitRecorder) Search(_ context.Context, _ string, limit int) ([]knowledge.Article, error) {
	f.limit = limit
	return f.articles, f.err
}

func TestSearchHandler(t *testing.T) {
	t.Parallel()

	t.Run("returns ranked results", func(t *testing.T) {
		t.Parallel()

		searcher := &limitRecorder{articles: []knowledge.Article{
			{ID: uuid.New(), Title: "Connecting Your HC-1 to Ethernet", Category: "Connectivity"},
		}}
		h := &searchHandler{searcher: searcher, matchCount: 3, logger: log.NewNop()}

		rec := httptest.NewRecorder()
		h.search(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search",
			strings.NewReader(`{"search_query":"ethernet"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var results []knowledge.Article
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
		require.Len(t, results, 1)
		assert.Equal(t, "Connecting Your HC-1 to Ethernet", results[0].Title)
		assert.Equal(t, 3, searcher.limit, "default match count applies when the request omits it")
	})

	t.Run("clamps match_count", func(t *testing.T) {
		t.Parallel()

		searcher := &limitRecorder{}
		h := &searchHandler{searcher: searcher, matchCount: 3, logger: log.NewNop()}

		rec := httptest.NewRecorder()
		h.search(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search",
			strings.NewReader(`{"search_query":"hc-1","match_count":500}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, maxMatchCount, searcher.limit)
	})

	t.Run("empty results encode as empty array", func(t *testing.T) {
		t.Parallel()

		h := &searchHandler{searcher: &limitRecorder{}, matchCount: 3, logger: log.NewNop()}

		rec := httptest.NewRecorder()
		h.search(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search",
			strings.NewReader(`{"search_query":"no such thing"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("rejects blank query", func(t *testing.T) {
		t.Parallel()

		h := &searchHandler{searcher: &limitRecorder{}, matchCount: 3, logger: log.NewNop()}

		rec := httptest.NewRecorder()
		h.search(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search",
			strings.NewReader(`{"search_query":"   "}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure becomes 500", func(t *testing.T) {
		t.Parallel()

		h := &searchHandler{
			searcher:   &limitRecorder{err: errors.New("connection refused")},
			matchCount: 3,
			logger:     log.NewNop(),
		}

		rec := httptest.NewRecorder()
		h.search(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search",
			strings.NewReader(`{"search_query":"ethernet"}`)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
