package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sunwardhq/helpdesk/internal/knowledge"
	"github.com/sunwardhq/helpdesk/internal/log"
)

// searchInput is the POST /api/v1/search request body. The field names
// match the ranked-search wire contract the retrieval client speaks.
type searchInput struct {
	SearchQuery string `json:"search_query"`
	MatchCount  int    `json:"match_count"`
}

const maxMatchCount = 20

// searchHandler exposes the knowledge base as a ranked-list service.
type searchHandler struct {
	searcher   knowledge.Searcher
	matchCount int
	logger     log.Logger
}

// search handles POST /api/v1/search.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	var input searchInput
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(input.SearchQuery) == "" {
		writeError(w, http.StatusBadRequest, "search_query is required")
		return
	}

	limit := input.MatchCount
	if limit <= 0 {
		limit = h.matchCount
	}
	if limit > maxMatchCount {
		limit = maxMatchCount
	}

	results, err := h.searcher.Search(r.Context(), input.SearchQuery, limit)
	if err != nil {
		h.logger.Error("knowledge search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if results == nil {
		results = []knowledge.Article{}
	}
	writeJSON(w, http.StatusOK, results)
}
