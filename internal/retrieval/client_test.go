package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", "key", log.NewNop())
	assert.Error(t, err, "empty endpoint must be rejected")

	c, err := NewClient("http://localhost:9/search", "", nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClient_Search(t *testing.T) {
	t.Parallel()

	t.Run("maps ranked results in order", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req searchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "reset my device", req.SearchQuery)
			assert.Equal(t, 3, req.MatchCount)
			assert.Equal(t, "Bearer pk-test", r.Header.Get("Authorization"))

			_ = json.NewEncoder(w).Encode([]searchResult{
				{ID: "kb-2", Title: "Factory Reset", Category: "Setup", Content: "long text", SourceURL: "https://kb/2"},
				{ID: "kb-7", Title: "Soft Reboot", Category: "Troubleshooting"},
			})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "pk-test", log.NewNop())
		require.NoError(t, err)

		articles := c.Search(context.Background(), "reset my device", 3)
		require.Len(t, articles, 2)
		assert.Equal(t, conversation.Article{ID: "kb-2", Title: "Factory Reset", Category: "Setup", SourceURL: "https://kb/2"}, articles[0])
		assert.Equal(t, "kb-7", articles[1].ID)
	})

	t.Run("empty query short-circuits without a call", func(t *testing.T) {
		t.Parallel()

		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "", log.NewNop())
		require.NoError(t, err)

		assert.Nil(t, c.Search(context.Background(), "   ", 3))
		assert.False(t, called)
	})

	t.Run("transport failure degrades to nil", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(nil)
		srv.Close() // refuse connections

		c, err := NewClient(srv.URL, "", log.NewNop())
		require.NoError(t, err)

		assert.Nil(t, c.Search(context.Background(), "reset", 3))
	})

	t.Run("non-OK status degrades to nil", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "", log.NewNop())
		require.NoError(t, err)

		assert.Nil(t, c.Search(context.Background(), "reset", 3))
	})

	t.Run("decode failure degrades to nil", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not an array"))
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "", log.NewNop())
		require.NoError(t, err)

		assert.Nil(t, c.Search(context.Background(), "reset", 3))
	})
}
