package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunwardhq/helpdesk/internal/log"
)

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := recoveryMiddleware(log.NewWithWriter(&buf, log.Config{}))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := loggingMiddleware(log.NewWithWriter(&buf, log.Config{}))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "/api/v1/search")
	assert.Contains(t, out, "418")
}

func TestLoggingWriter_PreservesFlusher(t *testing.T) {
	t.Parallel()

	// SSE handlers need the flusher to survive the middleware wrap.
	handler := loggingMiddleware(log.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, ok := w.(http.Flusher)
			assert.True(t, ok, "wrapped writer must still flush")
			_, err := newSSEWriter(w)
			assert.NoError(t, err)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil))
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin echoed", func(t *testing.T) {
		t.Parallel()

		handler := corsMiddleware([]string{"https://support.sunwardhq.com"})(next)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.Header.Set("Origin", "https://support.sunwardhq.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "https://support.sunwardhq.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		t.Parallel()

		handler := corsMiddleware([]string{"https://support.sunwardhq.com"})(next)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.Header.Set("Origin", "https://evil.example")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard allows any origin", func(t *testing.T) {
		t.Parallel()

		handler := corsMiddleware([]string{"*"})(next)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.Header.Set("Origin", "https://anything.example")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		t.Parallel()

		handler := corsMiddleware([]string{"https://support.sunwardhq.com"})(next)
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
		req.Header.Set("Origin", "https://support.sunwardhq.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}
