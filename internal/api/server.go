package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/knowledge"
	"github.com/sunwardhq/helpdesk/internal/retrieval"
)

// ServerConfig contains configuration for creating the gateway server.
type ServerConfig struct {
	Logger        *slog.Logger
	Completer     Completer          // Required: upstream chat completion client
	Searcher      knowledge.Searcher // Optional: nil disables retrieval and /search
	Interactions  InteractionLogger  // Optional: nil disables interaction logging
	Conversations conversation.Store // Optional: nil disables conversation CRUD
	Dependencies  map[string]Pinger  // Optional: dependency checks for /healthz
	MatchCount    int                // Articles per retrieval (0 = default)
	CORSOrigins   []string           // Allowed origins for CORS
	TrustProxy    bool               // Trust X-Real-IP/X-Forwarded-For headers
	RateLimit     float64            // Tokens per second per IP (0 = default 1)
	RateBurst     int                // Rate limiter burst size per IP (0 = default 30)
}

// Server is the helpdesk gateway HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a gateway server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Completer == nil {
		return nil, errors.New("completer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	matchCount := cfg.MatchCount
	if matchCount <= 0 {
		matchCount = retrieval.DefaultMatchCount
	}

	ch := &chatHandler{
		completer:    cfg.Completer,
		searcher:     cfg.Searcher,
		interactions: cfg.Interactions,
		matchCount:   matchCount,
		logger:       logger,
	}

	mux := http.NewServeMux()

	// Chat streaming
	mux.HandleFunc("POST /api/v1/chat", ch.stream)

	// Knowledge base search (only registered if a searcher is provided)
	if cfg.Searcher != nil {
		sh := &searchHandler{searcher: cfg.Searcher, matchCount: matchCount, logger: logger}
		mux.HandleFunc("POST /api/v1/search", sh.search)
	}

	// Conversation CRUD (only registered if a store is provided)
	if cfg.Conversations != nil {
		vh := &conversationHandler{store: cfg.Conversations, logger: logger}
		mux.HandleFunc("GET /api/v1/conversations", vh.list)
		mux.HandleFunc("POST /api/v1/conversations", vh.create)
		mux.HandleFunc("GET /api/v1/conversations/{id}", vh.get)
		mux.HandleFunc("DELETE /api/v1/conversations/{id}", vh.delete)
	}

	// Rate limiter: per-IP token bucket
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(limit, burst)

	// Middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS sits before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	hh := &healthHandler{dependencies: cfg.Dependencies}
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", hh.handle)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
