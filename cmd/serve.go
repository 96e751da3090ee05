package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sunwardhq/helpdesk/db"
	"github.com/sunwardhq/helpdesk/internal/api"
	"github.com/sunwardhq/helpdesk/internal/config"
	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/knowledge"
	"github.com/sunwardhq/helpdesk/internal/log"
	"github.com/sunwardhq/helpdesk/internal/upstream"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway server",
		RunE: func(*cobra.Command, []string) error {
			return runServe()
		},
	}
}

// redisPinger adapts a redis client to the health probe contract.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// pgPinger adapts a pgx pool to the health probe contract.
type pgPinger struct {
	pool *pgxpool.Pool
}

func (p pgPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runServe initializes and starts the HTTP gateway server.
func runServe() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gateway server", "version", Version, "config", cfg)

	completer, err := upstream.NewClient(cfg.UpstreamEndpoint, cfg.UpstreamAPIKey, cfg.UpstreamModel, logger)
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}

	dependencies := make(map[string]api.Pinger)

	// The knowledge base lives in Postgres; without a database URL the
	// gateway runs in relay-only mode (no retrieval, no /search).
	var pool *pgxpool.Pool
	var searcher knowledge.Searcher
	var interactions api.InteractionLogger
	if cfg.DatabaseURL != "" {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("creating connection pool: %w", err)
		}
		defer pool.Close()

		store, err := knowledge.New(pool, logger)
		if err != nil {
			return fmt.Errorf("creating knowledge store: %w", err)
		}
		searcher = store
		interactions = store
		dependencies["postgres"] = pgPinger{pool: pool}
	} else {
		logger.Warn("no database URL configured, retrieval disabled")
	}

	convos, closeStore, err := buildConversationStore(cfg, pool, logger, dependencies)
	if err != nil {
		return err
	}
	defer closeStore()

	server, err := api.NewServer(api.ServerConfig{
		Logger:        logger,
		Completer:     completer,
		Searcher:      searcher,
		Interactions:  interactions,
		Conversations: convos,
		Dependencies:  dependencies,
		MatchCount:    cfg.MatchCount,
		CORSOrigins:   cfg.CORSOrigins,
		TrustProxy:    cfg.TrustProxy,
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("gateway ready",
		"addr", cfg.ListenAddr,
		"api", "/api/v1/*",
		"health", "/healthz",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down gateway")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// buildConversationStore creates the configured conversation store and a
// cleanup func for its backing connection.
func buildConversationStore(
	cfg *config.Config,
	pool *pgxpool.Pool,
	logger log.Logger,
	dependencies map[string]api.Pinger,
) (conversation.Store, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		return conversation.NewMemory(), noop, nil

	case config.StorePostgres:
		// Validation guarantees a database URL here, so the shared pool
		// already exists.
		store, err := conversation.NewPostgres(pool, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("creating conversation store: %w", err)
		}
		return store, noop, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store, err := conversation.NewRedis(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("creating conversation store: %w", err)
		}
		dependencies["redis"] = redisPinger{client: client}
		return store, func() { _ = client.Close() }, nil

	default:
		// Load() validates the backend; this is unreachable in practice.
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
