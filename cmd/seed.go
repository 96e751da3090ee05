package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sunwardhq/helpdesk/db"
	"github.com/sunwardhq/helpdesk/internal/knowledge"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Run migrations and load the starter knowledge base",
		RunE: func(*cobra.Command, []string) error {
			return runSeed()
		},
	}
}

func runSeed() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("seed needs database_url or HELPDESK_DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	store, err := knowledge.New(pool, logger)
	if err != nil {
		return fmt.Errorf("creating knowledge store: %w", err)
	}

	inserted, err := store.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seeding knowledge base: %w", err)
	}
	if inserted == 0 {
		logger.Info("knowledge base already populated, nothing to do")
		return nil
	}
	logger.Info("knowledge base seeded", "articles", inserted)
	return nil
}
