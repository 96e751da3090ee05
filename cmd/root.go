// Package cmd provides the helpdesk CLI commands.
//
// Commands:
//   - serve: HTTP gateway server with SSE chat streaming
//   - chat: interactive terminal chat against a running gateway
//   - seed: load the starter knowledge base articles
//   - version: build information
//
// Signal handling and graceful shutdown are implemented for long-running
// commands via context cancellation.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sunwardhq/helpdesk/internal/config"
	"github.com/sunwardhq/helpdesk/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "helpdesk",
		Short:         "Support chat gateway for the Sunward HC-1 widget",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./helpdesk.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute is the main entry point for the helpdesk CLI.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads configuration and builds the process logger from it.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(log.Config{Level: cfg.Level(), JSON: cfg.LogJSON})
	return cfg, logger, nil
}
