package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sunwardhq/helpdesk/internal/chat"
	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
	"github.com/sunwardhq/helpdesk/internal/retrieval"
)

func newChatCmd() *cobra.Command {
	var gatewayURL string
	var apiKey string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat against a running gateway",
		RunE: func(*cobra.Command, []string) error {
			return runChat(gatewayURL, apiKey)
		},
	}
	cmd.Flags().StringVar(&gatewayURL, "gateway", "http://localhost:8080", "base URL of the gateway server")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key sent to the gateway")
	return cmd
}

// runChat is a minimal line-based client used for manual testing of a
// gateway: type a question, get the answer with its sources.
func runChat(gatewayURL, apiKey string) error {
	// Keep the prompt clean; only warnings break through.
	logger := log.New(log.Config{Level: slog.LevelWarn})

	base := strings.TrimRight(gatewayURL, "/")
	client, err := chat.NewClient(base+"/api/v1/chat", apiKey, logger)
	if err != nil {
		return fmt.Errorf("creating chat client: %w", err)
	}
	retriever, err := retrieval.NewClient(base+"/api/v1/search", apiKey, logger)
	if err != nil {
		return fmt.Errorf("creating retrieval client: %w", err)
	}

	orchestrator, err := chat.NewOrchestrator(client, retriever, conversation.NewMemory(), logger)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Sunward helpdesk chat. Type a question, Ctrl+D to exit.")

	var conversationID uuid.UUID
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		id, reply, err := orchestrator.Send(ctx, conversationID, scanner.Text())
		if errors.Is(err, chat.ErrEmptyMessage) {
			continue
		}
		if err != nil {
			fmt.Println(chat.UserMessage(err))
			continue
		}
		conversationID = id

		fmt.Println(reply.Content)
		for _, a := range reply.Articles {
			fmt.Printf("  [%s] %s\n", a.Category, a.Title)
		}
		fmt.Println()
	}

	return scanner.Err()
}
