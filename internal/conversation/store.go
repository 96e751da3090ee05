package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors returned by Store implementations.
// Check with errors.Is().
var (
	// ErrNotFound indicates the requested conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
)

// Store is the conversation persistence contract required by the chat
// orchestrator. List returns conversations ordered by UpdatedAt descending
// (most recently active first).
type Store interface {
	// Create allocates an empty conversation and returns it.
	Create(ctx context.Context) (Conversation, error)

	// Get returns the conversation with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Conversation, error)

	// ReplaceMessages atomically swaps the conversation's message list,
	// recomputing the title and refreshing UpdatedAt.
	ReplaceMessages(ctx context.Context, id uuid.UUID, messages []Message) error

	// Delete removes the conversation. Deleting a missing conversation
	// returns ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns all conversations, most recently updated first.
	List(ctx context.Context) ([]Conversation, error)
}
