package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
	"github.com/sunwardhq/helpdesk/internal/retrieval"
	"github.com/sunwardhq/helpdesk/internal/stream"
)

// Orchestrator coordinates one user turn:
//
//	Idle → Retrieving → Sending → Streaming → Completed
//
// with Errored reachable from Sending and Streaming. The user message is
// committed to the conversation store before any network call, retrieval is
// best-effort, and the in-progress assistant message is rewritten in the
// store after every decoded event so observers see incremental growth.
//
// Precondition: the caller must not submit a second turn for the same
// conversation while one is in flight. The orchestrator does not defend
// against concurrent submissions beyond documenting this.
type Orchestrator struct {
	client     *Client
	retriever  retrieval.Searcher
	store      conversation.Store
	logger     log.Logger
	matchCount int
}

// NewOrchestrator wires a turn orchestrator. retriever may be nil to
// disable knowledge retrieval entirely; client and store are required.
func NewOrchestrator(client *Client, retriever retrieval.Searcher, store conversation.Store, logger log.Logger) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		client:     client,
		retriever:  retriever,
		store:      store,
		logger:     logger,
		matchCount: retrieval.DefaultMatchCount,
	}, nil
}

// Send runs one complete turn and returns the conversation id and the
// finalized assistant message. Returning is the turn's completion signal:
// it happens exactly once, after the last event has been applied.
//
// conversationID may be uuid.Nil, in which case a conversation is created
// lazily before the user message is appended. The returned id identifies
// it either way.
//
// On error the turn ends in its Errored state: messages already written
// (always including the user message) remain committed, and the error maps
// to user-facing text via UserMessage.
func (o *Orchestrator) Send(ctx context.Context, conversationID uuid.UUID, text string) (uuid.UUID, conversation.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return conversationID, conversation.Message{}, ErrEmptyMessage
	}

	if conversationID == uuid.Nil {
		convo, err := o.store.Create(ctx)
		if err != nil {
			return uuid.Nil, conversation.Message{}, fmt.Errorf("create conversation: %w", err)
		}
		conversationID = convo.ID
	}

	convo, err := o.store.Get(ctx, conversationID)
	if err != nil {
		return conversationID, conversation.Message{}, fmt.Errorf("load conversation: %w", err)
	}

	// Commit the user message synchronously, before any network call, so
	// state is consistent even if everything after this fails.
	history := append(convo.Messages[:len(convo.Messages):len(convo.Messages)], conversation.Message{
		Role:    conversation.RoleUser,
		Content: text,
	})
	if err := o.store.ReplaceMessages(ctx, conversationID, history); err != nil {
		return conversationID, conversation.Message{}, fmt.Errorf("commit user message: %w", err)
	}

	// Best-effort retrieval. A failure or empty result proceeds to the
	// chat request identically to a successful one.
	var articles []conversation.Article
	if o.retriever != nil {
		articles = o.retriever.Search(ctx, text, o.matchCount)
	}

	// The wire conversation id is freshly generated per turn; the store id
	// stays local.
	events, err := o.client.Stream(ctx, history, uuid.NewString())
	if err != nil {
		return conversationID, conversation.Message{}, err
	}

	assistant := conversation.Message{
		Role:     conversation.RoleAssistant,
		Articles: articles,
	}
	writeProgress := func() error {
		return o.store.ReplaceMessages(ctx, conversationID, append(history[:len(history):len(history)], assistant))
	}

	for ev, err := range events {
		if err != nil {
			return conversationID, assistant, err
		}
		switch ev.Kind {
		case stream.KindDelta:
			assistant.Content += ev.Delta
		case stream.KindArticles:
			// Full replace of the current source list, last write wins.
			assistant.Articles = ev.Articles
		case stream.KindDone:
			if err := writeProgress(); err != nil {
				return conversationID, assistant, fmt.Errorf("finalize assistant message: %w", err)
			}
			o.logger.Debug("turn completed",
				"conversationId", conversationID,
				"contentLen", len(assistant.Content),
				"articles", len(assistant.Articles))
			return conversationID, assistant, nil
		}
		if err := writeProgress(); err != nil {
			return conversationID, assistant, fmt.Errorf("write assistant progress: %w", err)
		}
	}

	// The event sequence always terminates with KindDone or an error, so
	// this is unreachable; keep the compiler and future refactors honest.
	return conversationID, assistant, nil
}
