// Package conversation provides conversation state storage.
//
// A Conversation is an ordered list of Messages. The orchestrator rewrites
// the full message list after every streaming increment, so a reader of the
// store observes the assistant answer growing in place. Implementations must
// make ReplaceMessages atomic with respect to a single conversation;
// concurrent writes to different conversations are independent.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Article is a knowledge-base reference surfaced as a citation on an
// assistant message. A Message holds a snapshot copy, not a live reference.
type Article struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	SourceURL string `json:"source_url,omitempty"`
}

// Message is a single conversation entry. Immutable once appended, except
// for the in-progress assistant message whose Content is progressively
// rewritten until its stream completes.
type Message struct {
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Articles []Article `json:"articles,omitempty"`
}

// Conversation is an ordered message list with derived metadata.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultTitle is used while a conversation has no user message yet.
const DefaultTitle = "New Chat"

// titleRuneLimit bounds the derived title length.
const titleRuneLimit = 50

// DeriveTitle computes a conversation title from its message list: the
// leading 50 runes of the first user message, with an ellipsis when
// truncated. Deriving twice from the same list yields the same title, and
// appending assistant messages never changes it.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) <= titleRuneLimit {
			return m.Content
		}
		return string(runes[:titleRuneLimit]) + "…"
	}
	return DefaultTitle
}

// CloneMessages returns a deep enough copy of msgs for snapshot semantics:
// the slice and each article list are copied so callers cannot mutate
// stored state through retained references.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].Articles != nil {
			articles := make([]Article, len(out[i].Articles))
			copy(articles, out[i].Articles)
			out[i].Articles = articles
		}
	}
	return out
}
