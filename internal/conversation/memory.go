package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It is the default backend for the terminal
// client and for tests. Safe for concurrent use.
//
// The zero value is not useful; use NewMemory.
type Memory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Conversation
	now   func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[uuid.UUID]Conversation),
		now:   time.Now,
	}
}

// Create allocates an empty conversation.
func (m *Memory) Create(_ context.Context) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	convo := Conversation{
		ID:        uuid.New(),
		Title:     DefaultTitle,
		Messages:  nil,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.items[convo.ID] = convo
	return convo, nil
}

// Get returns a snapshot copy of the conversation.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convo, ok := m.items[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	convo.Messages = CloneMessages(convo.Messages)
	return convo, nil
}

// ReplaceMessages swaps the full message list under the store lock, so a
// concurrent Get never observes a partial write.
func (m *Memory) ReplaceMessages(_ context.Context, id uuid.UUID, messages []Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	convo, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	convo.Messages = CloneMessages(messages)
	convo.Title = DeriveTitle(messages)
	convo.UpdatedAt = m.now()
	m.items[id] = convo
	return nil
}

// Delete removes the conversation.
func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// List returns snapshots of all conversations, most recently updated first.
func (m *Memory) List(_ context.Context) ([]Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Conversation, 0, len(m.items))
	for _, convo := range m.items {
		convo.Messages = CloneMessages(convo.Messages)
		out = append(out, convo)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
