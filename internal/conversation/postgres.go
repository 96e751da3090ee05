package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunwardhq/helpdesk/internal/log"
)

// Postgres is a Store backed by a single-row JSONB document per
// conversation. The full-list-replace contract maps onto one UPDATE, so
// per-conversation atomicity comes from row-level semantics for free.
//
// Safe for concurrent use; the pool handles connection sharing.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres creates a Postgres-backed store. The conversations table must
// exist (see db/migrations).
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Create allocates an empty conversation row.
func (p *Postgres) Create(ctx context.Context) (Conversation, error) {
	convo := Conversation{
		ID:       uuid.New(),
		Title:    DefaultTitle,
		Messages: nil,
	}

	err := p.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, title, messages)
		 VALUES ($1, $2, '[]'::jsonb)
		 RETURNING created_at, updated_at`,
		convo.ID, convo.Title,
	).Scan(&convo.CreatedAt, &convo.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return convo, nil
}

// Get returns the conversation with the given id.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	convo := Conversation{ID: id}
	var raw []byte

	err := p.pool.QueryRow(ctx,
		`SELECT title, messages, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&convo.Title, &raw, &convo.CreatedAt, &convo.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("select conversation: %w", err)
	}

	if err := json.Unmarshal(raw, &convo.Messages); err != nil {
		return Conversation{}, fmt.Errorf("decode messages: %w", err)
	}
	return convo, nil
}

// ReplaceMessages swaps the message document and recomputes the derived
// fields in one UPDATE.
func (p *Postgres) ReplaceMessages(ctx context.Context, id uuid.UUID, messages []Message) error {
	if messages == nil {
		messages = []Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE conversations
		 SET messages = $2, title = $3, updated_at = now()
		 WHERE id = $1`,
		id, raw, DeriveTitle(messages),
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the conversation row.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all conversations, most recently updated first.
func (p *Postgres) List(ctx context.Context) ([]Conversation, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, messages, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var convo Conversation
		var raw []byte
		if err := rows.Scan(&convo.ID, &convo.Title, &raw, &convo.CreatedAt, &convo.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if err := json.Unmarshal(raw, &convo.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		out = append(out, convo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}
