// Package knowledge manages the support knowledge base: article storage,
// ranked full-text search, and interaction logging.
//
// Ranking lives in the database (see db/migrations); this package issues
// the query and hands back the ordered result, so from the chat core's
// perspective search is an opaque ranked-list service.
package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunwardhq/helpdesk/internal/log"
)

// Article is a full knowledge-base record. The chat core consumes only a
// projection of it (id, title, category, source URL); content and tags
// feed search ranking and prompt construction.
type Article struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	SourceURL string    `json:"source_url,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Interaction records one chat turn for later support analysis. Logging is
// best-effort at call sites; this type only defines the record.
type Interaction struct {
	ConversationID  string
	UserQuery       string
	MatchedArticles []uuid.UUID
	WasDeflected    bool
}

// Searcher is the read-side contract the chat gateway consumes.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Article, error)
}

// Store provides knowledge-base access over PostgreSQL.
// Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a knowledge store backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Search returns the top-ranked articles for query, in rank order.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Article, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, category, content, source_url, tags
		 FROM search_knowledge_base($1, $2)`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var a Article
		var sourceURL *string
		if err := rows.Scan(&a.ID, &a.Title, &a.Category, &a.Content, &sourceURL, &a.Tags); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if sourceURL != nil {
			a.SourceURL = *sourceURL
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// Insert adds one article. A nil ID is assigned by the database.
func (s *Store) Insert(ctx context.Context, a Article) error {
	var sourceURL *string
	if a.SourceURL != "" {
		sourceURL = &a.SourceURL
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	if a.ID == uuid.Nil {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO knowledge_base (title, category, content, source_url, tags)
			 VALUES ($1, $2, $3, $4, $5)`,
			a.Title, a.Category, a.Content, sourceURL, a.Tags)
		if err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO knowledge_base (id, title, category, content, source_url, tags)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Title, a.Category, a.Content, sourceURL, a.Tags)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// Count returns the number of stored articles.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_base`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// LogInteraction records one chat turn.
func (s *Store) LogInteraction(ctx context.Context, in Interaction) error {
	if in.ConversationID == "" {
		in.ConversationID = "anonymous"
	}
	if in.MatchedArticles == nil {
		in.MatchedArticles = []uuid.UUID{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_interactions (conversation_id, user_query, matched_articles, was_deflected)
		 VALUES ($1, $2, $3, $4)`,
		in.ConversationID, in.UserQuery, in.MatchedArticles, in.WasDeflected)
	if err != nil {
		return fmt.Errorf("log interaction: %w", err)
	}
	return nil
}
