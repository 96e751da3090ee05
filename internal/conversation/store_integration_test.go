//go:build integration

package conversation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunwardhq/helpdesk/internal/log"
)

// exerciseStore runs the shared Store contract against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	convo, err := store.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, convo.Title)

	msgs := []Message{
		{Role: RoleUser, Content: "Does the HC-1 support ethernet?"},
		{Role: RoleAssistant, Content: "Yes, via the tested USB-C adapter.", Articles: []Article{
			{ID: "kb-3", Title: "Ethernet Setup", Category: "Connectivity", SourceURL: "https://example.com/kb-3"},
		}},
	}
	require.NoError(t, store.ReplaceMessages(ctx, convo.ID, msgs))

	got, err := store.Get(ctx, convo.ID)
	require.NoError(t, err)
	assert.Equal(t, "Does the HC-1 support ethernet?", got.Title)
	assert.Equal(t, msgs, got.Messages)

	time.Sleep(5 * time.Millisecond)
	second, err := store.Create(ctx)
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, store.Delete(ctx, convo.ID))
	require.NoError(t, store.Delete(ctx, second.ID))
	_, err = store.Get(ctx, convo.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Integration(t *testing.T) {
	dbURL := os.Getenv("HELPDESK_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("HELPDESK_TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	defer pool.Close()

	store, err := NewPostgres(pool, log.NewNop())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("HELPDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HELPDESK_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	store, err := NewRedis(client, log.NewNop())
	require.NoError(t, err)
	exerciseStore(t, store)
}
