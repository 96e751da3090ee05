package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sunwardhq/helpdesk/internal/log"
)

const (
	redisKeyPrefix = "helpdesk:conversation:"
	redisIndexKey  = "helpdesk:conversations:by_updated"
)

// Redis is a Store keeping each conversation as one JSON value, plus a
// sorted set scored by update time for List ordering. The single SET per
// replace gives readers the required no-torn-writes guarantee; interleaved
// writers for the same conversation are excluded by the orchestrator's
// one-turn-in-flight contract.
type Redis struct {
	client *redis.Client
	logger log.Logger
	now    func() time.Time
}

// NewRedis creates a Redis-backed store and verifies connectivity.
func NewRedis(client *redis.Client, logger log.Logger) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{client: client, logger: logger, now: time.Now}, nil
}

func redisKey(id uuid.UUID) string {
	return redisKeyPrefix + id.String()
}

// write stores the conversation document and refreshes its index score.
func (r *Redis) write(ctx context.Context, convo Conversation) error {
	raw, err := json.Marshal(convo)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(convo.ID), raw, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{
			Score:  float64(convo.UpdatedAt.UnixMilli()),
			Member: convo.ID.String(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

// Create allocates an empty conversation.
func (r *Redis) Create(ctx context.Context) (Conversation, error) {
	now := r.now()
	convo := Conversation{
		ID:        uuid.New(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.write(ctx, convo); err != nil {
		return Conversation{}, err
	}
	return convo, nil
}

// Get returns the conversation with the given id.
func (r *Redis) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	raw, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("load conversation: %w", err)
	}

	var convo Conversation
	if err := json.Unmarshal(raw, &convo); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return convo, nil
}

// ReplaceMessages swaps the message list and rewrites the document.
func (r *Redis) ReplaceMessages(ctx context.Context, id uuid.UUID, messages []Message) error {
	convo, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	convo.Messages = CloneMessages(messages)
	convo.Title = DeriveTitle(messages)
	convo.UpdatedAt = r.now()
	return r.write(ctx, convo)
}

// Delete removes the conversation and its index entry.
func (r *Redis) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := r.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	if err := r.client.ZRem(ctx, redisIndexKey, id.String()).Err(); err != nil {
		// Index repair happens on the next List; not worth failing the delete.
		r.logger.Warn("failed to remove conversation from index", "id", id, "error", err)
	}
	return nil
}

// List returns all conversations, most recently updated first.
func (r *Redis) List(ctx context.Context) ([]Conversation, error) {
	ids, err := r.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversation index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]Conversation, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			r.logger.Warn("skipping malformed index entry", "member", raw)
			continue
		}
		convo, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Stale index entry left by a partial delete; drop it.
			_ = r.client.ZRem(ctx, redisIndexKey, raw).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, convo)
	}
	return out, nil
}
