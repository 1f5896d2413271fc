package feedback

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"newsrec/internal/config"
	"newsrec/internal/domain"
)

// RedisStore appends feedback documents to a Redis list.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	key := cfg.Key
	if key == "" {
		key = "feedback"
	}
	return &RedisStore{client: client, key: key}, nil
}

// Name returns the identifier of this store implementation.
func (s *RedisStore) Name() string { return "redis" }

// Insert pushes the raw record onto the tail of the list.
func (s *RedisStore) Insert(ctx context.Context, record domain.FeedbackRecord) error {
	if err := s.client.RPush(ctx, s.key, []byte(record)).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", s.key, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}
