package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores sessions as expiring redis strings.
type RedisBackend struct {
	client redis.Cmdable
	prefix string
}

// NewRedisBackend creates a RedisBackend. An empty prefix defaults to "drivedesk:session:".
func NewRedisBackend(client redis.Cmdable, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "drivedesk:session:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(id string) string {
	return b.prefix + id
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, id string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return val, nil
}

// Set implements Backend.
func (b *RedisBackend) Set(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, b.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
