package nonces

import (
	"context"
	"time"

	"requests-signature/internal/redis"
)

// RedisBackend keeps nonces in Redis, shared by every instance of the service.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a backend on an already connected client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Exists checks if a key exists in Redis
func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	return r.client.Exists(ctx, key)
}

// SetNX stores key with SET NX and the given expiry.
func (r *RedisBackend) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, 1, ttl)
}
