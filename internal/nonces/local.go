package nonces

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalBackend keeps nonces in process memory using patrickmn/go-cache.
// Replays are only detected by the instance that saw the original request.
type LocalBackend struct {
	cache *gocache.Cache
}

// NewLocalBackend creates an in-memory backend. Expired nonces are purged every cleanupInterval.
func NewLocalBackend(cleanupInterval time.Duration) *LocalBackend {
	return &LocalBackend{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Exists checks if a key exists and has not expired
func (l *LocalBackend) Exists(_ context.Context, key string) (bool, error) {
	_, found := l.cache.Get(key)
	return found, nil
}

// SetNX stores key unless it is already present. go-cache's Add holds the
// cache lock for the whole check-and-set.
func (l *LocalBackend) SetNX(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := l.cache.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Len returns the number of stored nonces, including expired ones not yet purged.
func (l *LocalBackend) Len() int {
	return l.cache.ItemCount()
}
