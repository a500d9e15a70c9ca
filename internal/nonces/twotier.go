package nonces

import (
	"context"
	"time"
)

// TwoTierBackend answers replays it has seen locally without a round trip and
// uses Redis as the source of truth.
type TwoTierBackend struct {
	l1 *LocalBackend
	l2 *RedisBackend
}

// NewTwoTierBackend combines a local L1 with a Redis L2.
func NewTwoTierBackend(l1 *LocalBackend, l2 *RedisBackend) *TwoTierBackend {
	return &TwoTierBackend{l1: l1, l2: l2}
}

// Exists checks L1 first, then L2
func (t *TwoTierBackend) Exists(ctx context.Context, key string) (bool, error) {
	if exists, _ := t.l1.Exists(ctx, key); exists {
		return true, nil
	}
	return t.l2.Exists(ctx, key)
}

// SetNX stores in L2 and mirrors successful writes into L1.
func (t *TwoTierBackend) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if exists, _ := t.l1.Exists(ctx, key); exists {
		return false, nil
	}

	added, err := t.l2.SetNX(ctx, key, ttl)
	if err != nil || !added {
		return false, err
	}

	t.l1.SetNX(ctx, key, ttl)
	return true, nil
}
