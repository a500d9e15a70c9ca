package nonces

import (
	"time"

	"requests-signature/internal/common/errors"
	"requests-signature/internal/common/logging"
	"requests-signature/internal/redis"
	"requests-signature/internal/signature"
)

// Type represents the nonce backend type
type Type string

const (
	TypeNull    Type = "null"
	TypeLocal   Type = "local"
	TypeRedis   Type = "redis"
	TypeTwoTier Type = "two_tier"
)

// DefaultKeyPrefix is prepended to every stored nonce key.
const DefaultKeyPrefix = "nonce-"

// Config holds nonce store configuration
type Config struct {
	Type            Type          `json:"type"`
	KeyPrefix       string        `json:"key_prefix,omitempty"`
	CleanupInterval time.Duration `json:"cleanup_interval,omitempty"`
	RedisClient     *redis.Client `json:"-"`
}

// DefaultConfig returns an in-memory configuration
func DefaultConfig() Config {
	return Config{
		Type:            TypeLocal,
		KeyPrefix:       DefaultKeyPrefix,
		CleanupInterval: time.Minute,
	}
}

// New creates the nonce repository described by config. The null repository
// disables replay protection.
func New(config Config, logger logging.Logger) (signature.NonceRepository, error) {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	switch config.Type {
	case TypeNull:
		return signature.NullNonceRepository{}, nil

	case TypeLocal, "":
		return NewStore(NewLocalBackend(config.CleanupInterval), config.KeyPrefix, logger), nil

	case TypeRedis:
		if config.RedisClient == nil {
			return nil, errors.ConfigError("redis client required for redis nonce store")
		}
		return NewStore(NewRedisBackend(config.RedisClient), config.KeyPrefix, logger), nil

	case TypeTwoTier:
		if config.RedisClient == nil {
			return nil, errors.ConfigError("redis client required for two-tier nonce store")
		}
		backend := NewTwoTierBackend(NewLocalBackend(config.CleanupInterval), NewRedisBackend(config.RedisClient))
		return NewStore(backend, config.KeyPrefix, logger), nil

	default:
		return nil, errors.ConfigError("unknown nonce store type: %s", config.Type)
	}
}
