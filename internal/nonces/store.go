package nonces

import (
	"context"
	"time"

	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

// Backend is a key store with set-if-absent semantics. Keys expire after their TTL.
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Store implements signature.NonceRepository on top of a Backend. Nonces are
// stored under "<prefix><clientId>:<nonce>" so two clients may use the same value.
type Store struct {
	backend Backend
	prefix  string
	logger  logging.Logger
}

var _ signature.NonceRepository = (*Store)(nil)

// NewStore creates a Store writing keys with prefix.
func NewStore(backend Backend, prefix string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Store{
		backend: backend,
		prefix:  prefix,
		logger:  logger.WithFields(logging.Field{Key: "component", Value: "nonce_store"}),
	}
}

// Key returns the storage key of a nonce.
func (s *Store) Key(clientID, nonce string) string {
	return s.prefix + clientID + ":" + nonce
}

// Exists reports whether the nonce has already been accepted for the client.
func (s *Store) Exists(ctx context.Context, clientID, nonce string) (bool, error) {
	return s.backend.Exists(ctx, s.Key(clientID, nonce))
}

// Add records the nonce for ttl. It returns false when it was already recorded.
func (s *Store) Add(ctx context.Context, clientID, nonce string, ttl time.Duration) (bool, error) {
	added, err := s.backend.SetNX(ctx, s.Key(clientID, nonce), ttl)
	if err != nil {
		s.logger.Error("Failed to record nonce", err, logging.Field{Key: "client_id", Value: clientID})
		return false, err
	}
	return added, nil
}
