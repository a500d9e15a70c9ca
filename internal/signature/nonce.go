package signature

import (
	"context"
	"time"
)

// NonceRepository is the replay guard. Nonces are scoped per client id.
//
// Add must be a check-and-set: it returns false when the nonce was already
// recorded, which the validator reports as a replay.
type NonceRepository interface {
	Exists(ctx context.Context, clientID, nonce string) (bool, error)
	Add(ctx context.Context, clientID, nonce string, ttl time.Duration) (bool, error)
}

// NullNonceRepository never remembers anything. Replay protection is off.
type NullNonceRepository struct{}

// Exists implements NonceRepository.
func (NullNonceRepository) Exists(context.Context, string, string) (bool, error) {
	return false, nil
}

// Add implements NonceRepository.
func (NullNonceRepository) Add(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns UTC wall-clock time.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
