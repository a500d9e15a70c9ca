package signature

import (
	"context"
	"fmt"
)

// Status is the outcome of a signature validation.
type Status int

const (
	// StatusDisabled means validation is turned off. It never means "verified".
	StatusDisabled Status = iota
	// StatusOK means the signature is valid and the nonce has been recorded.
	StatusOK
	// StatusHeaderNotFound means the signature header is absent or blank.
	StatusHeaderNotFound
	// StatusHeaderParseError means the header does not match the grammar.
	StatusHeaderParseError
	// StatusClientIDNotFound means no client is registered under the header's client id.
	StatusClientIDNotFound
	// StatusNonceHasBeenUsedBefore means the nonce was already accepted. Possible replay.
	StatusNonceHasBeenUsedBefore
	// StatusTimestampIsOff means the timestamp is outside the allowed clock skew.
	StatusTimestampIsOff
	// StatusSignatureDoesntMatch means the recomputed signature differs.
	StatusSignatureDoesntMatch
	// StatusInternalError means an unexpected failure interrupted validation.
	StatusInternalError
)

var statusNames = [...]string{
	StatusDisabled:               "Disabled",
	StatusOK:                     "OK",
	StatusHeaderNotFound:         "HeaderNotFound",
	StatusHeaderParseError:       "HeaderParseError",
	StatusClientIDNotFound:       "ClientIdNotFound",
	StatusNonceHasBeenUsedBefore: "NonceHasBeenUsedBefore",
	StatusTimestampIsOff:         "TimestampIsOff",
	StatusSignatureDoesntMatch:   "SignatureDoesntMatch",
	StatusInternalError:          "InternalError",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidationResult is the immutable outcome of one validation. ServerTimestamp
// is always set so clients can correct their clock.
type ValidationResult struct {
	Status            Status `json:"status"`
	ServerTimestamp   int64  `json:"server_timestamp"`
	ClientID          string `json:"client_id,omitempty"`
	SignatureValue    string `json:"signature_value,omitempty"`
	ComputedSignature string `json:"computed_signature,omitempty"`
}

// OK reports whether the request carried a valid signature.
func (r ValidationResult) OK() bool {
	return r.Status == StatusOK
}

// Redacted drops the computed signature, for responses returned to untrusted callers.
func (r ValidationResult) Redacted() ValidationResult {
	r.ComputedSignature = ""
	return r
}

type resultContextKey struct{}

// WithResult attaches a validation result to ctx.
func WithResult(ctx context.Context, result ValidationResult) context.Context {
	return context.WithValue(ctx, resultContextKey{}, result)
}

// ResultFromContext returns the validation result attached by WithResult.
func ResultFromContext(ctx context.Context) (ValidationResult, bool) {
	result, ok := ctx.Value(resultContextKey{}).(ValidationResult)
	return result, ok
}
