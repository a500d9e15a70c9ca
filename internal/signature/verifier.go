package signature

import (
	"context"
	"crypto/hmac"
	"fmt"
	"net/http"
	"strings"
	"time"

	"requests-signature/internal/common/logging"
)

// Observer is notified of every validation outcome, e.g. to record metrics.
type Observer interface {
	ObserveValidation(result ValidationResult, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveValidation(ValidationResult, time.Duration) {}

// Validator runs the request signature decision procedure against the
// registry's active snapshot. It is safe for concurrent use.
type Validator struct {
	registry *Registry
	nonces   NonceRepository
	clock    Clock
	logger   logging.Logger
	observer Observer
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithNonceRepository sets the replay guard. Defaults to NullNonceRepository.
func WithNonceRepository(nonces NonceRepository) ValidatorOption {
	return func(v *Validator) { v.nonces = nonces }
}

// WithClock sets the time source. Defaults to SystemClock.
func WithClock(clock Clock) ValidatorOption {
	return func(v *Validator) { v.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = logger }
}

// WithObserver sets the outcome observer.
func WithObserver(observer Observer) ValidatorOption {
	return func(v *Validator) { v.observer = observer }
}

// NewValidator creates a Validator reading its configuration from registry.
func NewValidator(registry *Registry, opts ...ValidatorOption) *Validator {
	v := &Validator{
		registry: registry,
		nonces:   NullNonceRepository{},
		clock:    SystemClock,
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.logger == nil {
		v.logger = logging.GetGlobalLogger()
	}
	v.logger = v.logger.WithFields(logging.Field{Key: "component", Value: "signature_validator"})

	return v
}

// Validate checks the signature of r. Expected failures are reported through
// the result status, never as errors; unexpected ones become StatusInternalError.
// When a Body component is used the body is buffered and left re-readable.
func (v *Validator) Validate(ctx context.Context, r *http.Request) (result ValidationResult) {
	started := time.Now()
	serverTimestamp := v.clock.Now().Unix()

	defer func() {
		if rec := recover(); rec != nil {
			result = v.internalError(ctx, ValidationResult{ServerTimestamp: serverTimestamp}, fmt.Errorf("panic during validation: %v", rec))
		}
		v.observer.ObserveValidation(result, time.Since(started))
	}()

	return v.validate(ctx, r, serverTimestamp)
}

func (v *Validator) validate(ctx context.Context, r *http.Request, serverTimestamp int64) ValidationResult {
	snapshot := v.registry.Snapshot()

	if snapshot.Disabled {
		result := ValidationResult{Status: StatusDisabled, ServerTimestamp: serverTimestamp}
		v.logger.WithContext(ctx).Info("Request signature validation ignored",
			logging.Field{Key: "status", Value: result.Status.String()},
		)
		return result
	}

	headerValue := strings.TrimSpace(r.Header.Get(snapshot.HeaderName))
	if headerValue == "" {
		return v.failed(ctx, ValidationResult{Status: StatusHeaderNotFound, ServerTimestamp: serverTimestamp})
	}

	parsed, err := snapshot.codec.Parse(headerValue)
	if err != nil {
		return v.failed(ctx, ValidationResult{
			Status:          StatusHeaderParseError,
			ServerTimestamp: serverTimestamp,
			SignatureValue:  headerValue,
		})
	}

	client, ok := snapshot.Lookup(parsed.ClientID)
	if !ok {
		return v.failed(ctx, ValidationResult{
			Status:          StatusClientIDNotFound,
			ServerTimestamp: serverTimestamp,
			ClientID:        parsed.ClientID,
			SignatureValue:  headerValue,
		})
	}

	base := ValidationResult{
		ServerTimestamp: serverTimestamp,
		ClientID:        client.ID,
		SignatureValue:  headerValue,
	}

	// Replay check runs before the signature is recomputed.
	seen, err := v.nonces.Exists(ctx, client.ID, parsed.Nonce)
	if err != nil {
		return v.internalError(ctx, base, fmt.Errorf("nonce lookup failed: %w", err))
	}
	if seen {
		base.Status = StatusNonceHasBeenUsedBefore
		return v.failed(ctx, base)
	}

	if abs(serverTimestamp-parsed.Timestamp) > int64(snapshot.ClockSkew/time.Second) {
		base.Status = StatusTimestampIsOff
		return v.failed(ctx, base)
	}

	sc := &SigningContext{
		Method:    r.Method,
		URL:       RequestURL(r, snapshot.TrustForwardedHeaders),
		Header:    r.Header,
		Nonce:     parsed.Nonce,
		Timestamp: parsed.Timestamp,
		ClientID:  client.ID,
	}

	if containsComponent(client.Components, ComponentBody) {
		body, err := PreserveRequestBody(r)
		if err != nil {
			return v.internalError(ctx, base, fmt.Errorf("failed to read request body: %w", err))
		}
		sc.Body = body
	}

	computed, err := snapshot.signer.Sign(client.Components, sc, client.key)
	if err != nil {
		return v.internalError(ctx, base, fmt.Errorf("failed to compute signature: %w", err))
	}
	base.ComputedSignature = computed

	if !hmac.Equal([]byte(computed), []byte(parsed.Signature)) {
		base.Status = StatusSignatureDoesntMatch
		return v.failed(ctx, base)
	}

	// The nonce is only consumed once the signature is known to be valid. It must
	// outlive the whole window in which the timestamp is accepted, which for a
	// timestamp ahead of the server clock ends later than now+skew.
	added, err := v.nonces.Add(ctx, client.ID, parsed.Nonce, nonceTTL(snapshot.ClockSkew, parsed.Timestamp, serverTimestamp))
	if err != nil {
		return v.internalError(ctx, base, fmt.Errorf("failed to record nonce: %w", err))
	}
	if !added {
		base.Status = StatusNonceHasBeenUsedBefore
		return v.failed(ctx, base)
	}

	base.Status = StatusOK
	v.logger.WithContext(ctx).Debug("Request signature validation succeeded",
		logging.Field{Key: "status", Value: base.Status.String()},
		logging.Field{Key: "client_id", Value: base.ClientID},
	)
	return base
}

func (v *Validator) failed(ctx context.Context, result ValidationResult) ValidationResult {
	v.logger.WithContext(ctx).Warn("Request signature validation failed",
		logging.Field{Key: "status", Value: result.Status.String()},
		logging.Field{Key: "server_timestamp", Value: result.ServerTimestamp},
		logging.Field{Key: "signature", Value: result.SignatureValue},
		logging.Field{Key: "client_id", Value: result.ClientID},
		logging.Field{Key: "computed_signature", Value: result.ComputedSignature},
	)
	return result
}

func (v *Validator) internalError(ctx context.Context, result ValidationResult, err error) ValidationResult {
	result.Status = StatusInternalError
	v.logger.WithContext(ctx).Error("Request signature validation error", err,
		logging.Field{Key: "status", Value: result.Status.String()},
		logging.Field{Key: "server_timestamp", Value: result.ServerTimestamp},
		logging.Field{Key: "signature", Value: result.SignatureValue},
		logging.Field{Key: "client_id", Value: result.ClientID},
	)
	return result
}

func nonceTTL(skew time.Duration, timestamp, serverTimestamp int64) time.Duration {
	if ahead := timestamp - serverTimestamp; ahead > 0 {
		return skew + time.Duration(ahead)*time.Second
	}
	return skew
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
