package signature

import (
	"net/http"
)

// AuthStrategy exposes the Validator as an authentication scheme. A request
// that carries no signature, or hits a disabled validator, yields no
// principal and no error so other schemes can take over.
type AuthStrategy struct {
	validator *Validator
}

// NewAuthStrategy creates a signature auth strategy backed by validator.
func NewAuthStrategy(validator *Validator) *AuthStrategy {
	return &AuthStrategy{validator: validator}
}

// GetType returns the authentication type identifier
func (s *AuthStrategy) GetType() string {
	return "signature"
}

// Authenticate validates r and returns the client id as principal when the
// signature is valid. The result is also returned so callers can attach it to
// the request context.
func (s *AuthStrategy) Authenticate(r *http.Request) (principal string, result ValidationResult, err error) {
	result, ok := ResultFromContext(r.Context())
	if !ok {
		result = s.validator.Validate(r.Context(), r)
	}

	switch result.Status {
	case StatusDisabled, StatusHeaderNotFound:
		return "", result, nil
	case StatusOK:
		return result.ClientID, result, nil
	default:
		return "", result, ResultError(result)
	}
}
