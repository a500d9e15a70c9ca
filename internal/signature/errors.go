package signature

import (
	"requests-signature/internal/common/errors"
)

// ResultError converts a failed validation result into an authentication error
// carrying the status and client id. It returns nil for OK results.
func ResultError(result ValidationResult) error {
	if result.OK() {
		return nil
	}

	if result.Status == StatusInternalError {
		return errors.InternalError("request signature validation failed", nil).
			WithContext("status", result.Status.String())
	}

	err := errors.AuthError("invalid request signature").
		WithContext("status", result.Status.String())
	if result.ClientID != "" {
		err = err.WithContext("client_id", result.ClientID)
	}
	return err
}
