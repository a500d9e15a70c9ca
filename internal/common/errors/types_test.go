package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "basic error",
			appError: ConfigError("no clients defined"),
			want:     "config: no clients defined",
		},
		{
			name:     "error with cause",
			appError: ConnectionError("nonce store unavailable", errors.New("dial tcp: refused")),
			want:     "connection: nonce store unavailable: cause=dial tcp: refused",
		},
		{
			name: "error with sorted context",
			appError: ValidationError("unknown component").
				WithContext("name", "Bogus").
				WithContext("client", "C1"),
			want: "validation: unknown component: context={client=C1, name=Bogus}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := InternalError("wrapped", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("loading clients: %w", ConfigError("missing key for client %s", "C1"))

	assert.True(t, IsType(err, ErrTypeConfig))
	assert.False(t, IsType(err, ErrTypeAuth))
	assert.False(t, IsType(errors.New("plain"), ErrTypeConfig))
	assert.False(t, IsType(nil, ErrTypeConfig))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrTypeAuth, GetType(AuthError("signature mismatch")))
	assert.Equal(t, ErrTypeConfig, GetType(WrapConfigError("bad file", errors.New("eof"))))
}
