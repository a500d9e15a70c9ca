package client

import (
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"requests-signature/internal/common/errors"
	"requests-signature/internal/signature"
)

const (
	// DefaultNonceSize is the number of random bytes in a nonce before base64 encoding.
	DefaultNonceSize = 32
	minNonceSize     = 16
	// 48 bytes encode to 64 base64 characters, the longest nonce a server accepts.
	maxNonceSize = 48

	// DefaultClockSkew mirrors the server default.
	DefaultClockSkew = signature.DefaultClockSkewSeconds * time.Second
)

// Options configures the outbound signer
type Options struct {
	// ClientID identifies this client to the server
	ClientID string `json:"client_id" yaml:"client_id"`

	// Key is the shared secret
	Key string `json:"key" yaml:"key"`

	// HeaderName is the header the signature is written to
	HeaderName string `json:"header_name" yaml:"header_name"`

	// HeaderTemplate is the header layout, see signature.DefaultHeaderTemplate
	HeaderTemplate string `json:"header_template" yaml:"header_template"`

	// Algorithm selects the MAC, see signature.NewSigner
	Algorithm string `json:"algorithm" yaml:"algorithm"`

	// Components is the ordered canonicalization list. Must match the server's list for this client.
	Components []signature.Component `json:"components" yaml:"components"`

	// NonceSize is the number of random bytes per nonce (16-48)
	NonceSize int `json:"nonce_size" yaml:"nonce_size"`

	// ClockSkew is the server tolerance. A server clock further away than this triggers a correction.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew"`

	// DisableClockSkewCorrection turns off the single retry on 401/403
	DisableClockSkewCorrection bool `json:"disable_clock_skew_correction" yaml:"disable_clock_skew_correction"`
}

// SetDefaults applies default values to the configuration
func (o *Options) SetDefaults() {
	if o.HeaderName == "" {
		o.HeaderName = signature.DefaultHeaderName
	}

	if o.HeaderTemplate == "" {
		o.HeaderTemplate = signature.DefaultHeaderTemplate
	}

	if o.Algorithm == "" {
		o.Algorithm = signature.DefaultAlgorithm
	}

	if len(o.Components) == 0 {
		o.Components = append([]signature.Component(nil), signature.DefaultComponents...)
	}

	if o.NonceSize == 0 {
		o.NonceSize = DefaultNonceSize
	}

	if o.ClockSkew <= 0 {
		o.ClockSkew = DefaultClockSkew
	}
}

// Validate checks the configuration, reporting every problem at once
func (o *Options) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(o.ClientID) == "" {
		result = multierror.Append(result, errors.ConfigError("missing client id"))
	} else if strings.Contains(o.ClientID, ":") {
		result = multierror.Append(result, errors.ConfigError("client id %s must not contain ':'", o.ClientID))
	}

	if o.Key == "" {
		result = multierror.Append(result, errors.ConfigError("missing key"))
	}

	if strings.TrimSpace(o.HeaderName) == "" {
		result = multierror.Append(result, errors.ConfigError("missing header name"))
	}

	if _, err := signature.NewHeaderCodec(o.HeaderTemplate); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := signature.NewSigner(o.Algorithm); err != nil {
		result = multierror.Append(result, err)
	}

	if len(o.Components) == 0 {
		result = multierror.Append(result, errors.ConfigError("no signature components are defined"))
	}
	for _, component := range o.Components {
		if !component.Valid() {
			result = multierror.Append(result, errors.ConfigError("invalid signature component %s", component))
		}
	}

	if o.NonceSize < minNonceSize || o.NonceSize > maxNonceSize {
		result = multierror.Append(result, errors.ConfigError("nonce size must be between %d and %d bytes", minNonceSize, maxNonceSize))
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.WrapConfigError("invalid request signing options", err)
	}
	return nil
}
