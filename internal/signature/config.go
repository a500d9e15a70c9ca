package signature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"requests-signature/internal/common/errors"
)

// DefaultClockSkewSeconds is the default tolerance, in either direction, between
// a client's timestamp and the server clock.
const DefaultClockSkewSeconds = 300

// Options is the complete request signature validation configuration
type Options struct {
	// Disabled turns validation off entirely. Requests are reported as Disabled, never as OK.
	Disabled bool `json:"disabled" yaml:"disabled"`

	// HeaderName is the HTTP header carrying the signature
	HeaderName string `json:"header_name" yaml:"header_name"`

	// HeaderTemplate is the header layout, using {ClientId}, {Nonce}, {Timestamp}
	// and {SignatureBody} tokens
	HeaderTemplate string `json:"header_template" yaml:"header_template"`

	// ClockSkewSeconds is the allowed lag in either direction (past/future). Zero means
	// DefaultClockSkewSeconds. Also the minimum nonce TTL.
	ClockSkewSeconds int `json:"clock_skew_seconds" yaml:"clock_skew_seconds"`

	// Algorithm selects the MAC. Options: "hmac-sha256" (default), "hmac-sha1", "hmac-sha512"
	Algorithm string `json:"algorithm" yaml:"algorithm"`

	// TrustForwardedHeaders makes the canonical scheme and host come from
	// X-Forwarded-Proto / X-Forwarded-Host when present
	TrustForwardedHeaders bool `json:"trust_forwarded_headers" yaml:"trust_forwarded_headers"`

	// Clients are the registered signing clients
	Clients []ClientOptions `json:"clients" yaml:"clients"`
}

// ClientOptions registers one signing client
type ClientOptions struct {
	// ClientID is matched ordinally against the header's client id
	ClientID string `json:"client_id" yaml:"client_id"`

	// Key is the shared secret. Ignored when KeySource is set.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// KeySource points at the shared secret. Format: "type:value" where type can be:
	//   - "env:VAR_NAME" - from environment variable
	//   - "static:value" - direct value
	KeySource string `json:"key_source,omitempty" yaml:"key_source,omitempty"`

	// Components is the ordered canonicalization list for this client
	Components []Component `json:"components" yaml:"components"`
}

// SetDefaults applies default values to the configuration
func (o *Options) SetDefaults() {
	if o.HeaderName == "" {
		o.HeaderName = DefaultHeaderName
	}

	if o.HeaderTemplate == "" {
		o.HeaderTemplate = DefaultHeaderTemplate
	}

	if o.ClockSkewSeconds == 0 {
		o.ClockSkewSeconds = DefaultClockSkewSeconds
	}

	if o.Algorithm == "" {
		o.Algorithm = DefaultAlgorithm
	}
}

// ClockSkew returns the configured tolerance as a duration
func (o *Options) ClockSkew() time.Duration {
	return time.Duration(o.ClockSkewSeconds) * time.Second
}

// Validate checks the configuration, reporting every problem at once.
// Nothing is checked when validation is disabled.
func (o *Options) Validate() error {
	if o.Disabled {
		return nil
	}

	var result *multierror.Error

	if strings.TrimSpace(o.HeaderName) == "" {
		result = multierror.Append(result, errors.ConfigError("header name is required"))
	}

	if _, err := NewHeaderCodec(o.HeaderTemplate); err != nil {
		result = multierror.Append(result, err)
	}

	if o.ClockSkewSeconds < 0 {
		result = multierror.Append(result, errors.ConfigError("clock skew must not be negative"))
	}

	if _, err := NewSigner(o.Algorithm); err != nil {
		result = multierror.Append(result, err)
	}

	if len(o.Clients) == 0 {
		result = multierror.Append(result, errors.ConfigError("no clients have been defined"))
	}

	seen := make(map[string]bool, len(o.Clients))
	for i := range o.Clients {
		client := &o.Clients[i]
		if err := client.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("clients[%d]: %w", i, err))
			continue
		}
		if seen[client.ClientID] {
			result = multierror.Append(result, errors.ConfigError("clients[%d]: duplicate client id %s", i, client.ClientID))
		}
		seen[client.ClientID] = true
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.WrapConfigError("invalid request signature options", err)
	}
	return nil
}

// Validate checks that the client has an id, a key and a usable component list
func (c *ClientOptions) Validate() error {
	if c.ClientID == "" {
		return errors.ConfigError("client id is empty")
	}

	if strings.Contains(c.ClientID, ":") || len(c.ClientID) > maxFieldLength {
		return errors.ConfigError("client id %s must not contain ':' or exceed %d characters", c.ClientID, maxFieldLength)
	}

	if _, err := c.ResolveKey(); err != nil {
		return err
	}

	if len(c.Components) == 0 {
		return errors.ConfigError("no signature components for client %s, no signature can be computed", c.ClientID)
	}

	for _, component := range c.Components {
		if !component.Valid() {
			return errors.ConfigError("invalid signature component %s for client %s", component, c.ClientID)
		}
	}

	return nil
}

// ResolveKey returns the client secret from Key or KeySource
func (c *ClientOptions) ResolveKey() (string, error) {
	if c.KeySource == "" {
		if c.Key == "" {
			return "", errors.ConfigError("key is empty for client %s", c.ClientID)
		}
		return c.Key, nil
	}

	sourceType, sourceValue, ok := strings.Cut(c.KeySource, ":")
	if !ok {
		return "", errors.ConfigError("invalid key source format for client %s", c.ClientID)
	}

	switch sourceType {
	case "env":
		key := os.Getenv(sourceValue)
		if key == "" {
			return "", errors.ConfigError("environment variable %s not set for client %s", sourceValue, c.ClientID)
		}
		return key, nil
	case "static":
		if sourceValue == "" {
			return "", errors.ConfigError("key is empty for client %s", c.ClientID)
		}
		return sourceValue, nil
	default:
		return "", errors.ConfigError("unsupported key source type %s for client %s", sourceType, c.ClientID)
	}
}

// LoadOptions parses JSON or YAML options, applies defaults and validates them
func LoadOptions(data []byte, format string) (*Options, error) {
	var options Options

	switch strings.ToLower(format) {
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&options); err != nil {
			return nil, errors.WrapConfigError("failed to parse signature options", err)
		}
	case "yaml", "yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&options); err != nil {
			return nil, errors.WrapConfigError("failed to parse signature options", err)
		}
	default:
		return nil, errors.ConfigError("unsupported options format: %s", format)
	}

	options.SetDefaults()

	if err := options.Validate(); err != nil {
		return nil, err
	}

	return &options, nil
}

// LoadOptionsFile loads options from a .json, .yaml or .yml file
func LoadOptionsFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError("failed to read signature options file", err)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	return LoadOptions(data, format)
}
