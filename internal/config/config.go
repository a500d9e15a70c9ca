// Package config provides configuration management for the request signature service.
// It handles loading configuration from environment variables with sensible defaults
// and validates the configuration to ensure the service starts safely.
//
// Signing clients and their keys are not configured through the environment but
// through an options file (JSON or YAML) referenced by SIGNATURE_CLIENTS_FILE.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FORMAT: "json" or "console" (default: console)
//   - TLS_CERT / TLS_KEY: Certificate and key files; TLS is enabled when both are set
//   - METRICS_ENABLED: Expose Prometheus metrics on /metrics (default: true)
//
// Signature Validation:
//   - SIGNATURE_DISABLED: Turn validation off; requests are reported as Disabled (default: false)
//   - SIGNATURE_CLIENTS_FILE: Options file with the signing clients (required unless disabled)
//   - SIGNATURE_WATCH_CLIENTS: Reload the options file when it changes (default: true)
//   - SIGNATURE_HEADER_NAME: Overrides the header name of the options file
//   - SIGNATURE_CLOCK_SKEW: Overrides the clock skew of the options file (e.g. "300s", "5m")
//   - SIGNATURE_TRUST_FORWARDED: Use X-Forwarded-Proto/Host when rebuilding the request URL (default: false)
//   - SIGNATURE_REQUIRED: Reject unsigned requests on /api routes (default: true)
//   - SIGNATURE_ALLOWED_CLIENTS: Comma separated client ids allowed on /api routes (default: all)
//
// Replay Protection:
//   - NONCE_BACKEND: "null", "local", "redis" or "two_tier" (default: local)
//   - NONCE_KEY_PREFIX: Prefix of stored nonce keys (default: nonce-)
//
// Redis Configuration (redis and two_tier nonce backends):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Example usage:
//
//	// Load configuration from environment
//	config := config.Load()
//
//	// Validate configuration
//	if err := config.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
//
//	options, err := config.LoadSignatureOptions(config.SignatureClientsFile)
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"requests-signature/internal/common/errors"
	"requests-signature/internal/nonces"
	"requests-signature/internal/signature"
)

// Config holds all configuration values for the request signature service.
// All string fields correspond to environment variables that can be set to
// override the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port           string // Server port number
	LogLevel       string // Logging level (debug, info, warn, error)
	LogFormat      string // Log encoder (json, console)
	TLSCert        string // TLS certificate file
	TLSKey         string // TLS private key file
	MetricsEnabled bool   // Whether /metrics is served

	// Signature validation
	SignatureDisabled       bool   // Turn validation off entirely
	SignatureClientsFile    string // JSON or YAML options file
	SignatureWatchClients   bool   // Reload the options file on change
	SignatureHeaderName     string // Header name override
	SignatureClockSkew      string // Clock skew override (duration)
	SignatureTrustForwarded bool   // Honour X-Forwarded-* headers
	SignatureRequired       bool   // Reject unsigned /api requests
	SignatureAllowedClients string // Comma separated allowed client ids

	// Replay protection
	NonceBackend   string // null, local, redis, two_tier
	NonceKeyPrefix string // Prefix of stored nonce keys

	// Redis configuration for the distributed nonce store
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size
}

// Load creates a new Config instance with values loaded from environment variables.
// If an environment variable is not set, the corresponding default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		TLSCert:        getEnv("TLS_CERT", ""),
		TLSKey:         getEnv("TLS_KEY", ""),
		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),

		// Signature configuration
		SignatureDisabled:       getBoolEnv("SIGNATURE_DISABLED", false),
		SignatureClientsFile:    getEnv("SIGNATURE_CLIENTS_FILE", ""),
		SignatureWatchClients:   getBoolEnv("SIGNATURE_WATCH_CLIENTS", true),
		SignatureHeaderName:     getEnv("SIGNATURE_HEADER_NAME", ""),
		SignatureClockSkew:      getEnv("SIGNATURE_CLOCK_SKEW", ""),
		SignatureTrustForwarded: getBoolEnv("SIGNATURE_TRUST_FORWARDED", false),
		SignatureRequired:       getBoolEnv("SIGNATURE_REQUIRED", true),
		SignatureAllowedClients: getEnv("SIGNATURE_ALLOWED_CLIENTS", ""),

		// Nonce configuration
		NonceBackend:   getEnv("NONCE_BACKEND", string(nonces.TypeLocal)),
		NonceKeyPrefix: getEnv("NONCE_KEY_PREFIX", nonces.DefaultKeyPrefix),

		// Redis configuration
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
//
// This function accepts common boolean representations:
//   - "true", "1", "t", "TRUE", "True" -> true
//   - "false", "0", "f", "FALSE", "False" -> false
//   - Any other value or parsing error -> returns defaultValue
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid.
//
// This method checks:
//   - Field format validation (ports, durations, numbers)
//   - The options file is set unless validation is disabled
//   - Redis settings when a Redis backed nonce store is selected
//   - TLS certificate and key are set together
func (c *Config) Validate() error {
	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return errors.ConfigError("PORT must be a valid port number between 1 and 65535")
	}

	if !c.SignatureDisabled && c.SignatureClientsFile == "" {
		return errors.ConfigError("SIGNATURE_CLIENTS_FILE is required unless SIGNATURE_DISABLED is set")
	}

	if c.SignatureClockSkew != "" {
		if _, err := c.ClockSkew(); err != nil {
			return err
		}
	}

	// Validate nonce backend
	switch nonces.Type(c.NonceBackend) {
	case nonces.TypeNull, nonces.TypeLocal:
	case nonces.TypeRedis, nonces.TypeTwoTier:
		if c.RedisAddress == "" {
			return errors.ConfigError("REDIS_ADDRESS is required for the %s nonce backend", c.NonceBackend)
		}
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return errors.ConfigError("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return errors.ConfigError("REDIS_POOL_SIZE must be a positive number")
		}
	default:
		return errors.ConfigError("NONCE_BACKEND must be 'null', 'local', 'redis' or 'two_tier'")
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.ConfigError("TLS_CERT and TLS_KEY must be set together")
	}

	return nil
}

// ClockSkew parses SIGNATURE_CLOCK_SKEW. Plain numbers are seconds.
func (c *Config) ClockSkew() (time.Duration, error) {
	if seconds, err := strconv.Atoi(c.SignatureClockSkew); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, nil
	}

	skew, err := time.ParseDuration(c.SignatureClockSkew)
	if err != nil || skew < time.Second {
		return 0, errors.ConfigError("SIGNATURE_CLOCK_SKEW must be a positive duration (e.g., '300s', '5m')")
	}
	return skew, nil
}

// AllowedClientIDs splits SIGNATURE_ALLOWED_CLIENTS.
func (c *Config) AllowedClientIDs() []string {
	var ids []string
	for _, id := range strings.Split(c.SignatureAllowedClients, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// RedisDBNumber returns REDIS_DB as a number.
func (c *Config) RedisDBNumber() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as a number.
func (c *Config) RedisPoolSizeNumber() int {
	size, _ := strconv.Atoi(c.RedisPoolSize)
	return size
}

// LoadSignatureOptions loads the options file, if any, and applies the
// environment overrides. With validation disabled and no file, a disabled
// configuration is returned.
func (c *Config) LoadSignatureOptions(path string) (*signature.Options, error) {
	options := &signature.Options{}

	if path != "" {
		loaded, err := signature.LoadOptionsFile(path)
		if err != nil && !c.SignatureDisabled {
			return nil, err
		}
		if loaded != nil {
			options = loaded
		}
	}

	if c.SignatureDisabled {
		options.Disabled = true
	}
	if c.SignatureHeaderName != "" {
		options.HeaderName = c.SignatureHeaderName
	}
	if c.SignatureClockSkew != "" {
		skew, err := c.ClockSkew()
		if err != nil {
			return nil, err
		}
		options.ClockSkewSeconds = int(skew / time.Second)
	}
	if c.SignatureTrustForwarded {
		options.TrustForwardedHeaders = true
	}

	options.SetDefaults()
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}
