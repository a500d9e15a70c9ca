package signature

import (
	"strings"
	"sync/atomic"
	"time"

	"requests-signature/internal/common/errors"
)

// Client is a registered signing client as seen at request time.
type Client struct {
	ID         string
	Components []Component
	key        []byte
}

// Snapshot is an immutable, validated view of Options. Validations in flight keep
// the snapshot they started with.
type Snapshot struct {
	Disabled              bool
	HeaderName            string
	Algorithm             string
	ClockSkew             time.Duration
	TrustForwardedHeaders bool

	codec   *HeaderCodec
	signer  *RequestSigner
	clients map[string]*Client
}

// Registry holds the current Snapshot and swaps it atomically on reload.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry validates options and installs them as the first snapshot.
func NewRegistry(options Options) (*Registry, error) {
	snapshot, err := NewSnapshot(options)
	if err != nil {
		return nil, err
	}

	r := &Registry{}
	r.current.Store(snapshot)
	return r, nil
}

// Reload installs new options. On error the previous snapshot stays active.
func (r *Registry) Reload(options Options) error {
	snapshot, err := NewSnapshot(options)
	if err != nil {
		return err
	}
	r.current.Store(snapshot)
	return nil
}

// Snapshot returns the active snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// NewSnapshot applies defaults to a copy of options, validates it and builds the lookup table.
func NewSnapshot(options Options) (*Snapshot, error) {
	options.SetDefaults()

	if err := options.Validate(); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Disabled:              options.Disabled,
		HeaderName:            options.HeaderName,
		Algorithm:             strings.ToLower(options.Algorithm),
		ClockSkew:             options.ClockSkew(),
		TrustForwardedHeaders: options.TrustForwardedHeaders,
		clients:               make(map[string]*Client, len(options.Clients)),
	}

	if options.Disabled {
		return snapshot, nil
	}

	codec, err := NewHeaderCodec(options.HeaderTemplate)
	if err != nil {
		return nil, err
	}
	snapshot.codec = codec

	signer, err := NewRequestSigner(options.Algorithm)
	if err != nil {
		return nil, err
	}
	snapshot.signer = signer

	for _, client := range options.Clients {
		key, err := client.ResolveKey()
		if err != nil {
			return nil, err
		}
		components := make([]Component, len(client.Components))
		copy(components, client.Components)

		snapshot.clients[client.ClientID] = &Client{
			ID:         client.ClientID,
			Components: components,
			key:        []byte(key),
		}
	}

	if len(snapshot.clients) == 0 {
		return nil, errors.ConfigError("no clients have been defined")
	}

	return snapshot, nil
}

// Lookup finds a client by exact id.
func (s *Snapshot) Lookup(clientID string) (*Client, bool) {
	client, ok := s.clients[clientID]
	return client, ok
}

// ClientCount returns the number of registered clients.
func (s *Snapshot) ClientCount() int {
	return len(s.clients)
}

// Codec returns the header codec of the snapshot.
func (s *Snapshot) Codec() *HeaderCodec {
	return s.codec
}
