package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"sort"
	"strings"

	"requests-signature/internal/common/errors"
)

// DefaultAlgorithm is the MAC used when none is configured.
const DefaultAlgorithm = "hmac-sha256"

// BodySigner computes the encoded signature of canonical source bytes.
type BodySigner interface {
	Sign(source, key []byte) string
}

// HMACSigner signs with HMAC over a pluggable hash and base64 (padded) encoding.
type HMACSigner struct {
	newHash func() hash.Hash
}

// NewHMACSigner returns a signer for the given hash constructor.
func NewHMACSigner(newHash func() hash.Hash) *HMACSigner {
	return &HMACSigner{newHash: newHash}
}

// Sign implements BodySigner. It is deterministic and safe for concurrent use.
func (s *HMACSigner) Sign(source, key []byte) string {
	mac := hmac.New(s.newHash, key)
	mac.Write(source)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var algorithms = map[string]func() BodySigner{
	"hmac-sha1":   func() BodySigner { return NewHMACSigner(sha1.New) },
	"hmac-sha256": func() BodySigner { return NewHMACSigner(sha256.New) },
	"hmac-sha512": func() BodySigner { return NewHMACSigner(sha512.New) },
}

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSigner creates the BodySigner for algorithm. An empty name
// selects DefaultAlgorithm.
func NewSigner(algorithm string) (BodySigner, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	factory, ok := algorithms[strings.ToLower(algorithm)]
	if !ok {
		return nil, errors.ConfigError("unsupported signature algorithm: %s", algorithm)
	}
	return factory(), nil
}

// RequestSigner combines a SourceBuilder and a BodySigner.
type RequestSigner struct {
	Builder SourceBuilder
	Signer  BodySigner
}

// NewRequestSigner creates a RequestSigner with the default builder and the named algorithm.
func NewRequestSigner(algorithm string) (*RequestSigner, error) {
	signer, err := NewSigner(algorithm)
	if err != nil {
		return nil, err
	}
	return &RequestSigner{Builder: DefaultSourceBuilder{}, Signer: signer}, nil
}

// Sign canonicalizes sc with components and signs the result with key.
func (rs *RequestSigner) Sign(components []Component, sc *SigningContext, key []byte) (string, error) {
	source, err := rs.Builder.Build(components, sc)
	if err != nil {
		return "", err
	}
	return rs.Signer.Sign(source, key), nil
}
