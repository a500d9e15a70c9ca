package client

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

// ClockObserver is told when the transport corrects its clock offset.
type ClockObserver interface {
	ObserveClockCorrection(offset time.Duration)
}

// Transport is an http.RoundTripper that signs every outgoing request. When the
// server rejects a request with 401 or 403 and its Date header shows a clock
// difference beyond the allowed skew, the difference is kept as a persistent
// offset and the request is signed again and retried once.
type Transport struct {
	base     http.RoundTripper
	options  Options
	signer   *signature.RequestSigner
	codec    *signature.HeaderCodec
	clock    signature.Clock
	random   io.Reader
	logger   logging.Logger
	observer ClockObserver

	// offset is added to the local clock, in seconds.
	offset atomic.Int64
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBase sets the underlying RoundTripper. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) { t.base = base }
}

// WithClock sets the time source used for timestamps.
func WithClock(clock signature.Clock) TransportOption {
	return func(t *Transport) { t.clock = clock }
}

// WithRandom sets the nonce entropy source. Defaults to crypto/rand.
func WithRandom(random io.Reader) TransportOption {
	return func(t *Transport) { t.random = random }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) TransportOption {
	return func(t *Transport) { t.logger = logger }
}

// WithClockObserver reports clock corrections, e.g. to metrics.
func WithClockObserver(observer ClockObserver) TransportOption {
	return func(t *Transport) { t.observer = observer }
}

// NewTransport validates options and creates a signing transport.
func NewTransport(options Options, opts ...TransportOption) (*Transport, error) {
	options.SetDefaults()
	if err := options.Validate(); err != nil {
		return nil, err
	}

	signer, err := signature.NewRequestSigner(options.Algorithm)
	if err != nil {
		return nil, err
	}

	codec, err := signature.NewHeaderCodec(options.HeaderTemplate)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		base:    http.DefaultTransport,
		options: options,
		signer:  signer,
		codec:   codec,
		clock:   signature.SystemClock,
		random:  rand.Reader,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = logging.GetGlobalLogger()
	}
	t.logger = t.logger.WithFields(logging.Field{Key: "component", Value: "signature_client"}, logging.Field{Key: "client_id", Value: options.ClientID})

	return t, nil
}

// NewClient returns an http.Client that signs its requests.
func NewClient(options Options, opts ...TransportOption) (*http.Client, error) {
	t, err := NewTransport(options, opts...)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: t}, nil
}

// ClockOffset returns the correction currently applied to the local clock.
func (t *Transport) ClockOffset() time.Duration {
	return time.Duration(t.offset.Load()) * time.Second
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// The body is buffered so it can be signed and sent again on retry.
	body, err := readBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	signed, err := t.sign(req, body)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(signed)
	if err != nil || t.options.DisableClockSkewCorrection {
		return resp, err
	}

	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	if !t.correctClock(resp) {
		return resp, nil
	}

	retry, err := t.sign(req, body)
	if err != nil {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return t.base.RoundTrip(retry)
}

// sign returns a signed copy of req carrying body.
func (t *Transport) sign(req *http.Request, body []byte) (*http.Request, error) {
	nonce, err := t.nonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	signed := req.Clone(req.Context())
	if body != nil {
		signed.Body = io.NopCloser(bytes.NewReader(body))
		signed.ContentLength = int64(len(body))
		signed.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	method := signed.Method
	if method == "" {
		method = http.MethodGet
	}

	// The Host field overrides the URL host on the wire, so it is what the server sees.
	u := *signed.URL
	if signed.Host != "" {
		u.Host = signed.Host
	}

	timestamp := t.clock.Now().Unix() + t.offset.Load()
	sc := &signature.SigningContext{
		Method:    method,
		URL:       &u,
		Header:    signed.Header,
		Nonce:     nonce,
		Timestamp: timestamp,
		ClientID:  t.options.ClientID,
		Body:      body,
	}

	digest, err := t.signer.Sign(t.options.Components, sc, []byte(t.options.Key))
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	signed.Header.Set(t.options.HeaderName, t.codec.Format(signature.HeaderValue{
		ClientID:  t.options.ClientID,
		Nonce:     nonce,
		Timestamp: timestamp,
		Signature: digest,
	}))

	return signed, nil
}

// correctClock updates the offset from the response Date header. It reports
// whether the clock was off by more than the allowed skew.
func (t *Transport) correctClock(resp *http.Response) bool {
	date := resp.Header.Get("Date")
	if date == "" {
		return false
	}

	serverTime, err := http.ParseTime(date)
	if err != nil {
		t.logger.Debug("Ignoring unparsable Date header", logging.Field{Key: "date", Value: date})
		return false
	}

	local := t.clock.Now().Unix()
	perceived := local + t.offset.Load()
	delta := serverTime.Unix() - perceived
	if delta < 0 {
		delta = -delta
	}
	if delta <= int64(t.options.ClockSkew/time.Second) {
		return false
	}

	offset := serverTime.Unix() - local
	t.offset.Store(offset)

	t.logger.Warn("Server clock differs beyond allowed skew, retrying with corrected timestamp",
		logging.Field{Key: "offset_seconds", Value: offset},
		logging.Field{Key: "status", Value: resp.StatusCode},
	)
	if t.observer != nil {
		t.observer.ObserveClockCorrection(time.Duration(offset) * time.Second)
	}
	return true
}

func (t *Transport) nonce() (string, error) {
	buf := make([]byte, t.options.NonceSize)
	if _, err := io.ReadFull(t.random, buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}
