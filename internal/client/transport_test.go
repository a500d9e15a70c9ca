package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requests-signature/internal/common/errors"
	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

const (
	testClientID = "billing"
	testKey      = "s3cr3t"
)

type testServer struct {
	*httptest.Server
	hits     atomic.Int32
	mu       sync.Mutex
	statuses []signature.Status
}

// newTestServer validates every request with a real Validator and echoes the body.
func newTestServer(t *testing.T, components []signature.Component) *testServer {
	t.Helper()

	registry, err := signature.NewRegistry(signature.Options{
		Clients: []signature.ClientOptions{
			{ClientID: testClientID, Key: testKey, Components: components},
		},
	})
	require.NoError(t, err)

	validator := signature.NewValidator(registry,
		signature.WithNonceRepository(newMemoryNonces()),
		signature.WithLogger(logging.NewNopLogger()),
	)

	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		result := validator.Validate(r.Context(), r)

		ts.mu.Lock()
		ts.statuses = append(ts.statuses, result.Status)
		ts.mu.Unlock()

		if !result.OK() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.Copy(w, r.Body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

type memoryNonces struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryNonces() *memoryNonces {
	return &memoryNonces{seen: make(map[string]bool)}
}

func (m *memoryNonces) Exists(_ context.Context, clientID, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[clientID+":"+nonce], nil
}

func (m *memoryNonces) Add(_ context.Context, clientID, nonce string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[clientID+":"+nonce] {
		return false, nil
	}
	m.seen[clientID+":"+nonce] = true
	return true, nil
}

func shiftedClock(offset time.Duration) signature.Clock {
	return signature.ClockFunc(func() time.Time { return time.Now().UTC().Add(offset) })
}

func newTestClient(t *testing.T, options Options, opts ...TransportOption) (*http.Client, *Transport) {
	t.Helper()

	opts = append([]TransportOption{WithLogger(logging.NewNopLogger())}, opts...)
	transport, err := NewTransport(options, opts...)
	require.NoError(t, err)
	return &http.Client{Transport: transport}, transport
}

func TestTransport_SignsRequests(t *testing.T) {
	server := newTestServer(t, signature.DefaultComponents)
	client, _ := newTestClient(t, Options{ClientID: testClientID, Key: testKey})

	resp, err := client.Post(server.URL+"/orders?id=7", "application/json", strings.NewReader(`{"amount":42}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"amount":42}`, string(body))
	assert.Equal(t, []signature.Status{signature.StatusOK}, server.statuses)
}

func TestTransport_FreshNoncePerRequest(t *testing.T) {
	server := newTestServer(t, signature.DefaultComponents)
	client, _ := newTestClient(t, Options{ClientID: testClientID, Key: testKey})

	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL + "/ping")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.EqualValues(t, 3, server.hits.Load())
}

func TestTransport_HeaderComponents(t *testing.T) {
	components := []signature.Component{signature.Nonce, signature.Timestamp, signature.Method, signature.Header("X-Tenant"), signature.Body}
	server := newTestServer(t, components)
	client, _ := newTestClient(t, Options{ClientID: testClientID, Key: testKey, Components: components})

	req, err := http.NewRequest(http.MethodPut, server.URL+"/tenants", bytes.NewBufferString("payload"))
	require.NoError(t, err)
	req.Header.Set("X-Tenant", "acme")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransport_WrongKeyIsNotRetried(t *testing.T) {
	server := newTestServer(t, signature.DefaultComponents)
	client, _ := newTestClient(t, Options{ClientID: testClientID, Key: "wrong"})

	resp, err := client.Get(server.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.EqualValues(t, 1, server.hits.Load())
	assert.Equal(t, []signature.Status{signature.StatusSignatureDoesntMatch}, server.statuses)
}

type countingClockObserver struct {
	calls atomic.Int32
}

func (c *countingClockObserver) ObserveClockCorrection(time.Duration) {
	c.calls.Add(1)
}

func TestTransport_CorrectsClockSkewOnce(t *testing.T) {
	server := newTestServer(t, signature.DefaultComponents)
	observer := &countingClockObserver{}
	client, transport := newTestClient(t,
		Options{ClientID: testClientID, Key: testKey},
		WithClock(shiftedClock(-time.Hour)),
		WithClockObserver(observer),
	)

	resp, err := client.Post(server.URL+"/orders", "text/plain", strings.NewReader("body"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body", string(body), "retry must resend the body")
	assert.Equal(t, []signature.Status{signature.StatusTimestampIsOff, signature.StatusOK}, server.statuses)
	assert.InDelta(t, time.Hour.Seconds(), transport.ClockOffset().Seconds(), 2)
	assert.EqualValues(t, 1, observer.calls.Load())

	// The offset persists, later requests succeed first time.
	resp, err = client.Get(server.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, server.hits.Load())
}

func TestTransport_RetriesAtMostOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// A server whose clock keeps running away.
		w.Header().Set("Date", time.Now().Add(time.Duration(hits.Load())*time.Hour).UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, _ := newTestClient(t, Options{ClientID: testClientID, Key: testKey})

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.EqualValues(t, 2, hits.Load())
}

func TestTransport_ClockSkewCorrectionDisabled(t *testing.T) {
	server := newTestServer(t, signature.DefaultComponents)
	client, transport := newTestClient(t,
		Options{ClientID: testClientID, Key: testKey, DisableClockSkewCorrection: true},
		WithClock(shiftedClock(-time.Hour)),
	)

	resp, err := client.Get(server.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.EqualValues(t, 1, server.hits.Load())
	assert.Zero(t, transport.ClockOffset())
}

func TestTransport_NonceSize(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get(signature.DefaultHeaderName)
	}))
	defer server.Close()

	client, _ := newTestClient(t, Options{ClientID: testClientID, Key: testKey, NonceSize: 16})

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	parsed, err := signature.DefaultHeaderCodec.Parse(header)
	require.NoError(t, err)
	assert.Equal(t, testClientID, parsed.ClientID)

	raw, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
}

func TestOptions_Validate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		options := Options{ClientID: "a", Key: "k"}
		options.SetDefaults()
		require.NoError(t, options.Validate())

		assert.Equal(t, signature.DefaultComponents, options.Components)
		assert.Equal(t, DefaultNonceSize, options.NonceSize)
		assert.Equal(t, 5*time.Minute, options.ClockSkew)
	})

	t.Run("reports every problem", func(t *testing.T) {
		options := Options{HeaderTemplate: "{Nonce}", NonceSize: 4}
		options.SetDefaults()

		err := options.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		assert.Contains(t, err.Error(), "missing client id")
		assert.Contains(t, err.Error(), "missing key")
		assert.Contains(t, err.Error(), "{ClientId}")
		assert.Contains(t, err.Error(), "nonce size")
	})

	t.Run("new client rejects invalid options", func(t *testing.T) {
		_, err := NewClient(Options{})
		assert.Error(t, err)
	})
}
