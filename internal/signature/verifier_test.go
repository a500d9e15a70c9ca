package signature

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requests-signature/internal/common/logging"
)

const (
	testClientID = "C1"
	testKey      = "secret"
	testURL      = "https://api.example.com/orders?id=7"
	testBody     = `{"amount":42}`
)

var testNow = time.Unix(1700000000, 0).UTC()

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
	key := clientID + ":" + nonce
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

type stubNonces struct {
	exists    bool
	existsErr error
	added     bool
	addErr    error
	panics    bool
}

func (s *stubNonces) Exists(context.Context, string, string) (bool, error) {
	if s.panics {
		panic("nonce store exploded")
	}
	return s.exists, s.existsErr
}

func (s *stubNonces) Add(context.Context, string, string, time.Duration) (bool, error) {
	return s.added, s.addErr
}

type countingObserver struct {
	mu       sync.Mutex
	statuses []Status
}

func (o *countingObserver) ObserveValidation(result ValidationResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, result.Status)
}

func testOptions() Options {
	return Options{
		Clients: []ClientOptions{
			{ClientID: testClientID, Key: testKey, Components: DefaultComponents},
		},
	}
}

func newTestValidator(t *testing.T, options Options, nonces NonceRepository) *Validator {
	t.Helper()

	registry, err := NewRegistry(options)
	require.NoError(t, err)

	return NewValidator(registry,
		WithNonceRepository(nonces),
		WithClock(ClockFunc(func() time.Time { return testNow })),
		WithLogger(logging.NewNopLogger()),
	)
}

// expectedSignature computes the default-component signature independently of the package.
func expectedSignature(nonce string, timestamp int64, method, scheme, host, path, query, body string) string {
	source := nonce + strconv.FormatInt(timestamp, 10) + method + scheme + host + path + query + body
	mac := hmac.New(sha256.New, []byte(testKey))
	mac.Write([]byte(source))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signedRequest(nonce string, timestamp int64, sig string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, testURL, bytes.NewBufferString(testBody))
	r.Header.Set(DefaultHeaderName, DefaultHeaderCodec.Format(HeaderValue{
		ClientID:  testClientID,
		Nonce:     nonce,
		Timestamp: timestamp,
		Signature: sig,
	}))
	return r
}

func validRequest(nonce string, timestamp int64) *http.Request {
	sig := expectedSignature(nonce, timestamp, "POST", "https", "api.example.com", "/orders", "?id=7", testBody)
	return signedRequest(nonce, timestamp, sig)
}

func TestValidator_AcceptsValidSignature(t *testing.T) {
	v := newTestValidator(t, testOptions(), newMemoryNonces())
	r := validRequest("n1", testNow.Unix())

	result := v.Validate(context.Background(), r)

	assert.Equal(t, StatusOK, result.Status)
	assert.True(t, result.OK())
	assert.Equal(t, testClientID, result.ClientID)
	assert.Equal(t, testNow.Unix(), result.ServerTimestamp)
	assert.NotEmpty(t, result.ComputedSignature)

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, testBody, string(body), "body must stay readable after validation")
}

func TestValidator_ReplayIsRejected(t *testing.T) {
	v := newTestValidator(t, testOptions(), newMemoryNonces())

	first := v.Validate(context.Background(), validRequest("n1", testNow.Unix()))
	second := v.Validate(context.Background(), validRequest("n1", testNow.Unix()))

	assert.Equal(t, StatusOK, first.Status)
	assert.Equal(t, StatusNonceHasBeenUsedBefore, second.Status)
}

func TestValidator_FailedAttemptDoesNotConsumeNonce(t *testing.T) {
	v := newTestValidator(t, testOptions(), newMemoryNonces())

	bad := v.Validate(context.Background(), signedRequest("n2", testNow.Unix(), "bm90LWEtc2lnbmF0dXJl"))
	good := v.Validate(context.Background(), validRequest("n2", testNow.Unix()))

	assert.Equal(t, StatusSignatureDoesntMatch, bad.Status)
	assert.NotEmpty(t, bad.ComputedSignature)
	assert.Equal(t, StatusOK, good.Status)
}

func TestValidator_ClockSkewBoundary(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		want   Status
	}{
		{"exactly skew in the past", -300, StatusOK},
		{"exactly skew in the future", 300, StatusOK},
		{"one second too old", -301, StatusTimestampIsOff},
		{"one second too far ahead", 301, StatusTimestampIsOff},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, testOptions(), newMemoryNonces())
			nonce := "skew-" + strconv.Itoa(i)

			result := v.Validate(context.Background(), validRequest(nonce, testNow.Unix()+tt.offset))

			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, testNow.Unix(), result.ServerTimestamp)
		})
	}
}

// expiringNonces forgets a nonce once its ttl has passed on the shared clock.
type expiringNonces struct {
	mu      sync.Mutex
	now     func() time.Time
	expires map[string]time.Time
	ttls    map[string]time.Duration
}

func newExpiringNonces(now func() time.Time) *expiringNonces {
	return &expiringNonces{now: now, expires: make(map[string]time.Time), ttls: make(map[string]time.Duration)}
}

func (e *expiringNonces) Exists(_ context.Context, clientID, nonce string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	expiry, ok := e.expires[clientID+":"+nonce]
	return ok && e.now().Before(expiry), nil
}

func (e *expiringNonces) Add(_ context.Context, clientID, nonce string, ttl time.Duration) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := clientID + ":" + nonce
	if expiry, ok := e.expires[key]; ok && e.now().Before(expiry) {
		return false, nil
	}
	e.expires[key] = e.now().Add(ttl)
	e.ttls[key] = ttl
	return true, nil
}

func TestValidator_NonceOutlivesAcceptanceWindow(t *testing.T) {
	tests := []struct {
		name    string
		offset  int64
		wantTTL time.Duration
	}{
		{"timestamp at the future edge", 300, 600 * time.Second},
		{"timestamp slightly ahead", 120, 420 * time.Second},
		{"current timestamp", 0, 300 * time.Second},
		{"timestamp in the past", -300, 300 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := testNow
			clock := func() time.Time { return now }
			nonces := newExpiringNonces(clock)

			registry, err := NewRegistry(testOptions())
			require.NoError(t, err)
			v := NewValidator(registry,
				WithNonceRepository(nonces),
				WithClock(ClockFunc(clock)),
				WithLogger(logging.NewNopLogger()),
			)

			timestamp := testNow.Unix() + tt.offset
			first := v.Validate(context.Background(), validRequest("n1", timestamp))
			require.Equal(t, StatusOK, first.Status)
			assert.Equal(t, tt.wantTTL, nonces.ttls[testClientID+":n1"])

			// Replays stay rejected for as long as the timestamp is accepted.
			for now = testNow; now.Unix()-timestamp <= 300; now = now.Add(time.Second) {
				second := v.Validate(context.Background(), validRequest("n1", timestamp))
				require.Equal(t, StatusNonceHasBeenUsedBefore, second.Status, "replayed at +%s", now.Sub(testNow))
			}

			late := v.Validate(context.Background(), validRequest("n1", timestamp))
			assert.NotEqual(t, StatusOK, late.Status)
		})
	}
}

func TestValidator_HeaderProblems(t *testing.T) {
	v := newTestValidator(t, testOptions(), newMemoryNonces())

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, testURL, nil)
		assert.Equal(t, StatusHeaderNotFound, v.Validate(context.Background(), r).Status)
	})

	t.Run("blank", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, testURL, nil)
		r.Header.Set(DefaultHeaderName, "   ")
		assert.Equal(t, StatusHeaderNotFound, v.Validate(context.Background(), r).Status)
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, testURL, nil)
		r.Header.Set(DefaultHeaderName, "not-a-signature")
		result := v.Validate(context.Background(), r)
		assert.Equal(t, StatusHeaderParseError, result.Status)
		assert.Equal(t, "not-a-signature", result.SignatureValue)
	})

	t.Run("non numeric timestamp", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, testURL, nil)
		r.Header.Set(DefaultHeaderName, "C1:n1:abc:sig")
		assert.Equal(t, StatusHeaderParseError, v.Validate(context.Background(), r).Status)
	})
}

func TestValidator_UnknownClientIsReportedBeforeReplay(t *testing.T) {
	v := newTestValidator(t, testOptions(), &stubNonces{exists: true})

	r := httptest.NewRequest(http.MethodGet, testURL, nil)
	r.Header.Set(DefaultHeaderName, "C2:n1:"+strconv.FormatInt(testNow.Unix(), 10)+":sig")

	result := v.Validate(context.Background(), r)

	assert.Equal(t, StatusClientIDNotFound, result.Status)
	assert.Equal(t, "C2", result.ClientID)
}

func TestValidator_ReplayIsReportedBeforeClockSkew(t *testing.T) {
	v := newTestValidator(t, testOptions(), &stubNonces{exists: true})

	result := v.Validate(context.Background(), validRequest("n1", testNow.Unix()-10000))

	assert.Equal(t, StatusNonceHasBeenUsedBefore, result.Status)
}

func TestValidator_ClientIDIsCaseSensitive(t *testing.T) {
	v := newTestValidator(t, testOptions(), newMemoryNonces())

	r := httptest.NewRequest(http.MethodGet, testURL, nil)
	r.Header.Set(DefaultHeaderName, "c1:n1:"+strconv.FormatInt(testNow.Unix(), 10)+":sig")

	assert.Equal(t, StatusClientIDNotFound, v.Validate(context.Background(), r).Status)
}

func TestValidator_LostAddRaceIsReplay(t *testing.T) {
	v := newTestValidator(t, testOptions(), &stubNonces{added: false})

	result := v.Validate(context.Background(), validRequest("n1", testNow.Unix()))

	assert.Equal(t, StatusNonceHasBeenUsedBefore, result.Status)
}

func TestValidator_InternalErrors(t *testing.T) {
	tests := []struct {
		name   string
		nonces *stubNonces
	}{
		{"exists fails", &stubNonces{existsErr: errors.New("connection refused")}},
		{"add fails", &stubNonces{addErr: errors.New("connection refused")}},
		{"store panics", &stubNonces{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, testOptions(), tt.nonces)

			result := v.Validate(context.Background(), validRequest("n1", testNow.Unix()))

			assert.Equal(t, StatusInternalError, result.Status)
			assert.Equal(t, testNow.Unix(), result.ServerTimestamp)
		})
	}
}

func TestValidator_Disabled(t *testing.T) {
	v := newTestValidator(t, Options{Disabled: true}, newMemoryNonces())

	result := v.Validate(context.Background(), validRequest("n1", testNow.Unix()))

	assert.Equal(t, StatusDisabled, result.Status)
	assert.False(t, result.OK())
}

func TestValidator_HeaderComponent(t *testing.T) {
	options := Options{
		Clients: []ClientOptions{
			{ClientID: testClientID, Key: testKey, Components: []Component{Nonce, Timestamp, Header("x-tenant")}},
		},
	}
	v := newTestValidator(t, options, newMemoryNonces())

	ts := testNow.Unix()
	mac := hmac.New(sha256.New, []byte(testKey))
	mac.Write([]byte("n1" + strconv.FormatInt(ts, 10) + "acme"))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	r := httptest.NewRequest(http.MethodGet, testURL, nil)
	r.Header.Set("X-Tenant", "acme")
	r.Header.Set(DefaultHeaderName, DefaultHeaderCodec.Format(HeaderValue{ClientID: testClientID, Nonce: "n1", Timestamp: ts, Signature: sig}))

	assert.Equal(t, StatusOK, v.Validate(context.Background(), r).Status)
}

func TestValidator_NotifiesObserver(t *testing.T) {
	observer := &countingObserver{}
	registry, err := NewRegistry(testOptions())
	require.NoError(t, err)

	v := NewValidator(registry,
		WithNonceRepository(newMemoryNonces()),
		WithClock(ClockFunc(func() time.Time { return testNow })),
		WithLogger(logging.NewNopLogger()),
		WithObserver(observer),
	)

	v.Validate(context.Background(), validRequest("n1", testNow.Unix()))
	v.Validate(context.Background(), httptest.NewRequest(http.MethodGet, testURL, nil))

	assert.Equal(t, []Status{StatusOK, StatusHeaderNotFound}, observer.statuses)
}

func TestValidator_ConcurrentReplayAcceptsOnce(t *testing.T) {
	v := newTestValidator(t, testOptions(), newMemoryNonces())

	const workers = 16
	results := make(chan Status, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- v.Validate(context.Background(), validRequest("shared", testNow.Unix())).Status
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for status := range results {
		if status == StatusOK {
			ok++
		} else {
			assert.Equal(t, StatusNonceHasBeenUsedBefore, status)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestAuthStrategy_Authenticate(t *testing.T) {
	v := newTestValidator(t, testOptions(), newMemoryNonces())
	strategy := NewAuthStrategy(v)

	assert.Equal(t, "signature", strategy.GetType())

	principal, result, err := strategy.Authenticate(validRequest("n1", testNow.Unix()))
	require.NoError(t, err)
	assert.Equal(t, testClientID, principal)
	assert.Equal(t, StatusOK, result.Status)

	principal, result, err = strategy.Authenticate(httptest.NewRequest(http.MethodGet, testURL, nil))
	require.NoError(t, err)
	assert.Empty(t, principal)
	assert.Equal(t, StatusHeaderNotFound, result.Status)

	principal, result, err = strategy.Authenticate(validRequest("n1", testNow.Unix()))
	require.Error(t, err)
	assert.Empty(t, principal)
	assert.Equal(t, StatusNonceHasBeenUsedBefore, result.Status)
	assert.Contains(t, err.Error(), "NonceHasBeenUsedBefore")
}

func TestAuthStrategy_UsesResultFromContext(t *testing.T) {
	v := newTestValidator(t, testOptions(), &stubNonces{panics: true})
	strategy := NewAuthStrategy(v)

	r := httptest.NewRequest(http.MethodGet, testURL, nil)
	r = r.WithContext(WithResult(r.Context(), ValidationResult{Status: StatusOK, ClientID: "C9"}))

	principal, _, err := strategy.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "C9", principal)
}
