package sesiweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{ClientID: "test-id", ClientSecret: "test-secret"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sleepRecorder replaces the client's retry sleep so tests finish instantly
// while still seeing every backoff the client would have waited.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return nil
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

// newTestServer serves a stub token endpoint next to the given API handler.
func newTestServer(t *testing.T, apiHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/application_token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","expires_in":1800}`)
	})
	mux.HandleFunc("/api/", apiHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, apiHandler http.HandlerFunc) (*Client, *sleepRecorder) {
	t.Helper()
	srv := newTestServer(t, apiHandler)

	c, err := New(context.Background(), testCreds,
		WithEndpointURL(srv.URL+"/api/"),
		WithTokenURL(srv.URL+"/oauth2/application_token"),
		WithLogger(discardLogger()))
	require.NoError(t, err)

	rec := &sleepRecorder{}
	c.sleepFunc = rec.sleep
	return c, rec
}

// decodeEnvelope unpacks the "json" form field into its command and kwargs.
func decodeEnvelope(t *testing.T, r *http.Request) (string, map[string]any) {
	t.Helper()
	if !assert.NoError(t, r.ParseForm()) {
		return "", nil
	}
	raw := r.PostForm.Get("json")
	if !assert.NotEmpty(t, raw, "request body carries no json field") {
		return "", nil
	}

	var parts []json.RawMessage
	if !assert.NoError(t, json.Unmarshal([]byte(raw), &parts)) || !assert.Len(t, parts, 3) {
		return "", nil
	}

	var command string
	assert.NoError(t, json.Unmarshal(parts[0], &command))
	var args []any
	assert.NoError(t, json.Unmarshal(parts[1], &args))
	assert.Empty(t, args, "positional args must stay empty")
	var kwargs map[string]any
	assert.NoError(t, json.Unmarshal(parts[2], &kwargs))

	return command, kwargs
}

func TestCallSendsEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

		command, kwargs := decodeEnvelope(t, r)
		assert.Equal(t, "test.echo", command)
		assert.Equal(t, map[string]any{"value": "hello"}, kwargs)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":"hello"}`)
	})

	var out struct {
		Value string `json:"value"`
	}
	err := c.Call(context.Background(), "test.echo", map[string]any{"value": "hello"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Value)
}

func TestCallNilOutDiscardsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ignored":true}`)
	})

	require.NoError(t, c.Call(context.Background(), "test.fire", nil, nil))
}

func TestCallAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no such command")
	})

	err := c.Call(context.Background(), "test.missing", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no such command", apiErr.Message)
}

func TestCallServerTraceback(t *testing.T) {
	body := "<html><textarea>\nTraceback:\nFile &quot;api.py&quot;, line 10\nValueError: bad build\n</textarea></html>"
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, body)
	})

	err := c.Call(context.Background(), "test.boom", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Traceback:\nFile \"api.py\", line 10\nValueError: bad build\n", apiErr.Message)
}

func TestCallRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})

	err := c.Call(context.Background(), "test.busy", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	sleeps := rec.recorded()
	require.Len(t, sleeps, 2)
	// 1s then 2s base, with 25% jitter either way.
	assert.GreaterOrEqual(t, sleeps[0], 750*time.Millisecond)
	assert.LessOrEqual(t, sleeps[0], 1250*time.Millisecond)
	assert.GreaterOrEqual(t, sleeps[1], 1500*time.Millisecond)
	assert.LessOrEqual(t, sleeps[1], 2500*time.Millisecond)
}

func TestCallHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})

	require.NoError(t, c.Call(context.Background(), "test.busy", nil, nil))

	sleeps := rec.recorded()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 7*time.Second, sleeps[0])
}

func TestCallRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	})

	err := c.Call(context.Background(), "test.busy", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(1+maxRetries), calls.Load())
	assert.Len(t, rec.recorded(), maxRetries)
}

func TestCallDoesNotRetryServerError(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "broken")
	})

	err := c.Call(context.Background(), "test.boom", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.recorded())
}

func TestCallBinaryResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeOctetStream)
		fmt.Fprint(w, "binary bytes")
	})

	err := c.Call(context.Background(), "test.blob", nil, nil)
	assert.ErrorIs(t, err, ErrBinaryResponse)
}

func TestCallStream(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeOctetStream)
		fmt.Fprint(w, "streamed payload")
	})

	stream, err := c.CallStream(context.Background(), "test.blob", nil)
	require.NoError(t, err)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "streamed payload", string(data))
	assert.Equal(t, int64(len("streamed payload")), stream.ContentLength())

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close(), "second close must be a no-op")
}

func TestCallStreamNotBinary(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"unexpected":"json"}`)
	})

	stream, err := c.CallStream(context.Background(), "test.blob", nil)
	assert.Nil(t, stream)
	assert.ErrorIs(t, err, ErrNotBinary)
}

func TestCallStreamAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "not allowed")
	})

	stream, err := c.CallStream(context.Background(), "test.blob", nil)
	assert.Nil(t, stream)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestCallCanceledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Call(ctx, "test.echo", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSeededToken(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/application_token", func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","expires_in":1800}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	seed := AccessToken{Token: "cached-token", Expiry: time.Now().Add(time.Hour)}
	c, err := New(context.Background(), testCreds,
		WithTokenURL(srv.URL+"/oauth2/application_token"),
		WithAccessToken(seed),
		WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.Equal(t, "cached-token", c.Token().Token)
	assert.Equal(t, int32(0), tokenCalls.Load(), "valid seed token must skip the exchange")
}

func TestNewExpiredSeedToken(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/application_token", func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","expires_in":1800}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	seed := AccessToken{Token: "stale-token", Expiry: time.Now().Add(-time.Minute)}
	c, err := New(context.Background(), testCreds,
		WithTokenURL(srv.URL+"/oauth2/application_token"),
		WithAccessToken(seed),
		WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.Equal(t, "fresh-token", c.Token().Token)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestNewInvalidRateLimit(t *testing.T) {
	_, err := New(context.Background(), testCreds,
		WithRateLimit(5, 0),
		WithLogger(discardLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestCalcBackoff(t *testing.T) {
	for i := 0; i < 50; i++ {
		b := calcBackoff(0)
		assert.GreaterOrEqual(t, b, 750*time.Millisecond)
		assert.LessOrEqual(t, b, 1250*time.Millisecond)
	}

	// Far past the cap, jitter included.
	b := calcBackoff(20)
	assert.LessOrEqual(t, b, 75*time.Second)
	assert.GreaterOrEqual(t, b, 45*time.Second)
}

func TestIsOctetStream(t *testing.T) {
	h := http.Header{}
	assert.False(t, isOctetStream(h))

	h.Set("Content-Type", "application/json")
	assert.False(t, isOctetStream(h))

	h.Set("Content-Type", "application/octet-stream")
	assert.True(t, isOctetStream(h))

	h.Set("Content-Type", "application/octet-stream; charset=binary")
	assert.True(t, isOctetStream(h))
}

var errTransport = errors.New("connection refused")

type failingTransport struct {
	failures int32
	count    atomic.Int32
	next     http.RoundTripper
}

func (f *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.count.Add(1) <= f.failures {
		return nil, errTransport
	}
	return f.next.RoundTrip(req)
}

func TestCallRetriesTransportError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})

	transport := &failingTransport{failures: 2, next: http.DefaultTransport}
	c, err := New(context.Background(), testCreds,
		WithEndpointURL(srv.URL+"/api/"),
		WithTokenURL(srv.URL+"/oauth2/application_token"),
		WithAccessToken(AccessToken{Token: "seed", Expiry: time.Now().Add(time.Hour)}),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithLogger(discardLogger()))
	require.NoError(t, err)

	rec := &sleepRecorder{}
	c.sleepFunc = rec.sleep

	require.NoError(t, c.Call(context.Background(), "test.flaky", nil, nil))
	assert.Equal(t, int32(3), transport.count.Load())
	assert.Len(t, rec.recorded(), 2)
}

func TestCallTransportErrorExhausted(t *testing.T) {
	transport := &failingTransport{failures: 100, next: http.DefaultTransport}
	c, err := New(context.Background(), testCreds,
		WithEndpointURL("http://sesiweb.invalid/api/"),
		WithAccessToken(AccessToken{Token: "seed", Expiry: time.Now().Add(time.Hour)}),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithLogger(discardLogger()))
	require.NoError(t, err)

	rec := &sleepRecorder{}
	c.sleepFunc = rec.sleep

	err = c.Call(context.Background(), "test.flaky", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransport)
	assert.Contains(t, err.Error(), fmt.Sprintf("after %d retries", maxRetries))
	assert.Equal(t, int32(1+maxRetries), transport.count.Load())
}
