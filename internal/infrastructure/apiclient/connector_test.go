package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/environment"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

func newTestConnector(t *testing.T, baseURL string, cacheEnabled bool, mutate func(*Config)) (*Connector, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg := Config{
		Profile: environment.Profile{
			Name:         "test",
			APIBaseURL:   baseURL,
			Timeout:      2 * time.Second,
			CacheEnabled: cacheEnabled,
		},
		CacheTTL:      5 * time.Minute,
		CacheCapacity: 10,
		Now:           clock.Now,
		Sleep:         (&sleepRecorder{}).Sleep,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c, clock
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRequestCachesGetWithinTTL(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{"questions":[1,2]}`)
	c, clock := newTestConnector(t, srv.URL, true, nil)
	ctx := context.Background()

	first, err := c.Request(ctx, "/questions", http.MethodGet, nil, nil)
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	second, err := c.Request(ctx, "/questions", http.MethodGet, nil, nil)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	clock.Advance(2 * time.Minute)
	_, err = c.Request(ctx, "/questions", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestRequestCacheDisabledAlwaysFetches(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	c, _ := newTestConnector(t, srv.URL, false, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Request(context.Background(), "/countries", http.MethodGet, nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Equal(t, 0, c.CacheStats().Size)
}

func TestRequestNeverCachesPost(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{"score":42}`)
	c, _ := newTestConnector(t, srv.URL, true, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Request(context.Background(), "/calculate-score", http.MethodPost, map[string]int{"a": 1}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	assert.Equal(t, 0, c.CacheStats().Size)
}

func TestRequestCacheScopedByToken(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{"name":"x"}`)
	c, _ := newTestConnector(t, srv.URL, true, nil)

	alice := ContextWithToken(context.Background(), "token-alice")
	bob := ContextWithToken(context.Background(), "token-bob")

	_, err := c.Request(alice, "/user-profile", http.MethodGet, nil, nil)
	require.NoError(t, err)
	_, err = c.Request(bob, "/user-profile", http.MethodGet, nil, nil)
	require.NoError(t, err)
	_, err = c.Request(alice, "/user-profile", http.MethodGet, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	assert.Equal(t, 2, c.CacheStats().Size)
}

func TestCacheIsBounded(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `{}`)
	c, _ := newTestConnector(t, srv.URL, true, func(cfg *Config) { cfg.CacheCapacity = 2 })

	for _, ep := range []string{"/guides/fr", "/guides/de", "/guides/es"} {
		_, err := c.Request(context.Background(), ep, http.MethodGet, nil, nil)
		require.NoError(t, err)
	}

	stats := c.CacheStats()
	assert.Equal(t, 2, stats.Size)
	assert.NotContains(t, stats.Keys, "GET:"+srv.URL+"/guides/fr:")
}

func TestClearCache(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	c, _ := newTestConnector(t, srv.URL, true, nil)

	_, err := c.Request(context.Background(), "/countries", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CacheStats().Size)
	assert.Equal(t, []string{"GET:" + srv.URL + "/countries:"}, c.CacheStats().Keys)

	c.ClearCache()
	assert.Equal(t, 0, c.CacheStats().Size)
	assert.Empty(t, c.CacheStats().Keys)

	_, err = c.Request(context.Background(), "/countries", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestPurgeExpiredCache(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `{}`)
	c, clock := newTestConnector(t, srv.URL, true, nil)
	ctx := context.Background()

	_, err := c.Request(ctx, "/countries", http.MethodGet, nil, nil)
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)
	_, err = c.Request(ctx, "/questions", http.MethodGet, nil, nil)
	require.NoError(t, err)

	assert.Zero(t, c.PurgeExpiredCache())
	clock.Advance(3 * time.Minute)
	assert.Equal(t, 1, c.PurgeExpiredCache())
	assert.Equal(t, []string{"GET:" + srv.URL + "/questions:"}, c.CacheStats().Keys)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c, _ := newTestConnector(t, srv.URL, false, nil)
	ctx := ContextWithToken(context.Background(), "opaque-token")

	_, err := c.Request(ctx, "/user-session", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer opaque-token", got.Get("Authorization"))
	assert.Len(t, got.Get("X-Request-ID"), 26)

	_, err = c.Request(ctx, "/user-session", http.MethodGet, nil, &Options{
		Headers: map[string]string{"Content-Type": "text/plain", "X-Extra": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got.Get("Content-Type"))
	assert.Equal(t, "1", got.Get("X-Extra"))
}

func TestRequestOmitsExpiredJWT(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c, clock := newTestConnector(t, srv.URL, false, nil)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(-time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = c.Request(ContextWithToken(context.Background(), expired), "/user-profile", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, auth)

	_, err = c.Request(ContextWithToken(context.Background(), valid), "/user-profile", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+valid, auth)
}

func TestRequestHTTPError(t *testing.T) {
	srv, _ := countingServer(t, http.StatusForbidden, `{"detail":"nope"}`)
	c, _ := newTestConnector(t, srv.URL, true, nil)

	_, err := c.Request(context.Background(), "/user-profile", http.MethodGet, nil, nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Equal(t, "Forbidden", httpErr.StatusText)
	assert.Equal(t, `{"detail":"nope"}`, httpErr.Body)
	assert.Equal(t, "HTTP 403: Forbidden", err.Error())
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.False(t, errors.Is(err, ErrTransport))
	assert.Equal(t, 0, c.CacheStats().Size)
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := newTestConnector(t, srv.URL, false, nil)
	_, err := c.Request(context.Background(), "/health", http.MethodGet, nil, &Options{Timeout: 50 * time.Millisecond})

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestRequestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, _ := newTestConnector(t, base, false, nil)
	_, err := c.Request(context.Background(), "/health", http.MethodGet, nil, nil)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestRequestAbsoluteEndpoint(t *testing.T) {
	other, hits := countingServer(t, http.StatusOK, `{"ok":true}`)
	c, _ := newTestConnector(t, "http://127.0.0.1:1", false, nil)

	raw, err := c.Request(context.Background(), other.URL+"/anything", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestRequestRootRelativeBase(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c, _ := newTestConnector(t, "/api", false, func(cfg *Config) { cfg.Profile.Origin = srv.URL })
	_, err := c.Request(context.Background(), "/countries", http.MethodGet, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/countries", path)
}

func TestRequestSendsBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"has_access":true}`)
	}))
	defer srv.Close()

	c, _ := newTestConnector(t, srv.URL, false, nil)
	ok, err := c.CheckAccess(context.Background(), "country_access", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "country_access", body["paywall_type"])
	assert.Nil(t, body["resource_id"])
}

func TestDecode(t *testing.T) {
	type limits struct {
		Tier string `json:"tier"`
	}
	out, err := Decode[limits](json.RawMessage(`{"tier":"pro"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "pro", out.Tier)

	_, err = Decode[limits](nil, errors.New("boom"))
	assert.EqualError(t, err, "boom")
}

func TestCheckoutURL(t *testing.T) {
	assert.Equal(t, "https://a", CheckoutURL(json.RawMessage(`{"checkout_url":"https://a","url":"https://b"}`)))
	assert.Equal(t, "https://b", CheckoutURL(json.RawMessage(`{"url":"https://b"}`)))
	assert.Equal(t, "", CheckoutURL(json.RawMessage(`{}`)))
}
