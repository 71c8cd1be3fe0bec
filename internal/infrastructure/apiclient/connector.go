// Package apiclient is the single gateway between the web front and the
// ZineInsight backend API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/environment"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/metrics"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
)

const maxErrorBody = 64 << 10

// Options tweak a single request
type Options struct {
	Headers map[string]string // override default headers
	Timeout time.Duration     // overrides the profile timeout when > 0
}

// Config holds the connector dependencies
type Config struct {
	Profile       environment.Profile
	CacheTTL      time.Duration
	CacheCapacity int
	RetryAttempts int

	HTTPClient  *http.Client
	Tokens      TokenSource
	Logger      *logging.ChanneledLogger
	Metrics     *metrics.Metrics
	PerfTracker *performance.Tracker

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Connector issues JSON requests against the active profile
type Connector struct {
	profile       environment.Profile
	client        *http.Client
	cache         *responseCache
	tokens        TokenSource
	retryAttempts int

	logger      *logging.ChanneledLogger
	metrics     *metrics.Metrics
	perfTracker *performance.Tracker

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a connector from cfg
func New(cfg Config) (*Connector, error) {
	if cfg.Profile.APIBaseURL == "" {
		return nil, errors.New("profile has no API base URL")
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Tokens == nil {
		cfg.Tokens = ContextTokenSource
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}
	if cfg.PerfTracker == nil {
		cfg.PerfTracker = performance.NewTracker(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	cache, err := newResponseCache(cfg.CacheCapacity, cfg.CacheTTL, cfg.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	return &Connector{
		profile:       cfg.Profile,
		client:        cfg.HTTPClient,
		cache:         cache,
		tokens:        cfg.Tokens,
		retryAttempts: cfg.RetryAttempts,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		perfTracker:   cfg.PerfTracker,
		now:           cfg.Now,
		sleep:         cfg.Sleep,
	}, nil
}

// Profile returns the profile the connector was built with
func (c *Connector) Profile() environment.Profile {
	return c.profile
}

// URL builds the full URL for endpoint
func (c *Connector) URL(endpoint string) string {
	return c.profile.URL(endpoint)
}

// Request performs one JSON request. GET responses are served from and
// stored in the cache when the profile enables it.
func (c *Connector) Request(ctx context.Context, endpoint, method string, body any, opts *Options) (json.RawMessage, error) {
	if method == "" {
		method = http.MethodGet
	}
	if opts == nil {
		opts = &Options{}
	}

	marker := c.perfTracker.StartOperation("api:" + method + " " + endpoint)
	defer marker.Complete()

	url := c.URL(endpoint)
	payload, err := encodeBody(body)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.API().Warn("Token source failed, continuing anonymously", "error", err.Error())
		token = ""
	}
	if !TokenUsable(token, c.now()) {
		token = ""
	}

	cacheable := method == http.MethodGet && c.profile.CacheEnabled
	key := ""
	if cacheable {
		key = cacheKey(method, url, payload, security.Fingerprint(token))
		start := time.Now()
		if cached, ok := c.cache.get(key); ok {
			c.logger.LogCacheOperation("get", key, true, time.Since(start))
			c.metrics.ObserveCacheLookup(true)
			marker.AddCacheHit()
			return cached, nil
		}
		c.logger.LogCacheOperation("get", key, false, time.Since(start))
		c.metrics.ObserveCacheLookup(false)
		marker.AddCacheMiss()
	}

	timeout := c.profile.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	requestID := security.GenerateULID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	logger := c.logger.WithContext(logging.ChannelAPI, ctx).With(
		"method", method, "url", url, "backendRequestId", requestID)

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		terr := classifyTransportError(ctx, method, url, timeout, err)
		c.metrics.ObserveAPIRequest(method, "transport_error", time.Since(started))
		marker.SetError(terr)
		logger.Warn("Backend request failed", "error", terr.Error())
		return nil, terr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		terr := classifyTransportError(ctx, method, url, timeout, err)
		c.metrics.ObserveAPIRequest(method, "transport_error", time.Since(started))
		marker.SetError(terr)
		return nil, terr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		httpErr := newHTTPError(method, url, resp.StatusCode, data)
		c.metrics.ObserveAPIRequest(method, "http_error", time.Since(started))
		marker.SetError(httpErr)
		logger.Warn("Backend returned error status", "status", resp.StatusCode)
		return nil, httpErr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	if !json.Valid(data) {
		c.metrics.ObserveAPIRequest(method, "decode_error", time.Since(started))
		err := fmt.Errorf("backend returned invalid JSON for %s %s", method, url)
		marker.SetError(err)
		return nil, err
	}

	c.metrics.ObserveAPIRequest(method, "ok", time.Since(started))
	logger.Debug("Backend request completed", "status", resp.StatusCode, "duration", time.Since(started))

	raw := json.RawMessage(data)
	if cacheable {
		c.cache.put(key, raw)
		c.metrics.SetCacheSize(c.cache.entries.Len())
	}
	marker.SetSuccess(true)
	return raw, nil
}

// ClearCache drops every cached response
func (c *Connector) ClearCache() {
	c.cache.clear()
	c.metrics.SetCacheSize(0)
	c.logger.Cache().Info("Response cache cleared")
}

// PurgeExpiredCache evicts stale responses ahead of their next read
func (c *Connector) PurgeExpiredCache() int {
	n := c.cache.purgeExpired()
	if n > 0 {
		c.metrics.SetCacheSize(c.cache.entries.Len())
	}
	return n
}

// CacheStats reports the cache size and keys
func (c *Connector) CacheStats() CacheStats {
	return c.cache.stats()
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

func classifyTransportError(parent context.Context, method, url string, timeout time.Duration, err error) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Method: method, URL: url, Timeout: timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() && parent.Err() == nil {
		return &TimeoutError{Method: method, URL: url, Timeout: timeout, Err: err}
	}
	return &NetworkError{Method: method, URL: url, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Decode unmarshals a raw response into T
func Decode[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
