package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSchedule(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(2))
	assert.Equal(t, 8*time.Second, Backoff(3))
	assert.Equal(t, 60*time.Second, CappedBackoff(10, time.Minute))
	assert.Equal(t, 4*time.Second, CappedBackoff(2, time.Minute))
}

func TestRequestWithRetryExhaustsAttempts(t *testing.T) {
	srv, hits := countingServer(t, http.StatusServiceUnavailable, `{}`)
	sleeper := &sleepRecorder{}
	c, _ := newTestConnector(t, srv.URL, false, func(cfg *Config) { cfg.Sleep = sleeper.Sleep })

	_, err := c.RequestWithRetry(context.Background(), "/questions", http.MethodGet, nil, 3)

	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.delays)
}

func TestRequestWithRetryDefaultsToConfiguredAttempts(t *testing.T) {
	srv, hits := countingServer(t, http.StatusBadRequest, `{}`)
	c, _ := newTestConnector(t, srv.URL, false, func(cfg *Config) { cfg.RetryAttempts = 2 })

	_, err := c.RequestWithRetry(context.Background(), "/questions", http.MethodGet, nil, 0)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestRequestWithRetrySucceedsAfterTwoFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	sleeper := &sleepRecorder{}
	c, _ := newTestConnector(t, srv.URL, false, func(cfg *Config) { cfg.Sleep = sleeper.Sleep })

	raw, err := c.RequestWithRetry(context.Background(), "/countries", http.MethodGet, nil, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.delays)
}

func TestRequestWithRetryNoRetryOnSuccess(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	sleeper := &sleepRecorder{}
	c, _ := newTestConnector(t, srv.URL, false, func(cfg *Config) { cfg.Sleep = sleeper.Sleep })

	_, err := c.RequestWithRetry(context.Background(), "/countries", http.MethodGet, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Empty(t, sleeper.delays)
}

func TestRequestWithRetryAbortsOnCancel(t *testing.T) {
	srv, hits := countingServer(t, http.StatusInternalServerError, `{}`)
	sleeper := &sleepRecorder{err: context.Canceled}
	c, _ := newTestConnector(t, srv.URL, false, func(cfg *Config) { cfg.Sleep = sleeper.Sleep })

	_, err := c.RequestWithRetry(context.Background(), "/countries", http.MethodGet, nil, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestBatchRequestKeepsOrderAndInlinesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/slow"):
			time.Sleep(30 * time.Millisecond)
			_, _ = io.WriteString(w, `{"n":"slow"}`)
		case strings.HasSuffix(r.URL.Path, "/broken"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = io.WriteString(w, `{"n":"fast"}`)
		}
	}))
	defer srv.Close()

	c, _ := newTestConnector(t, srv.URL, false, nil)
	results := c.BatchRequest(context.Background(), []BatchItem{
		{Endpoint: "/slow"},
		{Endpoint: "/broken"},
		{Endpoint: "/fast", Method: http.MethodPost, Body: map[string]int{"x": 1}},
	})

	require.Len(t, results, 3)
	assert.JSONEq(t, `{"n":"slow"}`, string(results[0].Data))
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "/broken", results[1].Endpoint)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(results[1].Err))
	assert.JSONEq(t, `{"n":"fast"}`, string(results[2].Data))

	encoded, err := json.Marshal(results)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"n":"slow"},{"error":"HTTP 500: Internal Server Error","endpoint":"/broken"},{"n":"fast"}]`,
		string(encoded))
}

func TestBatchRequestEmpty(t *testing.T) {
	c, _ := newTestConnector(t, "http://127.0.0.1:1", false, nil)
	assert.Empty(t, c.BatchRequest(context.Background(), nil))
}
