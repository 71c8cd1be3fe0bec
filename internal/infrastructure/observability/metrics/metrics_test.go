package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.ObserveAPIRequest("GET", "ok", time.Millisecond)
	m.ObserveRetry()
	m.ObserveCacheLookup(true)
	m.SetCacheSize(3)
	m.ObservePaywall("pdf_export", "granted")
	m.ObserveRealtimeEvent("payment_completed")
	m.RequestStarted()("GET", "/health", 200)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveAPIRequest("GET", "ok", 20*time.Millisecond)
	m.ObserveCacheLookup(false)
	m.ObservePaywall("country_access", "redirected")
	m.RequestStarted()("POST", "/paywall/open", 200)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, `zineinsight_web_api_requests_total{method="GET",outcome="ok"} 1`))
	assert.True(t, strings.Contains(text, `zineinsight_web_cache_lookups_total{result="miss"} 1`))
	assert.True(t, strings.Contains(text, `zineinsight_web_paywall_outcomes_total{outcome="redirected",paywall_type="country_access"} 1`))
	assert.True(t, strings.Contains(text, `zineinsight_web_http_requests_total{method="POST",route="/paywall/open",status="200"} 1`))
}

func TestSeparateRegistries(t *testing.T) {
	a := New()
	b := New()
	assert.NotSame(t, a.Registry, b.Registry)
}
