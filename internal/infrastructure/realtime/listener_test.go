package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClearer struct {
	n int32
}

func (c *countingClearer) ClearCache() { atomic.AddInt32(&c.n, 1) }

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestListenerClearsCacheOnEntitlementEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(Event{Type: EventEntitlementUpdated})
		_ = conn.WriteJSON(Event{Type: "heartbeat"})
		_ = conn.WriteJSON(Event{Type: EventPaymentCompleted})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	clearer := &countingClearer{}
	l := NewListener(wsURL(srv), clearer, logging.NewDiscardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&clearer.n) == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

func TestListenerReconnectsWithBackoff(t *testing.T) {
	var connections int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&connections, 1)
		conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var delays []time.Duration
	l := NewListener(wsURL(srv), &countingClearer{}, logging.NewDiscardLogger(), nil)
	l.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		n := len(delays)
		mu.Unlock()
		if n == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	l.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)
	assert.Equal(t, int32(3), atomic.LoadInt32(&connections))
}

func TestListenerBackoffIsCapped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last time.Duration
	calls := 0
	l := NewListener("ws://127.0.0.1:1/ws", &countingClearer{}, logging.NewDiscardLogger(), nil)
	l.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		last = d
		if calls == 8 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	l.Run(ctx)
	assert.Equal(t, maxReconnectDelay, last)
}
