// Package realtime listens to the backend websocket feed and drops cached
// responses when entitlements change.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/metrics"
	"github.com/gorilla/websocket"
)

const (
	EventEntitlementUpdated = "entitlement_updated"
	EventPaymentCompleted   = "payment_completed"

	maxReconnectDelay = 60 * time.Second
)

// Event is one message of the feed
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CacheClearer is implemented by the API connector
type CacheClearer interface {
	ClearCache()
}

// Listener maintains the websocket connection
type Listener struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	clearer CacheClearer
	logger  *logging.ChanneledLogger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewListener creates a listener for url
func NewListener(url string, clearer CacheClearer, logger *logging.ChanneledLogger, m *metrics.Metrics) *Listener {
	return &Listener{
		url:     url,
		dialer:  websocket.DefaultDialer,
		clearer: clearer,
		logger:  logger,
		metrics: m,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Run connects and reconnects until ctx is cancelled
func (l *Listener) Run(ctx context.Context) {
	failures := 0
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			l.logger.Realtime().Info("Realtime listener stopped")
			return
		}
		if err == nil {
			failures = 0
		}
		failures++
		delay := apiclient.CappedBackoff(failures, maxReconnectDelay)
		l.logger.Realtime().Warn("Realtime feed disconnected, reconnecting",
			"url", l.url, "delay", delay, "error", errString(err))
		if l.sleep(ctx, delay) != nil {
			l.logger.Realtime().Info("Realtime listener stopped")
			return
		}
	}
}

// session runs one connection. A nil error means the server closed it cleanly.
func (l *Listener) session(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, l.header)
	if err != nil {
		return err
	}
	defer conn.Close()
	l.logger.Realtime().Info("Realtime feed connected", "url", l.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		l.handle(ev)
	}
}

func (l *Listener) handle(ev Event) {
	l.metrics.ObserveRealtimeEvent(ev.Type)
	switch ev.Type {
	case EventEntitlementUpdated, EventPaymentCompleted:
		l.clearer.ClearCache()
		l.logger.Realtime().Info("Entitlements changed, cache cleared", "event", ev.Type)
	default:
		l.logger.Realtime().Debug("Ignoring realtime event", "event", ev.Type)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Text
	}
	return err.Error()
}
