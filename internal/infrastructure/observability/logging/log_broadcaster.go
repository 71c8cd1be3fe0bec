package logging

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

const clientBuffer = 100

// LogEntry is a single log line as streamed to admin clients.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	VisitorID string `json:"visitorId,omitempty"`
}

// AppliedFilters select which entries a client receives.
type AppliedFilters struct {
	Channel Channel // "all" matches every channel
	Level   slog.Level
}

// Client is one connected log stream.
type Client struct {
	ID      string
	Channel chan []byte
	filters AppliedFilters
}

func (f AppliedFilters) match(entry LogEntry) bool {
	if f.Channel != "all" && f.Channel != "" && f.Channel != Channel(entry.Channel) {
		return false
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(entry.Level)); err != nil {
		return true
	}
	return level >= f.Level
}

// LogBroadcaster fans log entries out to registered clients. Slow clients
// lose entries rather than blocking the logger.
type LogBroadcaster struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	dropped atomic.Int64
}

// NewLogBroadcaster creates an empty broadcaster.
func NewLogBroadcaster() *LogBroadcaster {
	return &LogBroadcaster{clients: make(map[*Client]struct{})}
}

// NewClient creates and registers a client.
func (b *LogBroadcaster) NewClient(filters AppliedFilters) *Client {
	client := &Client{
		ID:      ulid.Make().String(),
		Channel: make(chan []byte, clientBuffer),
		filters: filters,
	}
	b.mu.Lock()
	b.clients[client] = struct{}{}
	b.mu.Unlock()
	return client
}

// UnregisterClient removes the client and closes its channel.
func (b *LogBroadcaster) UnregisterClient(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.Channel)
	}
}

// ClientCount reports connected clients.
func (b *LogBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Dropped reports entries discarded because a client buffer was full.
func (b *LogBroadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// SubmitLog delivers entry to every client whose filters match.
func (b *LogBroadcaster) SubmitLog(entry LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.clients) == 0 {
		return
	}

	message, err := json.Marshal(entry)
	if err != nil {
		return
	}
	for client := range b.clients {
		if !client.filters.match(entry) {
			continue
		}
		select {
		case client.Channel <- message:
		default:
			b.dropped.Add(1)
		}
	}
}

// SSEWriter is an io.Writer that forwards slog JSON lines to a broadcaster.
type SSEWriter struct {
	broadcaster *LogBroadcaster
}

// NewSSEWriter creates a writer feeding b.
func NewSSEWriter(b *LogBroadcaster) *SSEWriter {
	return &SSEWriter{broadcaster: b}
}

// Write never fails; lines that are not JSON are forwarded as plain messages.
func (w *SSEWriter) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		w.broadcaster.SubmitLog(LogEntry{
			Level:   slog.LevelInfo.String(),
			Message: strings.TrimSpace(string(p)),
		})
		return len(p), nil
	}

	w.broadcaster.SubmitLog(LogEntry{
		Timestamp: stringField(raw, "time"),
		Level:     stringField(raw, "level"),
		Channel:   stringField(raw, "channel"),
		Message:   stringField(raw, "msg"),
		RequestID: stringField(raw, "requestId"),
		VisitorID: stringField(raw, "visitorId"),
	})
	return len(p), nil
}

func stringField(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}
