// Package performance provides performance monitoring data structures and utilities
// for timing page renders, paywall steps and backend calls.
package performance

import (
	"sync"
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation   string         `json:"operation"` // e.g., "paywall:open", "dashboard:render"
	StartTime   time.Time      `json:"startTime"`
	EndTime     time.Time      `json:"endTime"`
	Duration    time.Duration  `json:"duration"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CacheHits   int            `json:"cacheHits"`
	CacheMisses int            `json:"cacheMisses"`
	Completed   bool           `json:"completed"`

	mu      sync.Mutex
	tracker *Tracker
}

// Complete marks the operation as finished and reports it to its tracker
func (m *Marker) Complete() {
	m.mu.Lock()
	if m.Completed {
		m.mu.Unlock()
		return
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
	m.mu.Unlock()

	if m.tracker != nil {
		m.tracker.record(m)
	}
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Error = err.Error()
	m.Success = false
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// AddCacheHit increments the cache hit counter
func (m *Marker) AddCacheHit() {
	m.mu.Lock()
	m.CacheHits++
	m.mu.Unlock()
}

// AddCacheMiss increments the cache miss counter
func (m *Marker) AddCacheMiss() {
	m.mu.Lock()
	m.CacheMisses++
	m.mu.Unlock()
}

// GetCacheHitRatio returns the cache hit ratio (0.0 to 1.0)
func (m *Marker) GetCacheHitRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0.0
	}
	return float64(m.CacheHits) / float64(total)
}

// snapshot copies the exported fields into a detached marker.
func (m *Marker) snapshot() *Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		meta[k] = v
	}
	return &Marker{
		Operation:   m.Operation,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Duration:    m.Duration,
		Success:     m.Success,
		Error:       m.Error,
		Metadata:    meta,
		CacheHits:   m.CacheHits,
		CacheMisses: m.CacheMisses,
		Completed:   m.Completed,
	}
}

// AlertSeverity represents the severity level of a performance alert
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"  // Performance degradation detected
	AlertCritical AlertSeverity = "critical" // Serious performance issue
)

// PerformanceAlert represents a performance threshold violation
type PerformanceAlert struct {
	Timestamp time.Time     `json:"timestamp"`
	Severity  AlertSeverity `json:"severity"`
	Operation string        `json:"operation"`
	Actual    time.Duration `json:"actual"`
	Message   string        `json:"message"`
}
