package performance

import (
	"runtime"
	"strings"
	"sync"
	"time"
)

// Tracker keeps a bounded history of completed markers and alerts
type Tracker struct {
	completed  []*Marker
	alerts     []*PerformanceAlert
	active     int
	thresholds *AlertThresholds
	config     *TrackerConfig
	started    time.Time
	mu         sync.RWMutex
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers   int  `json:"maxMarkers"`
	MaxAlerts    int  `json:"maxAlerts"`
	EnableAlerts bool `json:"enableAlerts"`
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:   2000,
		MaxAlerts:    200,
		EnableAlerts: true,
	}
}

// AlertThresholds defines performance thresholds for generating alerts
type AlertThresholds struct {
	SlowResponseThreshold     time.Duration `json:"slowResponseThreshold"`
	CriticalResponseThreshold time.Duration `json:"criticalResponseThreshold"`
	PaywallStepThreshold      time.Duration `json:"paywallStepThreshold"`
	RenderThreshold           time.Duration `json:"renderThreshold"`
}

// DefaultAlertThresholds returns sensible default alert thresholds
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		SlowResponseThreshold:     2 * time.Second,
		CriticalResponseThreshold: 5 * time.Second,
		PaywallStepThreshold:      time.Second,
		RenderThreshold:           200 * time.Millisecond,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{
		thresholds: DefaultAlertThresholds(),
		config:     config,
		started:    time.Now(),
	}
}

// StartOperation creates a marker that reports back on Complete
func (t *Tracker) StartOperation(operation string) *Marker {
	t.mu.Lock()
	t.active++
	t.mu.Unlock()

	return &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true,
		tracker:   t,
	}
}

func (t *Tracker) record(marker *Marker) {
	snap := marker.snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	t.completed = append(t.completed, snap)
	if len(t.completed) > t.config.MaxMarkers {
		t.completed = t.completed[len(t.completed)-t.config.MaxMarkers:]
	}

	if !t.config.EnableAlerts {
		return
	}
	t.alerts = append(t.alerts, t.evaluateThresholds(snap)...)
	if len(t.alerts) > t.config.MaxAlerts {
		t.alerts = t.alerts[len(t.alerts)-t.config.MaxAlerts:]
	}
}

func (t *Tracker) evaluateThresholds(m *Marker) []*PerformanceAlert {
	var alerts []*PerformanceAlert

	if m.Duration > t.thresholds.CriticalResponseThreshold {
		alerts = append(alerts, newAlert(m, AlertCritical, "Operation exceeded critical response time threshold"))
	} else if m.Duration > t.thresholds.SlowResponseThreshold {
		alerts = append(alerts, newAlert(m, AlertWarning, "Operation exceeded slow response time threshold"))
	}

	switch {
	case strings.Contains(m.Operation, "paywall"):
		if m.Duration > t.thresholds.PaywallStepThreshold {
			alerts = append(alerts, newAlert(m, AlertWarning, "Paywall step exceeded threshold"))
		}
	case strings.Contains(m.Operation, "render"):
		if m.Duration > t.thresholds.RenderThreshold {
			alerts = append(alerts, newAlert(m, AlertWarning, "Render exceeded threshold"))
		}
	}

	return alerts
}

func newAlert(m *Marker, severity AlertSeverity, message string) *PerformanceAlert {
	return &PerformanceAlert{
		Timestamp: time.Now(),
		Severity:  severity,
		Operation: m.Operation,
		Actual:    m.Duration,
		Message:   message,
	}
}

// GetRecentMetrics returns completed markers that ended within the given window
func (t *Tracker) GetRecentMetrics(within time.Duration) []*Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var out []*Marker
	for _, m := range t.completed {
		if m.EndTime.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// GetAlerts returns a copy of the retained alerts
func (t *Tracker) GetAlerts() []*PerformanceAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*PerformanceAlert, len(t.alerts))
	copy(out, t.alerts)
	return out
}

// GetOverallStats returns overall tracker statistics
func (t *Tracker) GetOverallStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]any{
		"trackerUptime":       time.Since(t.started).String(),
		"activeOperations":    t.active,
		"completedOperations": len(t.completed),
		"totalAlerts":         len(t.alerts),
		"memoryUsageMB":       memStats.Alloc / (1024 * 1024),
	}
}
