package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const maxTrackedVisitors = 10000

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per visitor. At most maxTrackedVisitors
// limiters are held; past that the least recently seen one is dropped.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*visitorLimiter
	rate        rate.Limit
	burst       int
	idle        time.Duration
	maxVisitors int
	logger      *logging.ChanneledLogger
	now         func() time.Time
}

// NewRateLimiter creates a per-visitor limiter allowing perSecond requests with burst
func NewRateLimiter(perSecond float64, burst int, logger *logging.ChanneledLogger) *RateLimiter {
	return &RateLimiter{
		limiters:    make(map[string]*visitorLimiter),
		rate:        rate.Limit(perSecond),
		burst:       burst,
		idle:        10 * time.Minute,
		maxVisitors: maxTrackedVisitors,
		logger:      logger,
		now:         time.Now,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.limiters[key]
	if !exists {
		if len(rl.limiters) >= rl.maxVisitors {
			rl.cleanupLocked(now)
		}
		if len(rl.limiters) >= rl.maxVisitors {
			rl.evictOldestLocked()
		}
		entry = &visitorLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// cleanupLocked drops limiters idle for longer than rl.idle. Caller holds rl.mu.
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idle {
			delete(rl.limiters, key)
		}
	}
}

// evictOldestLocked drops the least recently seen limiter. Caller holds rl.mu.
func (rl *RateLimiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range rl.limiters {
		if oldestKey == "" || entry.lastSeen.Before(oldest) {
			oldestKey, oldest = key, entry.lastSeen
		}
	}
	delete(rl.limiters, oldestKey)
}

// Handler rejects visitors over their allowance with 429
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetVisitorID(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.allow(key) {
			rl.logger.Paywall().Warn("Rate limit exceeded", "visitorId", key, "path", c.Request.URL.Path)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
