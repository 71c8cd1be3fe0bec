package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/environment"
	"github.com/gin-gonic/gin"
)

// Backend is the part of the API connector the health and admin routes read
type Backend interface {
	Profile() environment.Profile
	Health(ctx context.Context) (json.RawMessage, error)
	CacheStats() apiclient.CacheStats
	ClearCache()
}

// HealthHandlers report liveness and the active environment
type HealthHandlers struct {
	backend Backend
	started time.Time
}

// NewHealthHandlers creates health handlers
func NewHealthHandlers(backend Backend) *HealthHandlers {
	return &HealthHandlers{backend: backend, started: time.Now()}
}

// GetHealth handles GET /health. With ?deep=1 the backend health route is
// checked as well.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	profile := h.backend.Profile()
	resp := gin.H{
		"status":      "ok",
		"environment": profile.Name,
		"apiBaseUrl":  profile.APIBaseURL,
		"cacheSize":   h.backend.CacheStats().Size,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
	}

	if c.Query("deep") != "" {
		if _, err := h.backend.Health(c.Request.Context()); err != nil {
			resp["status"] = "degraded"
			resp["backend"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp["backend"] = "ok"
	}

	c.JSON(http.StatusOK, resp)
}
