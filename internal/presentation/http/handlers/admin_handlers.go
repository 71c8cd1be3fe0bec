package handlers

import (
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// AdminHandlers expose cache, log level and performance controls
type AdminHandlers struct {
	backend     Backend
	token       string
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAdminHandlers creates admin handlers. An empty token disables them.
func NewAdminHandlers(backend Backend, token string, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AdminHandlers {
	return &AdminHandlers{
		backend:     backend,
		token:       token,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// AuthMiddleware requires "Authorization: Bearer <ADMIN_TOKEN>"
func (h *AdminHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin routes are disabled; set ADMIN_TOKEN"})
			return
		}
		supplied := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.token)) != 1 {
			h.logger.Auth().Warn("Rejected admin request", "path", c.Request.URL.Path, "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// GetCache handles GET /admin/cache
func (h *AdminHandlers) GetCache(c *gin.Context) {
	c.JSON(http.StatusOK, h.backend.CacheStats())
}

// DeleteCache handles DELETE /admin/cache
func (h *AdminHandlers) DeleteCache(c *gin.Context) {
	cleared := h.backend.CacheStats().Size
	h.backend.ClearCache()
	h.logger.Cache().Info("Response cache cleared by admin", "entries", cleared)
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// GetLogLevels handles GET /admin/logs/levels
func (h *AdminHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel handles POST /admin/logs/levels
func (h *AdminHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	level := logging.ParseLevel(req.Level)
	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.System().Info("Log level changed", "channel", req.Channel, "level", level.String())
	c.JSON(http.StatusOK, gin.H{"channel": req.Channel, "level": level.String()})
}

// StreamLogs handles GET /admin/logs/stream as server-sent events.
// Query: channel (default all), level (default INFO).
func (h *AdminHandlers) StreamLogs(c *gin.Context) {
	broadcaster := h.logger.Broadcaster()
	if broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "log streaming is disabled"})
		return
	}

	client := broadcaster.NewClient(logging.AppliedFilters{
		Channel: logging.Channel(c.DefaultQuery("channel", "all")),
		Level:   logging.ParseLevel(c.DefaultQuery("level", "INFO")),
	})
	defer broadcaster.UnregisterClient(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetPerformance handles GET /admin/performance
func (h *AdminHandlers) GetPerformance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":  h.perfTracker.GetOverallStats(),
		"alerts": h.perfTracker.GetAlerts(),
	})
}
