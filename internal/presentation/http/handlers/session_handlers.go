package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/visitorstore"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// TokenStore persists per-visitor values
type TokenStore interface {
	Set(ctx context.Context, visitorID, key, value string) error
	Delete(ctx context.Context, visitorID, key string) error
}

// SessionHandlers store and forget the visitor's backend auth token
type SessionHandlers struct {
	store  TokenStore
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewSessionHandlers creates session handlers with injected dependencies
func NewSessionHandlers(store TokenStore, logger *logging.ChanneledLogger) *SessionHandlers {
	return &SessionHandlers{store: store, logger: logger, now: time.Now}
}

// PostToken handles POST /session/token
func (h *SessionHandlers) PostToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if !security.TokenUsable(req.Token, h.now()) {
		h.logger.Auth().Debug("Rejected expired token", "token", logging.SanitizeToken(req.Token))
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is expired"})
		return
	}

	visitorID := middleware.GetVisitorID(c)
	if err := h.store.Set(c.Request.Context(), visitorID, visitorstore.TokenKey, req.Token); err != nil {
		h.logger.Auth().Error("Failed to store visitor token", "visitorId", visitorID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store token"})
		return
	}

	info := security.InspectToken(req.Token)
	resp := gin.H{"stored": true, "subject": info.Subject}
	if !info.ExpiresAt.IsZero() {
		resp["expiresAt"] = info.ExpiresAt.UTC().Format(time.RFC3339)
	}
	h.logger.Auth().Info("Visitor token stored", "visitorId", visitorID, "jwt", info.IsJWT)
	c.JSON(http.StatusOK, resp)
}

// DeleteToken handles DELETE /session/token
func (h *SessionHandlers) DeleteToken(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	if err := h.store.Delete(c.Request.Context(), visitorID, visitorstore.TokenKey); err != nil {
		h.logger.Auth().Error("Failed to delete visitor token", "visitorId", visitorID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete token"})
		return
	}
	c.Status(http.StatusNoContent)
}
