package middleware

import (
	"net/http"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/visitorstore"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

const (
	// VisitorCookie holds the anonymous visitor ID
	VisitorCookie       = "zi_visitor"
	visitorCookieMaxAge = 365 * 24 * 60 * 60

	visitorIDKey = "visitorId"
	requestIDKey = "requestId"
)

// VisitorMiddleware assigns every browser a stable visitor ID and tags the
// request context with it and with a request ID.
func VisitorMiddleware(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitorID, err := c.Cookie(VisitorCookie)
		if err != nil || !security.IsULID(visitorID) {
			visitorID = security.GenerateULID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(VisitorCookie, visitorID, visitorCookieMaxAge, "/", "", secureCookies, true)
		}

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = security.GenerateULID()
		}
		c.Header("X-Request-ID", requestID)

		ctx := visitorstore.ContextWithVisitorID(c.Request.Context(), visitorID)
		ctx = logging.ContextWithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(visitorIDKey, visitorID)
		c.Set(requestIDKey, requestID)
		c.Next()
	}
}

// GetVisitorID returns the visitor ID set by VisitorMiddleware
func GetVisitorID(c *gin.Context) string {
	return c.GetString(visitorIDKey)
}
