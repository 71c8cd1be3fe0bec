package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ZineInsight/production-workspace-sub001/internal/application/services"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// AppHandlers proxy the scoring, career and user routes
type AppHandlers struct {
	appService *services.AppService
	logger     *logging.ChanneledLogger
}

// NewAppHandlers creates app handlers with injected dependencies
func NewAppHandlers(appService *services.AppService, logger *logging.ChanneledLogger) *AppHandlers {
	return &AppHandlers{appService: appService, logger: logger}
}

type fetchFunc func(ctx context.Context) (json.RawMessage, error)

type sendFunc func(ctx context.Context, body json.RawMessage) (json.RawMessage, error)

func (h *AppHandlers) get(fetch fetchFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := fetch(c.Request.Context())
		h.reply(c, raw, err)
	}
}

func (h *AppHandlers) send(forward sendFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		raw, err := forward(c.Request.Context(), body)
		h.reply(c, raw, err)
	}
}

func (h *AppHandlers) reply(c *gin.Context, raw json.RawMessage, err error) {
	if err != nil {
		h.logger.WithContext(logging.ChannelAPI, c.Request.Context()).Warn("Passthrough request failed", "path", c.FullPath(), "error", err.Error())
		respondError(c, err)
		return
	}
	respondRaw(c, raw)
}

func (h *AppHandlers) GetQuestions() gin.HandlerFunc      { return h.get(h.appService.Questions) }
func (h *AppHandlers) GetCountries() gin.HandlerFunc      { return h.get(h.appService.Countries) }
func (h *AppHandlers) GetCareerProfiles() gin.HandlerFunc { return h.get(h.appService.CareerProfiles) }
func (h *AppHandlers) GetUserProfile() gin.HandlerFunc    { return h.get(h.appService.UserProfile) }
func (h *AppHandlers) GetUserSession() gin.HandlerFunc    { return h.get(h.appService.UserSession) }
func (h *AppHandlers) GetUserHistory() gin.HandlerFunc    { return h.get(h.appService.UserHistory) }

func (h *AppHandlers) PostScore() gin.HandlerFunc         { return h.send(h.appService.CalculateScore) }
func (h *AppHandlers) PostAnalyzeCareer() gin.HandlerFunc { return h.send(h.appService.AnalyzeCareer) }
func (h *AppHandlers) PostSkillMatches() gin.HandlerFunc  { return h.send(h.appService.SkillMatches) }
func (h *AppHandlers) PutPreferences() gin.HandlerFunc    { return h.send(h.appService.UpdatePreferences) }

// GetGuide handles GET /app/guides/:country
func (h *AppHandlers) GetGuide(c *gin.Context) {
	raw, err := h.appService.Guide(c.Request.Context(), c.Param("country"))
	h.reply(c, raw, err)
}

// GetBootstrap handles GET /app/bootstrap. Parts that failed are inlined as
// {"error", "endpoint"} objects.
func (h *AppHandlers) GetBootstrap(c *gin.Context) {
	c.JSON(http.StatusOK, h.appService.Bootstrap(c.Request.Context()))
}
