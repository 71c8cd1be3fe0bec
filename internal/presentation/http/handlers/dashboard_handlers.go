package handlers

import (
	"net/http"

	"github.com/ZineInsight/production-workspace-sub001/internal/application/services"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/templates"
	"github.com/gin-gonic/gin"
)

// DashboardHandlers serves the dashboard page
type DashboardHandlers struct {
	dashboardService *services.DashboardService
	paywallService   *services.PaywallService
	environment      string
	logger           *logging.ChanneledLogger
	perfTracker      *performance.Tracker
}

// NewDashboardHandlers creates dashboard handlers with injected dependencies
func NewDashboardHandlers(dashboardService *services.DashboardService, paywallService *services.PaywallService, environment string, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DashboardHandlers {
	return &DashboardHandlers{
		dashboardService: dashboardService,
		paywallService:   paywallService,
		environment:      environment,
		logger:           logger,
		perfTracker:      perfTracker,
	}
}

// GetDashboard handles GET /dashboard, including checkout return visits
func (h *DashboardHandlers) GetDashboard(c *gin.Context) {
	marker := h.perfTracker.StartOperation("dashboard_render_request")
	defer marker.Complete()
	ctx := c.Request.Context()

	// Confirm a completed payment first so the limitations fetched below reflect it.
	ret, err := h.paywallService.HandleReturn(ctx, c.Request.URL.Query())
	if err != nil {
		h.logger.WithContext(logging.ChannelDashboard, ctx).Warn("Checkout return handling failed", "error", err.Error())
	}

	doc, err := h.dashboardService.Page(ctx)
	if err != nil {
		h.logger.WithContext(logging.ChannelDashboard, ctx).Warn("Dashboard rendered without limitations", "error", err.Error())
	}
	if ret.Notice != nil {
		doc.Notify(*ret.Notice)
	}

	html, err := templates.RenderDashboard(templates.DashboardPage{Document: doc, Environment: h.environment})
	if err != nil {
		marker.SetError(err)
		h.logger.Dashboard().Error("Dashboard render failed", "error", err.Error())
		c.String(http.StatusInternalServerError, "render failed")
		return
	}

	marker.SetSuccess(true)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
