package handlers

import (
	"github.com/ZineInsight/production-workspace-sub001/internal/application/services"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/paywall"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/ui"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// PaywallHandlers serves the htmx paywall modal flow
type PaywallHandlers struct {
	paywallService *services.PaywallService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewPaywallHandlers creates paywall handlers with injected dependencies
func NewPaywallHandlers(paywallService *services.PaywallService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PaywallHandlers {
	return &PaywallHandlers{
		paywallService: paywallService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// PostOpen handles POST /paywall/open
func (h *PaywallHandlers) PostOpen(c *gin.Context) {
	marker := h.perfTracker.StartOperation("paywall_open_request")
	defer marker.Complete()

	var form struct {
		PaywallType string `form:"paywall_type" json:"paywall_type" binding:"required"`
		ResourceID  string `form:"resource_id" json:"resource_id"`
	}
	view := NewHTMXView()
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Paywall().Debug("Paywall open request binding failed", "error", err.Error())
		marker.SetError(err)
		view.Notify(ui.Error("This offer is not available."))
		view.Write(c, "")
		return
	}

	out, err := h.paywallService.Open(c.Request.Context(), services.OpenRequest{
		PaywallType: paywall.Type(form.PaywallType),
		ResourceID:  form.ResourceID,
	}, view)
	if err != nil {
		marker.SetError(err)
		view.Write(c, "")
		return
	}

	marker.SetSuccess(true)
	if out.State == paywall.StateGranted {
		view.Write(c, TriggerPaywallGranted)
		return
	}
	view.Write(c, "")
}

// PostConfirm handles POST /paywall/:sessionId/confirm
func (h *PaywallHandlers) PostConfirm(c *gin.Context) {
	marker := h.perfTracker.StartOperation("paywall_confirm_request")
	defer marker.Complete()

	view := NewHTMXView()
	if _, err := h.paywallService.Confirm(c.Request.Context(), c.Param("sessionId"), view); err != nil {
		marker.SetError(err)
	} else {
		marker.SetSuccess(true)
	}
	view.Write(c, "")
}

// PostDismiss handles POST /paywall/:sessionId/dismiss
func (h *PaywallHandlers) PostDismiss(c *gin.Context) {
	view := NewHTMXView()
	h.paywallService.Dismiss(c.Request.Context(), c.Param("sessionId"), view)
	view.Write(c, "")
}
