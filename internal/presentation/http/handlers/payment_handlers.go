package handlers

import (
	"errors"
	"net/http"

	"github.com/ZineInsight/production-workspace-sub001/internal/application/services"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// PaymentHandlers serves payment setup outside the paywall modal
type PaymentHandlers struct {
	paymentService *services.PaymentService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewPaymentHandlers creates payment handlers with injected dependencies
func NewPaymentHandlers(paymentService *services.PaymentService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PaymentHandlers {
	return &PaymentHandlers{
		paymentService: paymentService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// GetConfig handles GET /payments/config
func (h *PaymentHandlers) GetConfig(c *gin.Context) {
	cfg, err := h.paymentService.StripeConfig(c.Request.Context())
	if err != nil {
		h.logger.Payment().Error("Payment config unavailable", "error", err.Error())
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PostSession handles POST /payments/session
func (h *PaymentHandlers) PostSession(c *gin.Context) {
	marker := h.perfTracker.StartOperation("payment_session_request")
	defer marker.Complete()

	var form services.PaymentForm
	if err := c.ShouldBind(&form); err != nil {
		marker.SetError(err)
		var vErr *apiclient.ValidationError
		if mapped := services.BindingError(err); errors.As(mapped, &vErr) {
			respondError(c, mapped)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	raw, err := h.paymentService.CreatePaymentSession(c.Request.Context(), form)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}
	marker.SetSuccess(true)
	respondRaw(c, raw)
}

// PostConfirm handles POST /payments/confirm
func (h *PaymentHandlers) PostConfirm(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" form:"session_id"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	raw, err := h.paymentService.ConfirmPayment(c.Request.Context(), req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondRaw(c, raw)
}
