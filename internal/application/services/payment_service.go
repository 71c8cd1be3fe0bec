package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// PaymentAPI is the part of the API connector used for payment setup
type PaymentAPI interface {
	StripeConfig(ctx context.Context) (json.RawMessage, error)
	CreatePaymentSession(ctx context.Context, payload any) (json.RawMessage, error)
	ConfirmPayment(ctx context.Context, sessionID string) (json.RawMessage, error)
	ClearCache()
}

// PaymentForm is what the visitor submits before paying
type PaymentForm struct {
	Name    string `json:"name" form:"name" binding:"required"`
	Email   string `json:"email" form:"email" binding:"required,email"`
	Plan    string `json:"plan" form:"plan"`
	Country string `json:"country,omitempty" form:"country"`
}

// Validate runs the form's binding rules on trimmed values. Handlers get the
// same rules from ShouldBind; services call it before any network call.
func (f PaymentForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	if err := binding.Validator.ValidateStruct(f); err != nil {
		return BindingError(err)
	}
	return nil
}

// BindingError converts validator failures into a *apiclient.ValidationError
// naming the first offending field. Other errors pass through unchanged.
func BindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	msg := "is required"
	if fe.Tag() == "email" {
		msg = "is not a valid address"
	}
	return &apiclient.ValidationError{Field: strings.ToLower(fe.Field()), Message: msg}
}

// CheckoutConfig is the public part of the payment provider configuration
type CheckoutConfig struct {
	PublishableKey string          `json:"publishable_key"`
	Raw            json.RawMessage `json:"config"`
}

// PaymentService handles payment setup outside the paywall modal
type PaymentService struct {
	api         PaymentAPI
	publicURL   string
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPaymentService creates a new payment service
func NewPaymentService(api PaymentAPI, publicURL string, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PaymentService {
	return &PaymentService{
		api:         api,
		publicURL:   strings.TrimRight(publicURL, "/"),
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// StripeConfig returns the publishable checkout configuration
func (s *PaymentService) StripeConfig(ctx context.Context) (*CheckoutConfig, error) {
	raw, err := s.api.StripeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment config: %w", err)
	}
	key := gjson.GetBytes(raw, "publishable_key").String()
	if key == "" {
		key = gjson.GetBytes(raw, "publishableKey").String()
	}
	return &CheckoutConfig{PublishableKey: key, Raw: raw}, nil
}

// CreatePaymentSession validates the form and creates a payment session
func (s *PaymentService) CreatePaymentSession(ctx context.Context, form PaymentForm) (json.RawMessage, error) {
	marker := s.perfTracker.StartOperation("payment:create_session")
	defer marker.Complete()

	if err := form.Validate(); err != nil {
		marker.SetError(err)
		return nil, err
	}

	payload := map[string]any{
		"name":        strings.TrimSpace(form.Name),
		"email":       strings.TrimSpace(form.Email),
		"plan":        form.Plan,
		"success_url": s.publicURL + "/dashboard?payment=success&session_id={CHECKOUT_SESSION_ID}",
		"cancel_url":  s.publicURL + "/dashboard?payment=cancelled",
	}
	if form.Country != "" {
		payload["country"] = form.Country
	}

	raw, err := s.api.CreatePaymentSession(ctx, payload)
	if err != nil {
		marker.SetError(err)
		s.logger.WithContext(logging.ChannelPayment, ctx).Error("Payment session creation failed", "plan", form.Plan, "error", err.Error())
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}
	s.logger.WithContext(logging.ChannelPayment, ctx).Info("Payment session created", "plan", form.Plan)
	marker.SetSuccess(true)
	return raw, nil
}

// ConfirmPayment confirms a checkout session and drops cached entitlements
func (s *PaymentService) ConfirmPayment(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, &apiclient.ValidationError{Field: "session_id", Message: "is required"}
	}
	raw, err := s.api.ConfirmPayment(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}
	s.api.ClearCache()
	s.logger.Payment().Info("Payment confirmed", "sessionId", sessionID)
	return raw, nil
}
