package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// Backend routes, relative to the active base URL.
const (
	PathHealth                = "/health"
	PathCalculateScore        = "/calculate-score"
	PathQuestions             = "/questions"
	PathCountries             = "/countries"
	PathGuides                = "/guides/"
	PathAnalyzeCareer         = "/analyze-career"
	PathCareerProfiles        = "/career-profiles"
	PathSkillMatches          = "/skill-matches"
	PathStripeConfig          = "/stripe-config"
	PathCreatePaymentSession  = "/create-payment-session"
	PathConfirmPayment        = "/confirm-payment"
	PathUserProfile           = "/user-profile"
	PathUserSession           = "/user-session"
	PathUserPreferences       = "/user-preferences"
	PathUserHistory           = "/user-history"
	PathDashboardLimitations  = "/auth/dashboard/limitations"
	PathPaywallCheckAccess    = "/auth/paywall/check-access"
	PathPaywallCreateSession  = "/auth/paywall/create-session"
	PathCreateCheckoutSession = "/api/payments/create-checkout-session"
)

// Health calls GET /health
func (c *Connector) Health(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, PathHealth, http.MethodGet, nil, nil)
}

// Questions fetches the questionnaire, retrying transient failures
func (c *Connector) Questions(ctx context.Context) (json.RawMessage, error) {
	return c.RequestWithRetry(ctx, PathQuestions, http.MethodGet, nil, 0)
}

// Countries fetches the country catalogue, retrying transient failures
func (c *Connector) Countries(ctx context.Context) (json.RawMessage, error) {
	return c.RequestWithRetry(ctx, PathCountries, http.MethodGet, nil, 0)
}

// Guide fetches the guide for a country code
func (c *Connector) Guide(ctx context.Context, country string) (json.RawMessage, error) {
	return c.Request(ctx, PathGuides+url.PathEscape(country), http.MethodGet, nil, nil)
}

// CalculateScore posts questionnaire answers
func (c *Connector) CalculateScore(ctx context.Context, answers json.RawMessage) (json.RawMessage, error) {
	return c.Request(ctx, PathCalculateScore, http.MethodPost, answers, nil)
}

// AnalyzeCareer posts a career analysis request
func (c *Connector) AnalyzeCareer(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.Request(ctx, PathAnalyzeCareer, http.MethodPost, payload, nil)
}

// CareerProfiles lists career profiles
func (c *Connector) CareerProfiles(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, PathCareerProfiles, http.MethodGet, nil, nil)
}

// SkillMatches posts a skill matching request
func (c *Connector) SkillMatches(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.Request(ctx, PathSkillMatches, http.MethodPost, payload, nil)
}

// StripeConfig fetches the publishable checkout configuration
func (c *Connector) StripeConfig(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, PathStripeConfig, http.MethodGet, nil, nil)
}

// CreatePaymentSession posts a payment session request
func (c *Connector) CreatePaymentSession(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.Request(ctx, PathCreatePaymentSession, http.MethodPost, payload, nil)
}

// ConfirmPayment confirms a completed checkout session
func (c *Connector) ConfirmPayment(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.Request(ctx, PathConfirmPayment, http.MethodPost, map[string]string{"session_id": sessionID}, nil)
}

// UserProfile fetches the visitor's profile
func (c *Connector) UserProfile(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, PathUserProfile, http.MethodGet, nil, nil)
}

// UserSession fetches the visitor's session
func (c *Connector) UserSession(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, PathUserSession, http.MethodGet, nil, nil)
}

// UpdatePreferences replaces the visitor's preferences
func (c *Connector) UpdatePreferences(ctx context.Context, prefs json.RawMessage) (json.RawMessage, error) {
	return c.Request(ctx, PathUserPreferences, http.MethodPut, prefs, nil)
}

// UserHistory fetches the visitor's analysis history
func (c *Connector) UserHistory(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, PathUserHistory, http.MethodGet, nil, nil)
}

// DashboardLimitations fetches the visitor's entitlements
func (c *Connector) DashboardLimitations(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, PathDashboardLimitations, http.MethodGet, nil, nil)
}

// CheckAccess asks whether the visitor already holds an entitlement
func (c *Connector) CheckAccess(ctx context.Context, paywallType, resourceID string) (bool, error) {
	body := map[string]any{"paywall_type": paywallType, "resource_id": OptionalString(resourceID)}
	raw, err := c.Request(ctx, PathPaywallCheckAccess, http.MethodPost, body, nil)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(raw, "has_access").Bool(), nil
}

// CreatePaywallSession creates the server-side paywall session
func (c *Connector) CreatePaywallSession(ctx context.Context, paywallType, resourceID string) (json.RawMessage, error) {
	body := map[string]any{"paywall_type": paywallType, "resource_id": OptionalString(resourceID)}
	return c.Request(ctx, PathPaywallCreateSession, http.MethodPost, body, nil)
}

// CheckoutRequest is the body of a checkout session creation
type CheckoutRequest struct {
	PaywallType      string  `json:"paywall_type"`
	PaywallSessionID string  `json:"paywall_session_id"`
	ResourceID       *string `json:"resource_id"`
	SuccessURL       string  `json:"success_url"`
	CancelURL        string  `json:"cancel_url"`
}

// CreateCheckoutSession creates a hosted checkout session and returns its URL
func (c *Connector) CreateCheckoutSession(ctx context.Context, req CheckoutRequest, idempotencyKey string) (string, error) {
	opts := &Options{}
	if idempotencyKey != "" {
		opts.Headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	raw, err := c.Request(ctx, PathCreateCheckoutSession, http.MethodPost, req, opts)
	if err != nil {
		return "", err
	}
	return CheckoutURL(raw), nil
}

// CheckoutURL reads checkout_url, falling back to url.
func CheckoutURL(raw json.RawMessage) string {
	if u := gjson.GetBytes(raw, "checkout_url").String(); u != "" {
		return u
	}
	return gjson.GetBytes(raw, "url").String()
}

// OptionalString returns nil for an empty string so it encodes as JSON null.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
