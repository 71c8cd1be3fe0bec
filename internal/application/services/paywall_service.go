// Package services provides application-level services that orchestrate
// the backend API connector and the domain entities for the web front.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/paywall"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/ui"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/metrics"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/visitorstore"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
)

var (
	// ErrUnknownSession is returned when a paywall session is not open
	ErrUnknownSession = errors.New("paywall session not found")
	// ErrNoCheckoutURL is returned when checkout creation returned no redirect
	ErrNoCheckoutURL = errors.New("checkout session returned no redirect URL")
)

const (
	abandonedSessionTTL = 30 * time.Minute
	// confirmedSessionMemory bounds how many checkout sessions are
	// remembered as already confirmed.
	confirmedSessionMemory = 4096
)

// View is what the paywall flow drives: a modal, notifications and navigation
type View interface {
	// ShowModal renders the modal for session, replacing any modal already
	// shown for the same session ID.
	ShowModal(session paywall.Session)
	RemoveModal(sessionID string)
	Notify(n ui.Notification)
	Redirect(url string)
}

// PaywallAPI is the part of the API connector the paywall flow needs
type PaywallAPI interface {
	CheckAccess(ctx context.Context, paywallType, resourceID string) (bool, error)
	CreatePaywallSession(ctx context.Context, paywallType, resourceID string) (json.RawMessage, error)
	CreateCheckoutSession(ctx context.Context, req apiclient.CheckoutRequest, idempotencyKey string) (string, error)
	ConfirmPayment(ctx context.Context, sessionID string) (json.RawMessage, error)
	ClearCache()
}

// OpenRequest names the unlock a visitor asked for
type OpenRequest struct {
	PaywallType paywall.Type
	ResourceID  string
}

// Outcome is where an interaction ended up after a call
type Outcome struct {
	State       paywall.State
	SessionID   string
	RedirectURL string
}

// ReturnResult describes a checkout return visit
type ReturnResult struct {
	Status    string // "success", "cancelled" or "" when not a return visit
	SessionID string
	Confirmed bool
	Notice    *ui.Notification
}

type openSession struct {
	interaction    paywall.Interaction
	visitorID      string
	idempotencyKey string
	openedAt       time.Time
}

// PaywallService runs the entitlement check and checkout flow
type PaywallService struct {
	api         PaywallAPI
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	metrics     *metrics.Metrics
	successURL  string
	cancelURL   string
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*openSession

	confirmed *lru.Cache[string, time.Time]
}

// NewPaywallService creates the paywall controller. publicURL is where
// checkout returns the visitor.
func NewPaywallService(api PaywallAPI, publicURL string, logger *logging.ChanneledLogger, perfTracker *performance.Tracker, m *metrics.Metrics) *PaywallService {
	base := strings.TrimRight(publicURL, "/")
	confirmed, _ := lru.New[string, time.Time](confirmedSessionMemory)
	return &PaywallService{
		api:         api,
		logger:      logger,
		perfTracker: perfTracker,
		metrics:     m,
		successURL:  base + "/dashboard?payment=success&session_id={CHECKOUT_SESSION_ID}",
		cancelURL:   base + "/dashboard?payment=cancelled",
		now:         time.Now,
		sessions:    make(map[string]*openSession),
		confirmed:   confirmed,
	}
}

// Open checks the entitlement and either grants it or shows the paywall modal
func (s *PaywallService) Open(ctx context.Context, req OpenRequest, view View) (Outcome, error) {
	marker := s.perfTracker.StartOperation("paywall:open")
	defer marker.Complete()
	marker.AddMetadata("paywallType", string(req.PaywallType))

	if !req.PaywallType.Valid() {
		err := &apiclient.ValidationError{Field: "paywall_type", Message: fmt.Sprintf("unknown paywall type %q", req.PaywallType)}
		marker.SetError(err)
		view.Notify(ui.Error("This offer is not available."))
		return Outcome{State: paywall.StateIdle}, err
	}

	logger := s.logger.WithContext(logging.ChannelPaywall, ctx).With(
		"paywallType", req.PaywallType, "resourceId", req.ResourceID)

	hasAccess, err := s.api.CheckAccess(ctx, string(req.PaywallType), req.ResourceID)
	if err != nil {
		marker.SetError(err)
		s.metrics.ObservePaywall(string(req.PaywallType), "check_failed")
		logger.Error("Entitlement check failed", "error", err.Error())
		view.Notify(ui.Error("We could not check your access. Please try again."))
		return Outcome{State: paywall.StateFailed}, fmt.Errorf("failed to check access: %w", err)
	}
	if hasAccess {
		s.metrics.ObservePaywall(string(req.PaywallType), "granted")
		logger.Info("Access already granted")
		marker.SetSuccess(true)
		return Outcome{State: paywall.StateGranted}, nil
	}

	raw, err := s.api.CreatePaywallSession(ctx, string(req.PaywallType), req.ResourceID)
	var session paywall.Session
	if err == nil {
		session, err = apiclient.Decode[paywall.Session](raw, nil)
	}
	if err == nil && session.SessionID == "" {
		err = errors.New("paywall session has no session_id")
	}
	if err != nil {
		marker.SetError(err)
		s.metrics.ObservePaywall(string(req.PaywallType), "session_failed")
		logger.Error("Failed to create paywall session", "error", err.Error())
		view.Notify(ui.Error("This offer could not be loaded. Please try again."))
		return Outcome{State: paywall.StateFailed}, fmt.Errorf("failed to create paywall session: %w", err)
	}
	if session.PaywallType == "" {
		session.PaywallType = req.PaywallType
	}
	if session.ResourceID == "" {
		session.ResourceID = req.ResourceID
	}

	s.mu.Lock()
	s.sweepLocked()
	if _, exists := s.sessions[session.SessionID]; !exists {
		s.sessions[session.SessionID] = &openSession{
			interaction:    paywall.Interaction{Session: session, State: paywall.StateAwaitingConfirmation},
			visitorID:      visitorstore.VisitorIDFromContext(ctx),
			idempotencyKey: security.GenerateIdempotencyKey(),
			openedAt:       s.now(),
		}
	}
	s.mu.Unlock()

	view.ShowModal(session)
	s.metrics.ObservePaywall(string(req.PaywallType), "shown")
	logger.Info("Paywall shown", "sessionId", session.SessionID)
	marker.SetSuccess(true)
	return Outcome{State: paywall.StateAwaitingConfirmation, SessionID: session.SessionID}, nil
}

// Confirm starts checkout for an open session and redirects on success.
// On failure the modal stays open so the visitor can retry.
func (s *PaywallService) Confirm(ctx context.Context, sessionID string, view View) (Outcome, error) {
	marker := s.perfTracker.StartOperation("paywall:confirm")
	defer marker.Complete()

	s.mu.Lock()
	rec, err := s.lookupLocked(ctx, sessionID)
	if err == nil {
		err = rec.interaction.Advance(paywall.StatePurchasing)
	}
	if err != nil {
		s.mu.Unlock()
		marker.SetError(err)
		view.Notify(ui.Error("This offer has expired. Please open it again."))
		return Outcome{State: paywall.StateIdle, SessionID: sessionID}, err
	}
	session := rec.interaction.Session
	key := rec.idempotencyKey
	s.mu.Unlock()

	logger := s.logger.WithContext(logging.ChannelPaywall, ctx).With(
		"sessionId", sessionID, "paywallType", session.PaywallType)

	checkoutURL, err := s.api.CreateCheckoutSession(ctx, apiclient.CheckoutRequest{
		PaywallType:      string(session.PaywallType),
		PaywallSessionID: sessionID,
		ResourceID:       apiclient.OptionalString(session.ResourceID),
		SuccessURL:       s.successURL,
		CancelURL:        s.cancelURL,
	}, key)
	if err == nil && checkoutURL == "" {
		err = ErrNoCheckoutURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]

	if err != nil {
		if ok {
			_ = rec.interaction.Advance(paywall.StateFailed)
		}
		marker.SetError(err)
		s.metrics.ObservePaywall(string(session.PaywallType), "checkout_failed")
		logger.Error("Checkout session creation failed", "error", err.Error())
		view.Notify(ui.Error("Payment could not be started. Please try again."))
		return Outcome{State: paywall.StateFailed, SessionID: sessionID}, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if ok {
		_ = rec.interaction.Advance(paywall.StateRedirected)
		delete(s.sessions, sessionID)
	}
	view.RemoveModal(sessionID)
	view.Redirect(checkoutURL)
	s.metrics.ObservePaywall(string(session.PaywallType), "redirected")
	logger.Info("Redirecting to checkout")
	marker.SetSuccess(true)
	return Outcome{State: paywall.StateRedirected, SessionID: sessionID, RedirectURL: checkoutURL}, nil
}

// Dismiss closes the modal and forgets the session
func (s *PaywallService) Dismiss(ctx context.Context, sessionID string, view View) bool {
	s.mu.Lock()
	_, err := s.lookupLocked(ctx, sessionID)
	if err == nil {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	view.RemoveModal(sessionID)
	if err == nil {
		s.logger.Paywall().Debug("Paywall dismissed", "sessionId", sessionID)
	}
	return err == nil
}

// HandleReturn processes the payment/session_id parameters checkout appends
// when sending the visitor back. A checkout session is confirmed with the
// backend once; reloads of the same return URL reuse that result.
func (s *PaywallService) HandleReturn(ctx context.Context, query url.Values) (ReturnResult, error) {
	status := query.Get("payment")
	result := ReturnResult{Status: status, SessionID: query.Get("session_id")}

	switch status {
	case "success":
		if result.SessionID == "" {
			notice := ui.Success("Payment received. Your access will update shortly.")
			result.Notice = &notice
			return result, nil
		}
		if at, ok := s.confirmed.Get(result.SessionID); ok {
			// Reloaded return URL: the backend already knows and the cache is fresh.
			result.Confirmed = true
			notice := ui.Success("Payment confirmed. Your access is unlocked.")
			result.Notice = &notice
			s.logger.Payment().Debug("Payment already confirmed", "sessionId", result.SessionID, "confirmedAt", at)
			return result, nil
		}
		if _, err := s.api.ConfirmPayment(ctx, result.SessionID); err != nil {
			s.logger.Payment().Error("Payment confirmation failed", "sessionId", result.SessionID, "error", err.Error())
			notice := ui.Error("We could not confirm your payment yet. Please refresh in a moment.")
			result.Notice = &notice
			return result, fmt.Errorf("failed to confirm payment: %w", err)
		}
		s.confirmed.Add(result.SessionID, s.now())
		s.api.ClearCache()
		result.Confirmed = true
		notice := ui.Success("Payment confirmed. Your access is unlocked.")
		result.Notice = &notice
		s.logger.Payment().Info("Payment confirmed", "sessionId", result.SessionID)
	case "cancelled":
		notice := ui.Info("Payment cancelled. You have not been charged.")
		result.Notice = &notice
		s.logger.Payment().Info("Payment cancelled by visitor", "sessionId", result.SessionID)
	default:
		result.Status = ""
	}
	return result, nil
}

// Session returns a copy of an open interaction
func (s *PaywallService) Session(sessionID string) (paywall.Interaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return paywall.Interaction{}, false
	}
	return rec.interaction, true
}

// OpenSessions counts interactions awaiting a decision
func (s *PaywallService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// lookupLocked finds a session owned by the visitor in ctx. Caller holds s.mu.
func (s *PaywallService) lookupLocked(ctx context.Context, sessionID string) (*openSession, error) {
	rec, ok := s.sessions[sessionID]
	if !ok || rec.visitorID != visitorstore.VisitorIDFromContext(ctx) {
		return nil, ErrUnknownSession
	}
	return rec, nil
}

// SweepAbandoned drops sessions left open past the abandonment window
func (s *PaywallService) SweepAbandoned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// sweepLocked drops sessions left open past abandonedSessionTTL. Caller holds s.mu.
func (s *PaywallService) sweepLocked() int {
	cutoff := s.now().Add(-abandonedSessionTTL)
	var n int
	for id, rec := range s.sessions {
		if rec.openedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
