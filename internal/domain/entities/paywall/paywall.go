// Package paywall defines the purchasable unlocks offered to visitors and the
// states a single paywall interaction moves through.
package paywall

import (
	"fmt"
	"strings"
)

// Type names a purchasable unlock
type Type string

const (
	TypeUnlimitedAnalyses Type = "unlimited_analyses"
	TypeCountryAccess     Type = "country_access"
	TypePDFExport         Type = "pdf_export"
	TypeAIInsights        Type = "ai_insights"
	TypePremiumGuide      Type = "premium_guide"
	TypeProUpgrade        Type = "pro_upgrade"
)

// AllTypes lists every known paywall type
var AllTypes = []Type{
	TypeUnlimitedAnalyses, TypeCountryAccess, TypePDFExport,
	TypeAIInsights, TypePremiumGuide, TypeProUpgrade,
}

// Valid reports whether t is a known paywall type
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType validates a raw paywall type
func ParseType(raw string) (Type, error) {
	t := Type(strings.TrimSpace(raw))
	if !t.Valid() {
		return "", fmt.Errorf("unknown paywall type %q", raw)
	}
	return t, nil
}

// Session is the backend's description of a purchasable unlock
type Session struct {
	SessionID   string   `json:"session_id"`
	PaywallType Type     `json:"paywall_type"`
	ResourceID  string   `json:"resource_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"` // minor units
	Currency    string   `json:"currency"`
	Features    []string `json:"features"`
}

// FormattedPrice renders the price in major units, e.g. "9.99 EUR".
func (s Session) FormattedPrice() string {
	sign := ""
	price := s.Price
	if price < 0 {
		sign = "-"
		price = -price
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, price/100, price%100, strings.ToUpper(s.Currency))
}

// State is the position of one interaction in the checkout flow
type State string

const (
	StateIdle                 State = "idle"
	StateChecking             State = "checking"
	StateGranted              State = "granted"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StatePurchasing           State = "purchasing"
	StateRedirected           State = "redirected"
	StateFailed               State = "failed"
)

var transitions = map[State][]State{
	StateIdle:                 {StateChecking},
	StateChecking:             {StateGranted, StateAwaitingConfirmation, StateFailed},
	StateGranted:              {StateIdle},
	StateAwaitingConfirmation: {StatePurchasing, StateIdle},
	StatePurchasing:           {StateRedirected, StateFailed, StateIdle},
	StateFailed:               {StatePurchasing, StateIdle},
	StateRedirected:           {},
}

// CanTransition reports whether moving from one state to another is allowed
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Interaction tracks one open paywall: the session shown and where the flow stands.
type Interaction struct {
	Session Session
	State   State
}

// Advance moves the interaction to next, refusing illegal transitions
func (i *Interaction) Advance(next State) error {
	if !CanTransition(i.State, next) {
		return fmt.Errorf("paywall %s: illegal transition %s -> %s", i.Session.SessionID, i.State, next)
	}
	i.State = next
	return nil
}
