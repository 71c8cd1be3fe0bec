// Package dashboard defines visitor entitlements and the element model the
// dashboard page is rendered from.
package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the visitor's subscription tier
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

const (
	unlimitedLiteral = "unlimited"
	allLiteral       = "all"
)

// Quota is a counted allowance that may be unlimited. The zero value is
// unknown and never counts as exhausted.
type Quota struct {
	Unlimited bool
	Remaining int
	known     bool
}

// UnlimitedQuota returns a quota that never runs out
func UnlimitedQuota() Quota { return Quota{Unlimited: true, known: true} }

// LimitedQuota returns a quota with n uses left
func LimitedQuota(n int) Quota { return Quota{Remaining: n, known: true} }

// Exhausted reports whether no uses remain
func (q Quota) Exhausted() bool {
	return q.known && !q.Unlimited && q.Remaining <= 0
}

// MarshalJSON encodes an integer, the literal "unlimited", or null when unknown
func (q Quota) MarshalJSON() ([]byte, error) {
	switch {
	case !q.known:
		return []byte("null"), nil
	case q.Unlimited:
		return json.Marshal(unlimitedLiteral)
	default:
		return json.Marshal(q.Remaining)
	}
}

// UnmarshalJSON accepts an integer, null, or the literal "unlimited".
// Negative counts mean unlimited.
func (q *Quota) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = Quota{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if !strings.EqualFold(s, unlimitedLiteral) {
			return fmt.Errorf("invalid quota %q", s)
		}
		*q = UnlimitedQuota()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid quota: %w", err)
	}
	if n < 0 {
		*q = UnlimitedQuota()
		return nil
	}
	*q = LimitedQuota(n)
	return nil
}

// CountryAccess is either every country or an explicit list of codes
type CountryAccess struct {
	All   bool
	Codes []string
}

// AllCountries grants access to every country
func AllCountries() CountryAccess { return CountryAccess{All: true} }

// Known is false when the backend sent no country information
func (c CountryAccess) Known() bool {
	return c.All || c.Codes != nil
}

// Allows reports whether code is accessible. Codes compare case-insensitively.
func (c CountryAccess) Allows(code string) bool {
	if c.All {
		return true
	}
	for _, allowed := range c.Codes {
		if strings.EqualFold(allowed, code) {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the literal "all" or a list of codes
func (c CountryAccess) MarshalJSON() ([]byte, error) {
	if c.All {
		return json.Marshal(allLiteral)
	}
	codes := c.Codes
	if codes == nil {
		codes = []string{}
	}
	return json.Marshal(codes)
}

// UnmarshalJSON accepts "all", a list of codes, or null
func (c *CountryAccess) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = CountryAccess{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if !strings.EqualFold(s, allLiteral) {
			return fmt.Errorf("invalid countries_accessible %q", s)
		}
		*c = AllCountries()
		return nil
	}
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return fmt.Errorf("invalid countries_accessible: %w", err)
	}
	*c = CountryAccess{Codes: codes}
	return nil
}

// UserLimitations is what the visitor may do on the dashboard
type UserLimitations struct {
	Tier                Tier          `json:"tier"`
	AnalysesRemaining   Quota         `json:"analyses_remaining"`
	CountriesAccessible CountryAccess `json:"countries_accessible"`
	PDFExports          Quota         `json:"pdf_exports"`
	InsightsAI          bool          `json:"insights_ai"`
	PurchasedGuides     []string      `json:"purchased_guides"`
	ShowUpgradeCTA      bool          `json:"show_upgrade_cta"`
}

// OwnsGuide reports whether guideID was purchased
func (l UserLimitations) OwnsGuide(guideID string) bool {
	for _, g := range l.PurchasedGuides {
		if g == guideID {
			return true
		}
	}
	return false
}

// LockedDown is applied when entitlements cannot be fetched and the
// dashboard is configured to fail closed.
func LockedDown() UserLimitations {
	return UserLimitations{
		Tier:                TierFree,
		AnalysesRemaining:   LimitedQuota(0),
		CountriesAccessible: CountryAccess{Codes: []string{}},
		PDFExports:          LimitedQuota(0),
	}
}
