package dashboard

import (
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/paywall"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/ui"
)

// Role tags what a dashboard element is gated by
type Role string

const (
	RoleRunAnalysis Role = "run-analysis"
	RoleCountry     Role = "country"
	RolePremium     Role = "premium"
	RolePDFExport   Role = "pdf-export"
	RoleAIInsights  Role = "ai-insights"
	RoleGuide       Role = "guide"
)

// PaywallAction replaces an element's normal action with opening a paywall
type PaywallAction struct {
	PaywallType paywall.Type
	ResourceID  string
}

// Element is one gated control or content block
type Element struct {
	ID      string
	Role    Role
	Label   string
	Country string // RoleCountry
	GuideID string // RoleGuide

	Disabled bool
	Locked   bool
	Overlay  bool
	Action   *PaywallAction
}

// Gate replaces the element's action with a paywall
func (e *Element) Gate(t paywall.Type, resourceID string) {
	e.Action = &PaywallAction{PaywallType: t, ResourceID: resourceID}
}

// UpgradeBanner invites free visitors to upgrade
type UpgradeBanner struct {
	Message string
	Action  PaywallAction
}

// Document is the dashboard page model
type Document struct {
	Elements []*Element
	Banner   *UpgradeBanner
	Notices  []ui.Notification
	Tier     Tier
}

// ByRole returns the elements with the given role in document order
func (d *Document) ByRole(role Role) []*Element {
	var out []*Element
	for _, el := range d.Elements {
		if el.Role == role {
			out = append(out, el)
		}
	}
	return out
}

// Find returns the element with id, or nil
func (d *Document) Find(id string) *Element {
	for _, el := range d.Elements {
		if el.ID == id {
			return el
		}
	}
	return nil
}

// Notify appends a notice rendered above the dashboard
func (d *Document) Notify(n ui.Notification) {
	d.Notices = append(d.Notices, n)
}
