package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/dashboard"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/paywall"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/ui"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/tidwall/gjson"
)

// ErrLimitationsUnavailable wraps any failure to fetch or decode limitations
var ErrLimitationsUnavailable = errors.New("dashboard limitations unavailable")

// DashboardAPI is the part of the API connector the dashboard needs
type DashboardAPI interface {
	DashboardLimitations(ctx context.Context) (json.RawMessage, error)
	BatchRequest(ctx context.Context, items []apiclient.BatchItem) []apiclient.BatchResult
}

// Country is one entry of the country catalogue
type Country struct {
	Code string
	Name string
}

// DashboardService fetches entitlements and applies them to the dashboard model
type DashboardService struct {
	api         DashboardAPI
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	failClosed  bool
}

// NewDashboardService creates the dashboard limitation applier
func NewDashboardService(api DashboardAPI, failClosed bool, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DashboardService {
	return &DashboardService{
		api:         api,
		logger:      logger,
		perfTracker: perfTracker,
		failClosed:  failClosed,
	}
}

// Load fetches the visitor's limitations and applies them to doc. On
// failure doc is left unrestricted, or fully locked when configured to
// fail closed; the fetch error is returned either way.
func (s *DashboardService) Load(ctx context.Context, doc *dashboard.Document) error {
	marker := s.perfTracker.StartOperation("dashboard:load")
	defer marker.Complete()

	limits, err := apiclient.Decode[dashboard.UserLimitations](s.api.DashboardLimitations(ctx))
	if err != nil {
		marker.SetError(err)
		s.handleFailure(ctx, doc, err)
		return fmt.Errorf("%w: %v", ErrLimitationsUnavailable, err)
	}

	s.Apply(limits, doc)
	marker.SetSuccess(true)
	return nil
}

// Page builds the dashboard for the visitor: the country catalogue and the
// limitations are fetched together, then applied.
func (s *DashboardService) Page(ctx context.Context) (*dashboard.Document, error) {
	marker := s.perfTracker.StartOperation("dashboard:page")
	defer marker.Complete()

	results := s.api.BatchRequest(ctx, []apiclient.BatchItem{
		{Endpoint: apiclient.PathCountries},
		{Endpoint: apiclient.PathDashboardLimitations},
	})

	var countries []Country
	if results[0].Err != nil {
		s.logger.WithContext(logging.ChannelDashboard, ctx).Warn("Country catalogue unavailable", "error", results[0].Err.Error())
	} else {
		countries = ParseCountries(results[0].Data)
	}
	doc := BuildDocument(countries)
	if results[0].Err != nil {
		doc.Notify(ui.Error("Countries could not be loaded. Please refresh the page."))
	}

	limits, err := apiclient.Decode[dashboard.UserLimitations](results[1].Data, results[1].Err)
	if err != nil {
		marker.SetError(err)
		s.handleFailure(ctx, doc, err)
		return doc, fmt.Errorf("%w: %v", ErrLimitationsUnavailable, err)
	}

	s.Apply(limits, doc)
	marker.SetSuccess(true)
	return doc, nil
}

func (s *DashboardService) handleFailure(ctx context.Context, doc *dashboard.Document, err error) {
	logger := s.logger.WithContext(logging.ChannelDashboard, ctx)
	if !s.failClosed {
		logger.Warn("Limitations fetch failed, leaving dashboard unrestricted", "error", err.Error())
		return
	}
	logger.Warn("Limitations fetch failed, locking premium features", "error", err.Error())
	s.Apply(dashboard.LockedDown(), doc)
	doc.Notify(ui.Error("Your plan could not be loaded. Premium features are locked until it is."))
}

// Apply mutates doc according to limits
func (s *DashboardService) Apply(limits dashboard.UserLimitations, doc *dashboard.Document) {
	doc.Tier = limits.Tier
	free := limits.Tier != dashboard.TierPro
	locked := 0

	for _, el := range doc.Elements {
		switch el.Role {
		case dashboard.RoleRunAnalysis:
			if limits.AnalysesRemaining.Exhausted() {
				el.Disabled = true
				el.Gate(paywall.TypeUnlimitedAnalyses, "")
				locked++
			}
		case dashboard.RolePDFExport:
			if limits.PDFExports.Exhausted() {
				el.Disabled = true
				el.Gate(paywall.TypePDFExport, "")
				locked++
			}
		case dashboard.RoleCountry:
			if limits.CountriesAccessible.Known() && !limits.CountriesAccessible.Allows(el.Country) {
				el.Locked = true
				el.Gate(paywall.TypeCountryAccess, el.Country)
				locked++
			}
		case dashboard.RoleAIInsights:
			if !limits.InsightsAI {
				el.Locked = true
				el.Gate(paywall.TypeAIInsights, "")
				locked++
			}
		case dashboard.RoleGuide:
			if free && !limits.OwnsGuide(el.GuideID) {
				el.Locked = true
				el.Gate(paywall.TypePremiumGuide, el.GuideID)
				locked++
			}
		case dashboard.RolePremium:
			if free {
				el.Overlay = true
				el.Gate(paywall.TypeProUpgrade, "")
				locked++
			}
		}
	}

	if limits.ShowUpgradeCTA {
		doc.Banner = &dashboard.UpgradeBanner{
			Message: "Upgrade to Pro for unlimited analyses, every country and AI insights.",
			Action:  dashboard.PaywallAction{PaywallType: paywall.TypeProUpgrade},
		}
	}

	if s.logger != nil {
		s.logger.Dashboard().Debug("Limitations applied", "tier", limits.Tier, "gatedElements", locked)
	}
}

// BuildDocument creates the default, unrestricted dashboard model
func BuildDocument(countries []Country) *dashboard.Document {
	doc := &dashboard.Document{
		Elements: []*dashboard.Element{
			{ID: "run-analysis", Role: dashboard.RoleRunAnalysis, Label: "Run a new analysis"},
			{ID: "pdf-export", Role: dashboard.RolePDFExport, Label: "Export as PDF"},
			{ID: "ai-insights", Role: dashboard.RoleAIInsights, Label: "AI insights"},
			{ID: "premium-comparison", Role: dashboard.RolePremium, Label: "Side-by-side country comparison"},
			{ID: "premium-history", Role: dashboard.RolePremium, Label: "Full analysis history"},
		},
	}
	for _, c := range countries {
		code := strings.ToLower(c.Code)
		doc.Elements = append(doc.Elements,
			&dashboard.Element{ID: "country-" + code, Role: dashboard.RoleCountry, Country: code, Label: c.Name},
			&dashboard.Element{ID: "guide-" + code, Role: dashboard.RoleGuide, GuideID: code, Label: c.Name + " expat guide"},
		)
	}
	return doc
}

// ParseCountries reads the country catalogue. It accepts a list of codes, a
// list of {code,name} objects, or either wrapped in a "countries" field.
func ParseCountries(raw json.RawMessage) []Country {
	list := gjson.ParseBytes(raw)
	if wrapped := list.Get("countries"); wrapped.Exists() {
		list = wrapped
	}

	var out []Country
	list.ForEach(func(key, value gjson.Result) bool {
		var c Country
		switch {
		case value.Type == gjson.String:
			c = Country{Code: value.String(), Name: strings.ToUpper(value.String())}
		case value.IsObject():
			c.Code = firstString(value, "code", "id", "country_code")
			c.Name = firstString(value, "name", "label")
			if c.Code == "" && list.IsObject() {
				c.Code = key.String()
			}
			if c.Name == "" {
				c.Name = strings.ToUpper(c.Code)
			}
		}
		if c.Code != "" {
			out = append(out, c)
		}
		return true
	})
	return out
}

func firstString(value gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := value.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
