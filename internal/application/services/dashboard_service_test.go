package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/dashboard"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/paywall"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDashboardAPI struct {
	limitations  string
	limitErr     error
	countries    string
	countriesErr error
	batches      [][]apiclient.BatchItem
}

func (f *fakeDashboardAPI) DashboardLimitations(ctx context.Context) (json.RawMessage, error) {
	if f.limitErr != nil {
		return nil, f.limitErr
	}
	return json.RawMessage(f.limitations), nil
}

func (f *fakeDashboardAPI) BatchRequest(ctx context.Context, items []apiclient.BatchItem) []apiclient.BatchResult {
	f.batches = append(f.batches, items)
	out := make([]apiclient.BatchResult, len(items))
	for i, item := range items {
		out[i].Endpoint = item.Endpoint
		switch item.Endpoint {
		case apiclient.PathCountries:
			out[i].Data, out[i].Err = json.RawMessage(f.countries), f.countriesErr
		case apiclient.PathDashboardLimitations:
			out[i].Data, out[i].Err = f.DashboardLimitations(ctx)
		}
	}
	return out
}

func newTestDashboardService(api DashboardAPI, failClosed bool) *DashboardService {
	return NewDashboardService(api, failClosed, logging.NewDiscardLogger(), performance.NewTracker(nil))
}

func countryDoc() *dashboard.Document {
	return BuildDocument([]Country{{Code: "de", Name: "Germany"}, {Code: "fr", Name: "France"}})
}

func TestDashboardLoad_FreeTierGating(t *testing.T) {
	api := &fakeDashboardAPI{limitations: `{
		"tier": "free",
		"analyses_remaining": 0,
		"countries_accessible": ["de"],
		"pdf_exports": 0,
		"insights_ai": false,
		"purchased_guides": ["fr"],
		"show_upgrade_cta": true
	}`}
	svc := newTestDashboardService(api, false)
	doc := countryDoc()

	require.NoError(t, svc.Load(context.Background(), doc))
	assert.Equal(t, dashboard.TierFree, doc.Tier)

	run := doc.Find("run-analysis")
	assert.True(t, run.Disabled)
	require.NotNil(t, run.Action)
	assert.Equal(t, paywall.TypeUnlimitedAnalyses, run.Action.PaywallType)

	pdf := doc.Find("pdf-export")
	assert.True(t, pdf.Disabled)
	assert.Equal(t, paywall.TypePDFExport, pdf.Action.PaywallType)

	de := doc.Find("country-de")
	assert.False(t, de.Locked)
	assert.Nil(t, de.Action)

	fr := doc.Find("country-fr")
	assert.True(t, fr.Locked)
	require.NotNil(t, fr.Action)
	assert.Equal(t, paywall.TypeCountryAccess, fr.Action.PaywallType)
	assert.Equal(t, "fr", fr.Action.ResourceID)

	ai := doc.Find("ai-insights")
	assert.True(t, ai.Locked)
	assert.Equal(t, paywall.TypeAIInsights, ai.Action.PaywallType)

	guideDE := doc.Find("guide-de")
	assert.True(t, guideDE.Locked)
	assert.Equal(t, paywall.TypePremiumGuide, guideDE.Action.PaywallType)
	assert.Equal(t, "de", guideDE.Action.ResourceID)
	assert.False(t, doc.Find("guide-fr").Locked)

	for _, el := range doc.ByRole(dashboard.RolePremium) {
		assert.True(t, el.Overlay, el.ID)
		assert.Equal(t, paywall.TypeProUpgrade, el.Action.PaywallType)
	}

	require.NotNil(t, doc.Banner)
	assert.Equal(t, paywall.TypeProUpgrade, doc.Banner.Action.PaywallType)
}

func TestDashboardLoad_ProTierUnrestricted(t *testing.T) {
	api := &fakeDashboardAPI{limitations: `{
		"tier": "pro",
		"analyses_remaining": "unlimited",
		"countries_accessible": "all",
		"pdf_exports": 10,
		"insights_ai": true,
		"purchased_guides": [],
		"show_upgrade_cta": false
	}`}
	svc := newTestDashboardService(api, false)
	doc := countryDoc()

	require.NoError(t, svc.Load(context.Background(), doc))
	for _, el := range doc.Elements {
		assert.False(t, el.Disabled, el.ID)
		assert.False(t, el.Locked, el.ID)
		assert.False(t, el.Overlay, el.ID)
		assert.Nil(t, el.Action, el.ID)
	}
	assert.Nil(t, doc.Banner)
}

func TestDashboardLoad_RemainingAnalysesKeepButtonEnabled(t *testing.T) {
	api := &fakeDashboardAPI{limitations: `{"tier":"free","analyses_remaining":2,"pdf_exports":1,"insights_ai":true}`}
	svc := newTestDashboardService(api, false)
	doc := countryDoc()

	require.NoError(t, svc.Load(context.Background(), doc))
	assert.False(t, doc.Find("run-analysis").Disabled)
	assert.False(t, doc.Find("pdf-export").Disabled)
	// countries_accessible omitted: no country is locked
	assert.False(t, doc.Find("country-fr").Locked)
}

func TestDashboardLoad_PDFExportGate(t *testing.T) {
	tests := []struct {
		name     string
		pdf      string
		disabled bool
	}{
		{"omitted", ``, false},
		{"unlimited literal", `,"pdf_exports":"unlimited"`, false},
		{"negative is unlimited", `,"pdf_exports":-1`, false},
		{"exhausted", `,"pdf_exports":0`, true},
		{"remaining", `,"pdf_exports":4`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeDashboardAPI{limitations: `{"tier":"pro","analyses_remaining":"unlimited","countries_accessible":"all","insights_ai":true` + tt.pdf + `}`}
			svc := newTestDashboardService(api, false)
			doc := countryDoc()

			require.NoError(t, svc.Load(context.Background(), doc))
			pdf := doc.Find("pdf-export")
			assert.Equal(t, tt.disabled, pdf.Disabled)
			if tt.disabled {
				require.NotNil(t, pdf.Action)
				assert.Equal(t, paywall.TypePDFExport, pdf.Action.PaywallType)
			} else {
				assert.Nil(t, pdf.Action)
			}
		})
	}
}

func TestDashboardLoad_FailOpen(t *testing.T) {
	api := &fakeDashboardAPI{limitErr: errors.New("HTTP 502: Bad Gateway")}
	svc := newTestDashboardService(api, false)
	doc := countryDoc()

	err := svc.Load(context.Background(), doc)
	require.ErrorIs(t, err, ErrLimitationsUnavailable)
	for _, el := range doc.Elements {
		assert.False(t, el.Disabled, el.ID)
		assert.False(t, el.Locked, el.ID)
		assert.Nil(t, el.Action, el.ID)
	}
	assert.Empty(t, doc.Notices)
}

func TestDashboardLoad_FailClosed(t *testing.T) {
	api := &fakeDashboardAPI{limitErr: errors.New("HTTP 502: Bad Gateway")}
	svc := newTestDashboardService(api, true)
	doc := countryDoc()

	err := svc.Load(context.Background(), doc)
	require.ErrorIs(t, err, ErrLimitationsUnavailable)
	assert.True(t, doc.Find("run-analysis").Disabled)
	assert.True(t, doc.Find("country-de").Locked)
	assert.True(t, doc.Find("ai-insights").Locked)
	require.Len(t, doc.Notices, 1)
}

func TestDashboardLoad_MalformedLimitations(t *testing.T) {
	api := &fakeDashboardAPI{limitations: `{"analyses_remaining":"lots"}`}
	svc := newTestDashboardService(api, false)

	err := svc.Load(context.Background(), countryDoc())
	assert.ErrorIs(t, err, ErrLimitationsUnavailable)
}

func TestDashboardPage(t *testing.T) {
	api := &fakeDashboardAPI{
		countries:   `{"countries":[{"code":"DE","name":"Germany"},{"code":"fr","name":"France"}]}`,
		limitations: `{"tier":"free","analyses_remaining":1,"countries_accessible":["de"],"pdf_exports":1,"insights_ai":true}`,
	}
	svc := newTestDashboardService(api, false)

	doc, err := svc.Page(context.Background())
	require.NoError(t, err)
	require.Len(t, api.batches, 1)
	assert.Len(t, api.batches[0], 2)

	require.NotNil(t, doc.Find("country-de"))
	assert.Equal(t, "Germany", doc.Find("country-de").Label)
	assert.False(t, doc.Find("country-de").Locked)
	assert.True(t, doc.Find("country-fr").Locked)
}

func TestDashboardPage_CountriesUnavailable(t *testing.T) {
	api := &fakeDashboardAPI{
		countriesErr: errors.New("HTTP 500: Internal Server Error"),
		limitations:  `{"tier":"pro","analyses_remaining":"unlimited","countries_accessible":"all","pdf_exports":3,"insights_ai":true}`,
	}
	svc := newTestDashboardService(api, false)

	doc, err := svc.Page(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.ByRole(dashboard.RoleCountry))
	assert.Len(t, doc.Notices, 1)
}

func TestParseCountries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Country
	}{
		{"codes", `["de","fr"]`, []Country{{"de", "DE"}, {"fr", "FR"}}},
		{"objects", `[{"code":"es","name":"Spain"}]`, []Country{{"es", "Spain"}}},
		{"wrapped", `{"countries":[{"id":"pt","label":"Portugal"}]}`, []Country{{"pt", "Portugal"}}},
		{"keyed", `{"countries":{"it":{"name":"Italy"}}}`, []Country{{"it", "Italy"}}},
		{"skips unusable", `[{"name":"Nowhere"}, 3, "nl"]`, []Country{{"nl", "NL"}}},
		{"empty", `[]`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCountries(json.RawMessage(tt.raw)))
		})
	}
}
