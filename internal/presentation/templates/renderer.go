// Package templates renders the htmx fragments and pages served by the web front
package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/dashboard"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/paywall"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/ui"
)

// ModalRootID is the container the paywall modal is swapped into
const ModalRootID = "paywall-modal-root"

// NoticesID is the container transient notices are appended to
const NoticesID = "notices"

var funcs = template.FuncMap{
	"paywallVals": paywallVals,
	"modalID":     ModalID,
	"elementClass": func(el *dashboard.Element) string {
		classes := []string{"dash-element", "dash-" + string(el.Role)}
		if el.Disabled {
			classes = append(classes, "is-disabled")
		}
		if el.Locked {
			classes = append(classes, "is-locked")
		}
		if el.Overlay {
			classes = append(classes, "has-overlay")
		}
		return strings.Join(classes, " ")
	},
}

var pageTemplates = template.Must(template.New("zineinsight").Funcs(funcs).Parse(
	`{{define "modal"}}<div id="{{modalID .SessionID}}" class="paywall-modal" role="dialog" aria-modal="true" aria-labelledby="{{modalID .SessionID}}-title">` +
		`<div class="paywall-modal__body">` +
		`<h2 id="{{modalID .SessionID}}-title">{{.Title}}</h2>` +
		`<p class="paywall-modal__description">{{.Description}}</p>` +
		`<p class="paywall-modal__price">{{.FormattedPrice}}</p>` +
		`{{if .Features}}<ul class="paywall-modal__features">{{range .Features}}<li>{{.}}</li>{{end}}</ul>{{end}}` +
		`<div class="paywall-modal__actions">` +
		`<button type="button" class="btn btn-primary" hx-post="/paywall/{{.SessionID}}/confirm" hx-swap="none" hx-disabled-elt="this">Continue to payment</button>` +
		`<button type="button" class="btn btn-secondary" hx-post="/paywall/{{.SessionID}}/dismiss" hx-swap="none">Not now</button>` +
		`</div></div></div>{{end}}` +

		`{{define "modalRemove"}}<div id="{{modalID .}}" hx-swap-oob="delete"></div>{{end}}` +

		`{{define "notice"}}<div class="notice notice-{{.Level}}" role="status" data-dismiss-after="{{.DismissAfterMillis}}">{{.Message}}</div>{{end}}` +

		`{{define "noticeOOB"}}<div hx-swap-oob="beforeend:#` + NoticesID + `">{{template "notice" .}}</div>{{end}}` +

		`{{define "banner"}}<aside class="upgrade-banner">` +
		`<p>{{.Message}}</p>` +
		`<button type="button" class="btn btn-primary" hx-post="/paywall/open" hx-vals="{{paywallVals .Action}}" hx-target="#` + ModalRootID + `" hx-swap="innerHTML">Upgrade</button>` +
		`</aside>{{end}}` +

		`{{define "element"}}<div id="{{.ID}}" class="{{elementClass .}}"{{if .Country}} data-country="{{.Country}}"{{end}}>` +
		`{{if .Action}}<button type="button" class="dash-action"{{if .Disabled}} aria-disabled="true"{{end}} hx-post="/paywall/open" hx-vals="{{paywallVals .Action}}" hx-target="#` + ModalRootID + `" hx-swap="innerHTML">` +
		`{{.Label}}{{if or .Locked .Overlay}} <span class="lock" aria-label="Locked">&#128274;</span>{{end}}</button>` +
		`{{else}}<span class="dash-label">{{.Label}}</span>{{end}}` +
		`</div>{{end}}` +

		`{{define "dashboard"}}<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">` +
		`<meta name="viewport" content="width=device-width, initial-scale=1">` +
		`<title>ZineInsight dashboard</title>` +
		`<script src="https://unpkg.com/htmx.org@1.9.12"></script>` +
		`</head><body data-environment="{{.Environment}}" data-tier="{{.Document.Tier}}">` +
		`<div id="` + NoticesID + `" aria-live="polite">{{range .Document.Notices}}{{template "notice" .}}{{end}}</div>` +
		`{{with .Document.Banner}}{{template "banner" .}}{{end}}` +
		`<main class="dashboard">{{range .Document.Elements}}{{template "element" .}}{{end}}</main>` +
		`<div id="` + ModalRootID + `"></div>` +
		`<script>` +
		`document.body.addEventListener("paywall-granted",function(){window.location.reload()});` +
		`htmx.onLoad(function(root){root.querySelectorAll("[data-dismiss-after]").forEach(function(el){` +
		`setTimeout(function(){el.remove()},parseInt(el.dataset.dismissAfter,10))})});` +
		`</script>` +
		`</body></html>{{end}}`,
))

// DashboardPage is the data rendered by the dashboard template
type DashboardPage struct {
	Document    *dashboard.Document
	Environment string
}

// ModalID is the DOM id of the modal for a paywall session
func ModalID(sessionID string) string {
	return "paywall-modal-" + sessionID
}

func paywallVals(action any) (string, error) {
	var a dashboard.PaywallAction
	switch v := action.(type) {
	case dashboard.PaywallAction:
		a = v
	case *dashboard.PaywallAction:
		if v == nil {
			return "{}", nil
		}
		a = *v
	default:
		return "", fmt.Errorf("paywallVals: unexpected %T", action)
	}
	vals := map[string]string{"paywall_type": string(a.PaywallType)}
	if a.ResourceID != "" {
		vals["resource_id"] = a.ResourceID
	}
	b, err := json.Marshal(vals)
	return string(b), err
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderModal renders the paywall modal for session
func RenderModal(session paywall.Session) (string, error) {
	return render("modal", session)
}

// RenderModalRemoval renders an out-of-band instruction deleting the modal for sessionID
func RenderModalRemoval(sessionID string) (string, error) {
	return render("modalRemove", sessionID)
}

// RenderNotice renders a notification in place
func RenderNotice(n ui.Notification) (string, error) {
	return render("notice", n)
}

// RenderNoticeOOB renders a notification appended out of band to the notices container
func RenderNoticeOOB(n ui.Notification) (string, error) {
	return render("noticeOOB", n)
}

// RenderDashboard renders the full dashboard page
func RenderDashboard(page DashboardPage) (string, error) {
	return render("dashboard", page)
}
