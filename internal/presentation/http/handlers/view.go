// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"strings"

	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/paywall"
	"github.com/ZineInsight/production-workspace-sub001/internal/domain/entities/ui"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/templates"
	"github.com/gin-gonic/gin"
)

// TriggerPaywallGranted is sent in HX-Trigger when access was already granted
const TriggerPaywallGranted = "paywall-granted"

// HTMXView collects what the paywall flow wants shown and writes it as one
// htmx response.
type HTMXView struct {
	fragments []string
	redirect  string
	err       error
}

// NewHTMXView creates an empty view
func NewHTMXView() *HTMXView {
	return &HTMXView{}
}

func (v *HTMXView) add(html string, err error) {
	if err != nil {
		if v.err == nil {
			v.err = err
		}
		return
	}
	v.fragments = append(v.fragments, html)
}

func (v *HTMXView) ShowModal(session paywall.Session) {
	v.add(templates.RenderModal(session))
}

func (v *HTMXView) RemoveModal(sessionID string) {
	v.add(templates.RenderModalRemoval(sessionID))
}

func (v *HTMXView) Notify(n ui.Notification) {
	v.add(templates.RenderNoticeOOB(n))
}

func (v *HTMXView) Redirect(url string) {
	v.redirect = url
}

// Write sends the collected fragments, or the redirect. trigger is an
// optional HX-Trigger event name.
func (v *HTMXView) Write(c *gin.Context, trigger string) {
	if v.err != nil {
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	if v.redirect != "" {
		if c.GetHeader("HX-Request") == "true" {
			c.Header("HX-Redirect", v.redirect)
			c.Status(http.StatusOK)
			return
		}
		c.Redirect(http.StatusSeeOther, v.redirect)
		return
	}
	if trigger != "" {
		c.Header("HX-Trigger", trigger)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(strings.Join(v.fragments, "")))
}
