// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/ZineInsight/production-workspace-sub001/internal/application/services"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/environment"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/metrics"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/visitorstore"
)

// Options carries the settings services are built with
type Options struct {
	PublicURL           string
	DashboardFailClosed bool
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application Services
	PaywallService   *services.PaywallService
	DashboardService *services.DashboardService
	PaymentService   *services.PaymentService
	AppService       *services.AppService

	// Infrastructure Dependencies
	Profile      environment.Profile
	Connector    *apiclient.Connector
	VisitorStore *visitorstore.Store
	Logger       *logging.ChanneledLogger
	PerfTracker  *performance.Tracker
	Metrics      *metrics.Metrics
}

// NewContainer creates and wires all singleton services
func NewContainer(
	opts Options,
	connector *apiclient.Connector,
	store *visitorstore.Store,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
	m *metrics.Metrics,
) *Container {
	return &Container{
		PaywallService:   services.NewPaywallService(connector, opts.PublicURL, logger, perfTracker, m),
		DashboardService: services.NewDashboardService(connector, opts.DashboardFailClosed, logger, perfTracker),
		PaymentService:   services.NewPaymentService(connector, opts.PublicURL, logger, perfTracker),
		AppService:       services.NewAppService(connector),

		Profile:      connector.Profile(),
		Connector:    connector,
		VisitorStore: store,
		Logger:       logger,
		PerfTracker:  perfTracker,
		Metrics:      m,
	}
}
