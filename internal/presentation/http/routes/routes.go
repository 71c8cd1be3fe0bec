// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"strings"

	"github.com/ZineInsight/production-workspace-sub001/internal/application/container"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/http/handlers"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// Settings holds the route-level configuration
type Settings struct {
	AllowedOrigins       []string
	PublicURL            string
	PaywallRatePerSecond float64
	PaywallRateBurst     int
	AdminToken           string
}

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container, settings Settings) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middleware.MetricsMiddleware(container.Metrics))
	r.Use(middleware.CORSMiddleware(settings.AllowedOrigins))
	r.Use(middleware.VisitorMiddleware(strings.HasPrefix(settings.PublicURL, "https://")))

	// Initialize handlers
	healthHandlers := handlers.NewHealthHandlers(container.Connector)
	dashboardHandlers := handlers.NewDashboardHandlers(container.DashboardService, container.PaywallService, container.Profile.Name, container.Logger, container.PerfTracker)
	paywallHandlers := handlers.NewPaywallHandlers(container.PaywallService, container.Logger, container.PerfTracker)
	paymentHandlers := handlers.NewPaymentHandlers(container.PaymentService, container.Logger, container.PerfTracker)
	sessionHandlers := handlers.NewSessionHandlers(container.VisitorStore, container.Logger)
	appHandlers := handlers.NewAppHandlers(container.AppService, container.Logger)
	adminHandlers := handlers.NewAdminHandlers(container.Connector, settings.AdminToken, container.Logger, container.PerfTracker)

	r.GET("/health", healthHandlers.GetHealth)
	r.GET("/metrics", gin.WrapH(container.Metrics.Handler()))
	r.GET("/dashboard", dashboardHandlers.GetDashboard)

	rateLimiter := middleware.NewRateLimiter(settings.PaywallRatePerSecond, settings.PaywallRateBurst, container.Logger)
	paywall := r.Group("/paywall", rateLimiter.Handler())
	{
		paywall.POST("/open", paywallHandlers.PostOpen)
		paywall.POST("/:sessionId/confirm", paywallHandlers.PostConfirm)
		paywall.POST("/:sessionId/dismiss", paywallHandlers.PostDismiss)
	}

	payments := r.Group("/payments")
	{
		payments.GET("/config", paymentHandlers.GetConfig)
		payments.POST("/session", paymentHandlers.PostSession)
		payments.POST("/confirm", paymentHandlers.PostConfirm)
	}

	session := r.Group("/session")
	{
		session.POST("/token", sessionHandlers.PostToken)
		session.DELETE("/token", sessionHandlers.DeleteToken)
	}

	app := r.Group("/app")
	{
		app.GET("/bootstrap", appHandlers.GetBootstrap)
		app.GET("/questions", appHandlers.GetQuestions())
		app.GET("/countries", appHandlers.GetCountries())
		app.GET("/guides/:country", appHandlers.GetGuide)
		app.GET("/career-profiles", appHandlers.GetCareerProfiles())
		app.POST("/score", appHandlers.PostScore())
		app.POST("/career/analyze", appHandlers.PostAnalyzeCareer())
		app.POST("/career/skill-matches", appHandlers.PostSkillMatches())

		app.GET("/user/profile", appHandlers.GetUserProfile())
		app.GET("/user/session", appHandlers.GetUserSession())
		app.GET("/user/history", appHandlers.GetUserHistory())
		app.PUT("/user/preferences", appHandlers.PutPreferences())
	}

	admin := r.Group("/admin", adminHandlers.AuthMiddleware())
	{
		admin.GET("/cache", adminHandlers.GetCache)
		admin.DELETE("/cache", adminHandlers.DeleteCache)
		admin.GET("/logs/levels", adminHandlers.GetLogLevels)
		admin.POST("/logs/levels", adminHandlers.SetLogLevel)
		admin.GET("/logs/stream", adminHandlers.StreamLogs)
		admin.GET("/performance", adminHandlers.GetPerformance)
	}

	return r
}
