// Package startup prepares the application server
package startup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/application/container"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/cleanup"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/environment"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/metrics"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/performance"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/database"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/visitorstore"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/realtime"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/http/routes"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/http/server"
	"github.com/ZineInsight/production-workspace-sub001/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence and blocks until shutdown
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("ZineInsight web front starting...")

	// Step 1: Channeled logger
	var broadcaster *logging.LogBroadcaster
	if config.LogStream {
		broadcaster = logging.NewLogBroadcaster()
	}
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    config.LogToFile,
		OutputToConsole: true,
		LogDirectory:    config.LogDirectory,
		JSONFormat:      config.LogJSON,
		DefaultLevel:    logging.ParseLevel(config.LogLevel),
		Broadcaster:     broadcaster,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Channeled logger initialized - switching from standard log")

	// Step 2: Resolve the environment profile from the public URL
	phaseStart := time.Now()
	table, err := environment.LoadTable(config.EnvironmentsFile)
	if err != nil {
		return fmt.Errorf("failed to load environment table: %w", err)
	}
	profile, err := environment.NewResolver(table, logger).ResolveURL(config.PublicURL)
	if err != nil {
		return fmt.Errorf("failed to resolve environment: %w", err)
	}
	logger.LogStartupPhase("environment", time.Since(phaseStart), true, map[string]any{
		"profile": profile.Name, "apiBaseUrl": profile.APIBaseURL,
	})

	// Step 3: Health probe with fallback backends
	phaseStart = time.Now()
	prober := environment.NewProber(config.HealthProbeTimeout, logger)
	if err := prober.Probe(ctx, &profile); err != nil {
		// Keep serving with the primary base; requests fail with transport errors until it recovers.
		logger.LogStartupPhase("health_probe", time.Since(phaseStart), false, map[string]any{"error": err.Error()})
	} else {
		logger.LogStartupPhase("health_probe", time.Since(phaseStart), true, map[string]any{"apiBaseUrl": profile.APIBaseURL})
	}

	// Step 4: Observability
	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())
	appMetrics := metrics.New()

	// Step 5: Visitor store
	phaseStart = time.Now()
	db, err := database.Open(ctx, database.Options{
		SQLitePath:   config.TokenStorePath,
		TursoURL:     config.TursoDatabase,
		TursoToken:   config.TursoToken,
		MaxOpenConns: config.DBMaxOpenConns,
		MaxIdleConns: config.DBMaxIdleConns,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open visitor store: %w", err)
	}
	defer db.Close()

	store := visitorstore.New(db.DB, logger)
	if config.TokenEncryptionKey != "" {
		tokenCipher, err := security.NewTokenCipher(config.TokenEncryptionKey)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: %w", err)
		}
		store.WithCipher(tokenCipher)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare visitor store: %w", err)
	}
	logger.LogStartupPhase("visitor_store", time.Since(phaseStart), true, map[string]any{
		"driver": db.Driver, "encrypted": config.TokenEncryptionKey != "",
	})

	// Step 6: API connector
	connector, err := apiclient.New(apiclient.Config{
		Profile:       profile,
		CacheTTL:      config.APICacheTTL,
		CacheCapacity: config.APICacheCapacity,
		RetryAttempts: config.APIRetryAttempts,
		Tokens:        apiclient.ChainTokenSources(apiclient.ContextTokenSource, store),
		Logger:        logger,
		Metrics:       appMetrics,
		PerfTracker:   perfTracker,
	})
	if err != nil {
		return fmt.Errorf("failed to create API connector: %w", err)
	}

	// Step 7: Dependency injection container
	appContainer := container.NewContainer(container.Options{
		PublicURL:           config.PublicURL,
		DashboardFailClosed: config.DashboardFailClosed,
	}, connector, store, logger, perfTracker, appMetrics)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 8: Background cleanup
	worker := cleanup.NewWorker(cleanup.NewConfig(), logger,
		cleanup.Task{Name: "paywall_sessions", Run: func(context.Context) (int, error) {
			return appContainer.PaywallService.SweepAbandoned(), nil
		}},
		cleanup.Task{Name: "response_cache", Run: func(context.Context) (int, error) {
			return connector.PurgeExpiredCache(), nil
		}},
		cleanup.Task{Name: "visitor_values", Run: func(ctx context.Context) (int, error) {
			n, err := store.PurgeStale(ctx, config.VisitorValueTTL)
			return int(n), err
		}},
	)
	go worker.Start(ctx)

	// Step 9: Realtime entitlement feed
	if config.RealtimeEnabled {
		wsURL := profile.WebsocketEndpoint()
		listener := realtime.NewListener(wsURL, connector, logger, appMetrics)
		go listener.Run(ctx)
		logger.Startup().Info("Realtime entitlement feed started", "url", wsURL)
	}

	// Step 10: HTTP server
	httpServer := server.New(config.Port, appContainer, routes.Settings{
		AllowedOrigins:       config.AllowedOrigins,
		PublicURL:            config.PublicURL,
		PaywallRatePerSecond: config.PaywallRatePerSecond,
		PaywallRateBurst:     config.PaywallRateBurst,
		AdminToken:           config.AdminToken,
	}, server.Timeouts{
		Read:  config.ServerReadTimeout,
		Write: config.ServerWriteTimeout,
		Idle:  config.ServerIdleTimeout,
	})

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"environment", profile.Name,
		"port", config.Port)

	// Wait for shutdown signal or server failure
	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			return err
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures gin mode and the standard logger used before the channeled logger exists
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
