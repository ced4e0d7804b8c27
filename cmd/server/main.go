package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/taskhub-ops/taskhub-backend-go/internal/api"
	"github.com/taskhub-ops/taskhub-backend-go/internal/api/handlers"
	"github.com/taskhub-ops/taskhub-backend-go/internal/config"
	"github.com/taskhub-ops/taskhub-backend-go/internal/core/metricsource"
	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring/channels"
	"github.com/taskhub-ops/taskhub-backend-go/internal/database"
	"github.com/taskhub-ops/taskhub-backend-go/internal/database/sqlite"
	"github.com/taskhub-ops/taskhub-backend-go/internal/websocket"
	"github.com/taskhub-ops/taskhub-backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.Logging.Level)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// Create repositories
	ruleRepo := sqlite.NewAlertRuleRepository(db)
	alertRepo := sqlite.NewAlertRepository(db)
	planRepo := sqlite.NewCapacityPlanRepository(db)
	testRepo := sqlite.NewPerformanceTestRepository(db)

	// Create WebSocket hub for live event streaming
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Build notification channels
	channelConfigs := make([]channels.Config, 0, len(cfg.Channels))
	for _, cc := range cfg.Channels {
		channelConfigs = append(channelConfigs, channels.Config{
			ID:       cc.ID,
			Type:     cc.Type,
			Enabled:  cc.Enabled,
			Settings: cc.Settings,
		})
	}
	retry := channels.RetryPolicy{
		MaxRetries:   cfg.Monitoring.Retry.MaxRetries,
		InitialDelay: cfg.Monitoring.Retry.InitialDelay,
		MaxDelay:     cfg.Monitoring.Retry.MaxDelay,
	}
	notifiers, err := channels.Build(channelConfigs, retry, log)
	if err != nil {
		log.Fatal("Failed to build notification channels: ", err)
	}

	// Prometheus registry with engine metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	// Create the monitoring engine
	engine := monitoring.NewEngine(monitoring.EngineConfig{
		DefaultEvaluationInterval: cfg.Monitoring.DefaultEvaluationInterval,
		QueryTimeout:              cfg.Monitoring.QueryTimeout,
		SendTimeout:               cfg.Monitoring.SendTimeout,
		DefaultRateLimit:          cfg.Monitoring.DefaultRateLimit,
		AlertRetention:            cfg.Monitoring.AlertRetention,
		CapacityInterval:          cfg.Monitoring.CapacityInterval,
		UtilizationThreshold:      cfg.Monitoring.UtilizationThreshold,
		FailureStreak:             cfg.Monitoring.FailureStreak,
	}, monitoring.Deps{
		Logger:   log,
		Source:   metricsource.NewSystemSource("/", log),
		Rules:    ruleRepo,
		Alerts:   alertRepo,
		Plans:    planRepo,
		Tests:    testRepo,
		Channels: notifiers,
		Events:   wsHub,
		Metrics:  metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap declarative rules before the loops start
	if cfg.Monitoring.RulesFile != "" {
		if err := bootstrapRules(ctx, cfg.Monitoring.RulesFile, cfg.Monitoring.DefaultEvaluationInterval, ruleRepo, log); err != nil {
			log.WithError(err).Warn("Failed to bootstrap rules from file")
		}
	}

	if err := engine.Start(ctx); err != nil {
		log.Fatal("Failed to start monitoring engine: ", err)
	}

	// HTTP server
	h := handlers.NewHandlers(cfg, log, engine, ruleRepo, alertRepo, planRepo, testRepo, wsHub)
	router := api.NewRouter(cfg, h, log, registry)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: ", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	engine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
