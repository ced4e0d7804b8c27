package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/taskhub-ops/taskhub-backend-go/internal/api/handlers"
	"github.com/taskhub-ops/taskhub-backend-go/internal/api/middleware"
	"github.com/taskhub-ops/taskhub-backend-go/internal/config"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, h *handlers.Handlers, logger *logrus.Logger, registry *prometheus.Registry) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	// Public routes
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// WebSocket event stream
	router.GET("/ws", h.WebSocketHandler)

	// API v1 routes
	api := router.Group("/api/v1")
	{
		rules := api.Group("/alert-rules")
		{
			rules.GET("", h.ListAlertRules)
			rules.POST("", h.CreateAlertRule)
			rules.GET("/:id", h.GetAlertRule)
			rules.PUT("/:id", h.UpdateAlertRule)
			rules.DELETE("/:id", h.DeleteAlertRule)
		}

		alerts := api.Group("/alerts")
		{
			alerts.GET("", h.ListAlerts)
			alerts.GET("/:id", h.GetAlert)
			alerts.POST("/:id/acknowledge", h.AcknowledgeAlert)
			alerts.POST("/:id/resolve", h.ResolveAlert)
		}

		capacity := api.Group("/capacity-plans")
		{
			capacity.GET("", h.ListCapacityPlans)
			capacity.POST("", h.CreateCapacityPlan)
			capacity.GET("/:id", h.GetCapacityPlan)
			capacity.PUT("/:id", h.UpdateCapacityPlan)
			capacity.DELETE("/:id", h.DeleteCapacityPlan)
			capacity.POST("/:id/recompute", h.RecomputeCapacityPlan)
		}

		tests := api.Group("/performance-tests")
		{
			tests.GET("", h.ListPerformanceTests)
			tests.POST("", h.CreatePerformanceTest)
			tests.GET("/:id", h.GetPerformanceTest)
			tests.PUT("/:id/baseline", h.SetTestBaseline)
			tests.POST("/:id/results", h.RecordTestResult)
			tests.GET("/:id/results", h.ListTestResults)
		}
	}

	return router
}
