// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tombstone/internal/infrastructure/http/v1/handlers"
	"tombstone/internal/infrastructure/http/v1/middleware"
	"tombstone/internal/infrastructure/metrics"
	"tombstone/internal/softdelete"
	"tombstone/pkg/logger"
)

// Version is reported by /health/info.
const Version = "0.1.0"

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Engine drives record lifecycles
	Engine *softdelete.Engine

	// DB is pinged by the readiness probe
	DB handlers.Pinger

	// DBStats reports connection pool usage; optional
	DBStats func() any

	// Logger for request logging
	Logger *logger.Logger

	// Metrics enables /metrics and request instrumentation when set
	Metrics *metrics.Collector
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.DBStats, cfg.Engine.Registry(), Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Metrics != nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(cfg.Metrics, collectors.NewGoCollector())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	handlers.NewRecordsHandler(handlers.NewBaseHandler(), cfg.Engine).RegisterRoutes(api)

	return router
}
