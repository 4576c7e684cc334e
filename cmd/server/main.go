// Package main is the entry point for the tombstone admin API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tombstone/internal/config"
	"tombstone/internal/domain/inventory"
	"tombstone/internal/infrastructure/cache"
	v1 "tombstone/internal/infrastructure/http/v1"
	"tombstone/internal/infrastructure/metrics"
	"tombstone/internal/softdelete"
	"tombstone/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting tombstone server", "driver", cfg.DB.Driver, "soft_delete", cfg.SoftDelete.Enabled)
	if !cfg.SoftDelete.Enabled {
		log.Warnw("soft delete disabled, set TOMBSTONE_ENABLED=true to enroll types")
	}

	// --- Storage ---
	be, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}
	defer be.close()

	if cfg.AutoMigrate {
		if err := be.migrate(ctx, cfg.DB.Driver); err != nil {
			log.Fatalw("failed to migrate", "error", err)
		}
		log.Info("inventory schema ready")
	}

	// --- Registry and engine ---
	registry := softdelete.NewRegistry(cfg.SoftDelete, be.store)
	if err := inventory.Register(registry); err != nil {
		log.Fatalw("failed to register types", "error", err)
	}
	log.Infow("soft delete eligibility resolved",
		"registered", registry.Types(),
		"enrolled", registry.ResolveAll(ctx),
		"excluded_tables", cfg.SoftDelete.ExcludedTables,
	)

	collector := metrics.NewCollector()
	engine := softdelete.NewEngine(registry, be.store, be.txm, softdelete.WithRecorder(collector))

	// --- Schema change listener ---
	if cfg.ListenSchemaChanges && be.pool != nil {
		listenCtx := logger.WithLogger(ctx, log.WithComponent("schema-listener"))
		listener := cache.NewSchemaListener(be.pool.Pool, registry)
		listener.OnInvalidation(func(_ string, table string) {
			logger.Info(listenCtx, "eligibility re-resolved after schema change",
				"table", table,
				"enrolled", registry.ResolveAll(listenCtx),
			)
		})
		listener.Start(listenCtx)
		defer listener.Stop()
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Engine:  engine,
		DB:      be.ping,
		DBStats: be.stats,
		Logger:  log,
		Metrics: collector,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if be.pool != nil {
		be.pool.LogStats(ctx)
	}

	log.Info("server stopped")
}
