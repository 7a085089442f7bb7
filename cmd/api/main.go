package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mini-rodalies-3d/tripaudit/internal/api"
	"github.com/mini-rodalies-3d/tripaudit/internal/cache"
	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/db"
	"github.com/mini-rodalies-3d/tripaudit/internal/static"
)

func main() {
	log.Println("Starting trip audit API...")

	// Load configuration
	cfg := config.Load()
	log.Printf("Config loaded: db=%s, retention=%d days", cfg.DatabasePath, cfg.RetentionDays)

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Initialize Database
	// ═══════════════════════════════════════════════════════
	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	log.Println("Database initialized")

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Reference Data Refresh (startup)
	// ═══════════════════════════════════════════════════════
	catalog, err := static.LoadCatalog(cfg.CatalogDir)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	if err := static.RefreshIfStale(context.Background(), cfg.CorpusDir, cfg.StaticRefreshDays, database); err != nil {
		log.Printf("Warning: corpus refresh failed: %v", err)
		// Continue anyway - use the imported sheets if available
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Report Cache (optional)
	// ═══════════════════════════════════════════════════════
	var reportCache *cache.ReportCache
	if cfg.RedisEnabled {
		reportCache, err = cache.NewReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ReportCacheTTL)
		if err != nil {
			log.Printf("Warning: report cache disabled: %v", err)
			reportCache = nil
		}
	}
	defer reportCache.Close()

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Background Maintenance
	// ═══════════════════════════════════════════════════════
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := database.Cleanup(ctx, cfg.RetentionDays); err != nil {
		log.Printf("Cleanup error: %v", err)
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := database.Cleanup(ctx, cfg.RetentionDays); err != nil {
					log.Printf("Cleanup error: %v", err)
				}
				if err := static.RefreshIfStale(ctx, cfg.CorpusDir, cfg.StaticRefreshDays, database); err != nil {
					log.Printf("Corpus refresh failed: %v", err)
				}
			case <-ctx.Done():
				log.Println("Maintenance loop stopped")
				return
			}
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Serve
	// ═══════════════════════════════════════════════════════
	server := api.NewServer(database, reportCache, catalog, cfg.Tolerances)
	httpServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           server.Router(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("API server starting on :%s", cfg.APIPort)
		log.Println("  GET    /health")
		log.Println("  GET    /api/runs")
		log.Println("  POST   /api/runs")
		log.Println("  GET    /api/runs/{runId}")
		log.Println("  DELETE /api/runs/{runId}")
		log.Println("  GET    /api/runs/{runId}/halts")
		log.Println("  GET    /api/runs/{runId}/events")
		log.Println("  GET    /api/corridors")
		log.Println("  GET    /api/corridors/{name}/baselines")
		log.Println("  GET    /api/live (websocket)")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 6: Graceful Shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}
