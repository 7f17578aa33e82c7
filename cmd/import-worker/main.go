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

	"github.com/semenkulikov/Online-school/internal/cache"
	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/db"
	"github.com/semenkulikov/Online-school/internal/importer"
	"github.com/semenkulikov/Online-school/internal/logger"
	"github.com/semenkulikov/Online-school/internal/monitoring"
	"github.com/semenkulikov/Online-school/internal/queue"
	"github.com/semenkulikov/Online-school/internal/storage"
	"github.com/semenkulikov/Online-school/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.InitFromConfig(cfg)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting import worker")
	monitoring.Init()

	opts, err := importer.OptionsFromConfig(cfg.Importer)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid importer configuration")
	}

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	repo := db.NewRepository(database)

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	workbooks, err := storage.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize workbook storage")
	}

	svc := importer.NewService(repo, opts).
		WithLock(cache.NewImportLock(redisClient.Client(), cfg)).
		WithCache(cache.NewSummaryCache(redisClient.Client(), cfg))

	importWorker := worker.NewImportWorker(cfg, svc, repo, workbooks, redisClient)

	var metricsServer *http.Server
	if port := cfg.Workers.Import.MetricsPort; port > 0 {
		metricsServer = monitoring.NewServer(port)
		go func() {
			log.Info().Int("port", port).Msg("Serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := importWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("Import worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down import worker...")

	cancel()
	importWorker.Stop()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server forced to shutdown")
		}
	}

	log.Info().Msg("Import worker exited")
}
