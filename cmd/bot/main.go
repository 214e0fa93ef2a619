package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geowatch/geo-events-bot/internal/aggregator"
	"github.com/geowatch/geo-events-bot/internal/analysis"
	"github.com/geowatch/geo-events-bot/internal/api"
	"github.com/geowatch/geo-events-bot/internal/config"
	"github.com/geowatch/geo-events-bot/internal/metrics"
	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/notifications"
	"github.com/geowatch/geo-events-bot/internal/persist"
	"github.com/geowatch/geo-events-bot/internal/pipeline"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/geowatch/geo-events-bot/internal/scheduler"
	"github.com/geowatch/geo-events-bot/internal/scoring"
	"github.com/geowatch/geo-events-bot/internal/storage"
	"github.com/geowatch/geo-events-bot/internal/store"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Geo Events Bot")

	ctx := context.Background()

	db, err := store.NewSQLStore(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open event store: %v", err)
	}
	defer db.Close()

	// The recipients file, when set, is the whole recipient list: entries
	// removed from it stop receiving notifications
	if cfg.RecipientsFile != "" {
		recipients, err := config.LoadRecipients(cfg.RecipientsFile)
		if err != nil {
			logrus.Fatalf("Failed to load recipients: %v", err)
		}
		removed, err := store.SyncRecipients(ctx, db, recipients)
		if err != nil {
			logrus.Fatalf("Failed to seed recipients: %v", err)
		}
		logrus.Infof("Seeded %d recipients, removed %d", len(recipients), removed)

		watcher, err := config.WatchRecipients(cfg.RecipientsFile, func(updated []models.Recipient) {
			if _, err := store.SyncRecipients(context.Background(), db, updated); err != nil {
				logrus.Errorf("Failed to apply recipient changes: %v", err)
			}
		})
		if err != nil {
			logrus.Warnf("Recipient changes will need a restart: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	// The archive is optional; without a storage account cycles are only logged
	var archive *storage.Archive
	if cfg.StorageAccount != "" {
		blobs, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize storage: %v", err)
		}
		archive = storage.NewArchive(blobs)
	}

	var transport notifications.Transport = notifications.ConsoleTransport{}
	if cfg.EmailEnabled() {
		transport = notifications.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		logrus.Warn("SMTP_HOST not set, notifications will only be logged")
	}

	clock := ratelimit.SystemClock()
	recorder := metrics.New()
	adapters := pipeline.NewAdapters(cfg, clock)
	for _, a := range adapters {
		if !a.IsEnabled() {
			logrus.Infof("Source %s is disabled (missing credentials or feeds)", a.GetName())
		}
	}

	deps := pipeline.Deps{
		Aggregator: aggregator.New(pipeline.Fetchers(adapters), cfg.AdapterTimeout),
		Analyzer:   analysis.NewAnalyzer(cfg.EngagementMetrics),
		Persister:  persist.NewPersister(db, cfg.Workers),
		Dispatcher: notifications.NewDispatcher(db, scoring.NewKeywordScorer(), transport, clock, cfg.Workers),
		Events:     db,
		Recorder:   recorder,
		Archive:    archive,
		Reporter:   notifications.NewTeamsReporter(cfg.TeamsWebhookURL),
		Clock:      clock,
		Workers:    cfg.Workers,
	}
	pipelineService := pipeline.NewService(deps)

	// a nil *Archive must not become a non-nil Pruner
	var pruner scheduler.Pruner
	if archive != nil {
		pruner = archive
	}
	schedulerService := scheduler.NewService(cfg, pipelineService, pruner)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := api.NewRouter(pipelineService, recorder.Handler(), db.Ping)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// POST /cycles runs a whole cycle inline
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
