package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/geowatch/geo-events-bot/internal/aggregator"
	"github.com/geowatch/geo-events-bot/internal/analysis"
	"github.com/geowatch/geo-events-bot/internal/config"
	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/notifications"
	"github.com/geowatch/geo-events-bot/internal/persist"
	"github.com/geowatch/geo-events-bot/internal/pipeline"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/geowatch/geo-events-bot/internal/scoring"
	"github.com/geowatch/geo-events-bot/internal/storage"
	"github.com/geowatch/geo-events-bot/internal/store"
	"github.com/joho/godotenv"
)

// consoleReporter prints the cycle report instead of posting it to Teams
type consoleReporter struct{}

func (consoleReporter) SendCycleReport(ctx context.Context, summary *models.CycleSummary) error {
	fmt.Println("\n🎉 CYCLE REPORT")
	fmt.Printf("📊 Fetched %d, analyzed %d, persisted %d, duplicates %d, notified %d, failed %d\n",
		summary.Fetched, summary.Analyzed, summary.Persisted, summary.Duplicates, summary.Notified, summary.Failed())

	for i, event := range summary.Events {
		if i >= 5 {
			break
		}
		fmt.Printf("   %d. [%s/%s] %s (%s, %.2f)\n", i+1, event.Category, event.Severity, event.Title, event.Location, event.RelevanceScore)
	}
	return nil
}

func main() {
	fmt.Println("🧪 Geo Events Bot - Local Integration Test")
	fmt.Println("==========================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Everything stays in memory; emails are logged, not sent
	memory := store.NewMemoryStore()
	recipients, err := config.LoadRecipients(cfg.RecipientsFile)
	if err != nil {
		log.Fatalf("Failed to load recipients: %v", err)
	}
	if len(recipients) == 0 {
		recipients = []models.Recipient{{
			ID:    "dry-run",
			Email: "dry-run@example.com",
			Name:  "Dry Run",
			NotificationPreferences: models.NotificationPreferences{
				EmailEnabled: true,
				Frequency:    models.FrequencyDaily,
			},
		}}
	}
	for _, r := range recipients {
		if err := memory.UpsertRecipient(ctx, r); err != nil {
			log.Fatalf("Failed to add recipient %s: %v", r.ID, err)
		}
	}

	clock := ratelimit.SystemClock()
	blobs := storage.NewMemoryStorage()
	service := pipeline.NewService(pipeline.Deps{
		Aggregator: aggregator.New(pipeline.Fetchers(pipeline.NewAdapters(cfg, clock)), cfg.AdapterTimeout),
		Analyzer:   analysis.NewAnalyzer(cfg.EngagementMetrics),
		Persister:  persist.NewPersister(memory, cfg.Workers),
		Dispatcher: notifications.NewDispatcher(memory, scoring.NewKeywordScorer(), notifications.ConsoleTransport{}, clock, cfg.Workers),
		Events:     memory,
		Archive:    storage.NewArchive(blobs),
		Reporter:   consoleReporter{},
		Clock:      clock,
		Workers:    cfg.Workers,
	})

	fmt.Println("🔍 Running full pipeline cycle...")
	fmt.Println("⏱️  This will call real APIs and may take 30-60 seconds...")

	summary, err := service.RunFullCycle(ctx)
	if err != nil {
		fmt.Printf("❌ Cycle ended with error: %v\n", err)
	}

	if summary.EventsProcessed() == 0 {
		fmt.Println("ℹ️  No new events found. This is normal for a quick test.")
		fmt.Println("💡 Add NEWSAPI_KEY, GNEWS_API_KEY or social credentials for more results.")
	}

	archived, _ := blobs.List(ctx, "cycles/")
	fmt.Printf("📁 %d cycle documents archived in memory\n", len(archived))

	// A second cycle right away must find nothing new
	fmt.Println("\n🔁 Re-running the cycle to check deduplication...")
	again, err := service.RunFullCycle(ctx)
	if err != nil {
		fmt.Printf("❌ Second cycle ended with error: %v\n", err)
	} else {
		fmt.Printf("   New events on second run: %d (rate-limited sources return nothing)\n", again.EventsProcessed())
	}

	fmt.Println("\n✅ Local integration test completed!")
}
