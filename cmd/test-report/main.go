package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/analysis"
	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/notifications"
	"github.com/google/uuid"
)

const outputDir = "test_output"

func sampleItems(now time.Time) []models.RawItem {
	return []models.RawItem{
		{
			Title:       "US imposes new sanctions on Iran",
			Description: "Treasury announces sanction and embargo measures targeting oil exports.",
			URL:         "https://example.com/news/iran-sanctions",
			PublishedAt: now.Add(-2 * time.Hour),
			SourceName:  "Reuters",
			Platform:    models.PlatformNews,
		},
		{
			Title:       "Troops mobilize near the border as ceasefire talks stall",
			Description: "Military officials in Ukraine report new missile strikes overnight.",
			URL:         "https://example.com/news/ceasefire",
			PublishedAt: now.Add(-30 * time.Minute),
			SourceName:  "BBC World",
			Platform:    models.PlatformNews,
		},
		{
			Title:      "Election crisis deepens after disputed vote #geopolitics",
			URL:        "https://twitter.com/i/web/status/1",
			SourceName: "Twitter",
			Platform:   models.PlatformTwitter,
			Engagement: map[string]int{"likes": 1200, "retweets": 340},
		},
		{
			Title:      "Local bakery wins award",
			URL:        "https://example.com/news/bakery",
			SourceName: "Town Gazette",
			Platform:   models.PlatformNews,
		},
	}
}

func main() {
	fmt.Println("📧 Geo Events Bot - Alert Preview")
	fmt.Println(strings.Repeat("=", 70))

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Failed to create %s: %v", outputDir, err)
	}

	now := time.Now().UTC()
	analyzer := analysis.NewAnalyzer(nil)
	recipient := models.Recipient{ID: "preview", Email: "analyst@example.com", Name: "Analyst"}

	var events []models.PersistedEvent
	for _, item := range sampleItems(now) {
		candidate, ok := analyzer.Analyze(item)
		if !ok {
			fmt.Printf("⏭️  Not relevant: %s\n", item.Title)
			continue
		}

		event := models.PersistedEvent{CandidateEvent: candidate, ID: uuid.NewString(), CreatedAt: now}
		events = append(events, event)

		subject, body, err := notifications.RenderAlert(notifications.Alert{
			Recipient:   recipient,
			Event:       event,
			Score:       event.RelevanceScore,
			Rationale:   "preview at the event's own relevance",
			Risk:        notifications.RiskLevelFor(event.RelevanceScore),
			GeneratedAt: now,
		})
		if err != nil {
			log.Fatalf("Failed to render alert: %v", err)
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("alert_%s.html", event.ID[:8]))
		if err := os.WriteFile(filename, []byte(body), 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", filename, err)
		}

		fmt.Printf("\n✉️  %s\n", subject)
		fmt.Printf("    📍 %s | %s | %s | sentiment %s\n", event.Location, event.Severity, event.Impact, event.Sentiment)
		fmt.Printf("    🏷️  %s\n", strings.Join(event.Tags, ", "))
		fmt.Printf("    💾 %s\n", filename)
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode events: %v", err)
	}
	eventsFile := filepath.Join(outputDir, fmt.Sprintf("events_%s.json", now.Format("2006-01-02_15-04-05")))
	if err := os.WriteFile(eventsFile, data, 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", eventsFile, err)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("✅ %d alerts rendered, events saved to %s\n", len(events), eventsFile)
}
