package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/config"
	"github.com/geowatch/geo-events-bot/internal/pipeline"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/geowatch/geo-events-bot/internal/sources"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 Geo Events Bot - API Connectivity Test")
	fmt.Println("=========================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("\n📡 Testing sources...")
	fmt.Println(strings.Repeat("-", 40))

	for _, adapter := range pipeline.NewAdapters(cfg, ratelimit.SystemClock()) {
		testSource(adapter, cfg.AdapterTimeout)
	}

	fmt.Println("\n✅ API connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Configure missing API keys in .env file")
	fmt.Println("   • Dry-run a full cycle with: go run ./cmd/test-integration")
}

func testSource(adapter *sources.Adapter, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("🔸 Testing %s (%s)... ", adapter.GetName(), adapter.Group())

	start := time.Now()
	items, status := adapter.Fetch(ctx)

	switch status {
	case sources.StatusDisabled:
		fmt.Printf("⚠️  DISABLED (missing credentials)\n")
		return
	case sources.StatusFailed:
		fmt.Printf("❌ FAILED after %v (see log)\n", time.Since(start).Round(time.Millisecond))
		return
	}

	fmt.Printf("✅ SUCCESS (%d items in %v)\n", len(items), time.Since(start).Round(time.Millisecond))
	if len(items) > 0 {
		fmt.Printf("   📝 Sample: \"%s\"\n", items[0].Title)
	}
}
