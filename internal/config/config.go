package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration, a cron spec with a leading seconds field
	CycleSchedule string
	TimeZone      string

	// Event and recipient database
	DatabasePath string

	// Azure Storage configuration for the cycle archive
	StorageAccount       string
	StorageContainer     string
	ArchiveRetentionDays int

	// Notification configuration
	TeamsWebhookURL string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	RecipientsFile  string

	// API Keys and credentials
	NewsAPIKey         string
	GNewsAPIKey        string
	TwitterBearerToken string
	RedditClientID     string
	RedditClientSecret string

	// Feeds and query terms
	RSSFeedURLs []string
	RSSMaxItems int
	Keywords    []string
	Hashtags    []string
	Subreddits  []string

	// Fetch limits
	NewsMinInterval   time.Duration
	StrictMinInterval time.Duration
	AdapterTimeout    time.Duration
	MaxQueryTerms     int
	PageSize          int

	// Pipeline
	Workers           int
	EngagementMetrics []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Debug:         getBoolEnv("DEBUG", false),
		CycleSchedule: getEnv("CYCLE_SCHEDULE", "0 */15 * * * *"),
		TimeZone:      getEnv("TIMEZONE", "UTC"),

		DatabasePath: getEnv("DATABASE_PATH", "geo-events.db"),

		StorageAccount:       getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer:     getEnv("AZURE_STORAGE_CONTAINER", "geo-events"),
		ArchiveRetentionDays: getIntEnv("ARCHIVE_RETENTION_DAYS", 30),

		TeamsWebhookURL: getEnv("TEAMS_WEBHOOK_URL", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:        getEnv("SMTP_FROM", ""),
		RecipientsFile:  getEnv("RECIPIENTS_FILE", ""),

		NewsAPIKey:         getEnv("NEWSAPI_KEY", ""),
		GNewsAPIKey:        getEnv("GNEWS_API_KEY", ""),
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),

		RSSFeedURLs: getSliceEnv("RSS_FEED_URLS", []string{
			"https://feeds.bbci.co.uk/news/world/rss.xml",
			"https://www.aljazeera.com/xml/rss/all.xml",
			"https://rss.dw.com/rdf/rss-en-world",
		}),
		RSSMaxItems: getIntEnv("RSS_MAX_ITEMS", 25),
		Keywords: getSliceEnv("KEYWORDS", []string{
			"sanctions",
			"geopolitics",
			"military conflict",
			"trade war",
			"election crisis",
		}),
		Hashtags:   getSliceEnv("HASHTAGS", []string{"geopolitics", "sanctions", "breaking"}),
		Subreddits: getSliceEnv("SUBREDDITS", []string{"worldnews", "geopolitics", "news"}),

		NewsMinInterval:   getDurationEnv("NEWS_MIN_INTERVAL", 60*time.Second),
		StrictMinInterval: getDurationEnv("STRICT_MIN_INTERVAL", 300*time.Second),
		AdapterTimeout:    getDurationEnv("ADAPTER_TIMEOUT", 45*time.Second),
		MaxQueryTerms:     getIntEnv("MAX_QUERY_TERMS", 5),
		PageSize:          getIntEnv("PAGE_SIZE", 50),

		Workers:           getIntEnv("WORKERS", 4),
		EngagementMetrics: getSliceEnv("ENGAGEMENT_METRICS", nil),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.CycleSchedule); err != nil {
		return fmt.Errorf("CYCLE_SCHEDULE is not a valid cron spec: %w", err)
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a known location", c.TimeZone)
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if c.NewsMinInterval <= 0 || c.StrictMinInterval <= 0 {
		return fmt.Errorf("NEWS_MIN_INTERVAL and STRICT_MIN_INTERVAL must be positive")
	}

	if c.AdapterTimeout <= 0 {
		return fmt.Errorf("ADAPTER_TIMEOUT must be positive")
	}

	if c.MaxQueryTerms < 1 {
		return fmt.Errorf("MAX_QUERY_TERMS must be at least 1")
	}

	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 100")
	}

	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}

	if c.SMTPHost != "" && c.SMTPFrom == "" && c.SMTPUsername == "" {
		return fmt.Errorf("SMTP_FROM or SMTP_USERNAME is required when SMTP_HOST is set")
	}

	return nil
}

// EmailEnabled reports whether an SMTP transport can be built
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s", "5m") or a bare number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var values []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
