package models

import "time"

// Platform identifies which kind of feed produced a RawItem
type Platform string

const (
	PlatformNews     Platform = "news"
	PlatformTwitter  Platform = "twitter"
	PlatformReddit   Platform = "reddit"
	PlatformLinkedIn Platform = "linkedin"
)

// IsSocial reports whether items from the platform carry engagement counters
func (p Platform) IsSocial() bool {
	switch p {
	case PlatformTwitter, PlatformReddit, PlatformLinkedIn:
		return true
	case PlatformNews:
		return false
	}
	return false
}

// Reliability is a coarse trust rating for a source
type Reliability string

const (
	ReliabilityHigh    Reliability = "high"
	ReliabilityMedium  Reliability = "medium"
	ReliabilityLow     Reliability = "low"
	ReliabilityUnknown Reliability = "unknown"
)

// RawItem is one normalized fetch result from an external feed.
// A zero PublishedAt means the provider gave no usable timestamp.
type RawItem struct {
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Body              string         `json:"body"`
	URL               string         `json:"url"`
	Author            string         `json:"author,omitempty"`
	PublishedAt       time.Time      `json:"published_at"`
	SourceName        string         `json:"source_name"`
	SourceReliability Reliability    `json:"source_reliability"`
	Platform          Platform       `json:"platform"`
	Engagement        map[string]int `json:"engagement,omitempty"` // likes, upvotes, retweets...
}

// Severity is ordered: low < medium < high < critical
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalText lets severities travel as strings in JSON and YAML
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// ParseSeverity maps a name to a Severity, defaulting to low
func ParseSeverity(name string) Severity {
	switch name {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

const (
	ImpactLocal    = "Local"
	ImpactNational = "National"
	ImpactRegional = "Regional"
	ImpactGlobal   = "Global"
)

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// DefaultLocation is used when no known region appears in the text
const DefaultLocation = "Global"

// CandidateEvent is the analyzer's judgment that an item describes a geopolitical event
type CandidateEvent struct {
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Summary           string      `json:"summary"`
	FullText          string      `json:"full_text"`
	Location          string      `json:"location"`
	Category          string      `json:"category"`
	Severity          Severity    `json:"severity"`
	EventDate         time.Time   `json:"event_date"`
	RelevanceScore    float64     `json:"relevance_score"` // 0-1
	Tags              []string    `json:"tags"`
	Keywords          []string    `json:"keywords"`
	Impact            string      `json:"impact"`
	Platform          Platform    `json:"platform"`
	Engagement        int         `json:"engagement"`
	SourceName        string      `json:"source_name"`
	SourceURL         string      `json:"source_url"`
	SourceReliability Reliability `json:"source_reliability"`
	Sentiment         string      `json:"sentiment"`
	Entities          []string    `json:"entities"`
}

// PersistedEvent is a CandidateEvent that passed dedup and was written to the store
type PersistedEvent struct {
	CandidateEvent
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Frequency governs the minimum spacing between notifications to a recipient
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
)

// NotificationPreferences holds per-recipient delivery settings
type NotificationPreferences struct {
	EmailEnabled bool      `json:"email_enabled" yaml:"email_enabled"`
	Frequency    Frequency `json:"frequency" yaml:"frequency"`
}

// Interests describe what a recipient cares about
type Interests struct {
	Regions    []string `json:"regions" yaml:"regions"`
	Categories []string `json:"categories" yaml:"categories"`
	Keywords   []string `json:"keywords" yaml:"keywords"`
}

// Recipient is a notification target
type Recipient struct {
	ID                      string                  `json:"id" yaml:"id"`
	Email                   string                  `json:"email" yaml:"email"`
	Name                    string                  `json:"name" yaml:"name"`
	Interests               Interests               `json:"interests" yaml:"interests"`
	NotificationPreferences NotificationPreferences `json:"notification_preferences" yaml:"notification_preferences"`
}

// NotificationRecord is an append-only fact that a notification was sent
type NotificationRecord struct {
	RecipientID string    `json:"recipient_id"`
	EventID     string    `json:"event_id"`
	Score       float64   `json:"score"`
	SentAt      time.Time `json:"sent_at"`
	MessageID   string    `json:"message_id"`
}

// CycleSummary reports how far each stage of a pipeline cycle got
type CycleSummary struct {
	StartedAt     time.Time        `json:"started_at"`
	Duration      string           `json:"duration"`
	Fetched       int              `json:"fetched"`
	Analyzed      int              `json:"analyzed"`
	NotRelevant   int              `json:"not_relevant"`
	Persisted     int              `json:"persisted"`
	Duplicates    int              `json:"duplicates"`
	Invalid       int              `json:"invalid"`
	PersistFailed int              `json:"persist_failed"`
	Notified      int              `json:"notified"`
	NotifySkipped int              `json:"notify_skipped"`
	NotifyFailed  int              `json:"notify_failed"`
	Canceled      bool             `json:"canceled"`
	Events        []PersistedEvent `json:"events"`
}

// EventsProcessed is the number of events newly persisted by the cycle
func (s *CycleSummary) EventsProcessed() int {
	return len(s.Events)
}

// Failed sums every per-item failure the cycle recovered from
func (s *CycleSummary) Failed() int {
	return s.Invalid + s.PersistFailed + s.NotifyFailed
}
