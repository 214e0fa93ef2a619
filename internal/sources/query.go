package sources

import (
	"fmt"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
)

const (
	defaultMaxQueryTerms = 5
	defaultPageSize      = 50
	userAgent            = "Geo-Events-Bot/1.0"
	clientTimeout        = 30 * time.Second
)

// QueryOptions controls how an adapter builds its provider query
type QueryOptions struct {
	Terms         []string
	MaxQueryTerms int
	PageSize      int
	BaseURL       string // overrides the provider endpoint, mainly for tests
}

func (o QueryOptions) maxTerms() int {
	if o.MaxQueryTerms <= 0 {
		return defaultMaxQueryTerms
	}
	return o.MaxQueryTerms
}

func (o QueryOptions) pageSize() int {
	if o.PageSize <= 0 {
		return defaultPageSize
	}
	return o.PageSize
}

// buildORQuery OR-joins a bounded prefix of terms so provider query length
// stays bounded. Multi-word terms are quoted.
func buildORQuery(terms []string, max int) string {
	var parts []string
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if len(parts) == max {
			break
		}
		if strings.Contains(term, " ") {
			term = fmt.Sprintf("%q", term)
		}
		parts = append(parts, term)
	}
	return strings.Join(parts, " OR ")
}

// clampInt bounds v to [lo, hi]
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncateText(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return strings.TrimSpace(string(runes[:maxLength])) + "..."
}

// parseTimestamp tries the layouts providers actually send. A zero time is
// returned for anything unparseable so the persister can reject the event.
func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z, time.RFC1123, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

var sourceReliability = map[string]models.Reliability{
	"reuters":                 models.ReliabilityHigh,
	"associated press":        models.ReliabilityHigh,
	"ap news":                 models.ReliabilityHigh,
	"bbc news":                models.ReliabilityHigh,
	"financial times":         models.ReliabilityHigh,
	"bloomberg":               models.ReliabilityHigh,
	"the economist":           models.ReliabilityHigh,
	"the wall street journal": models.ReliabilityHigh,
	"al jazeera english":      models.ReliabilityMedium,
	"the guardian":            models.ReliabilityMedium,
	"cnn":                     models.ReliabilityMedium,
	"politico":                models.ReliabilityMedium,
	"deutsche welle":          models.ReliabilityMedium,
	"france 24":               models.ReliabilityMedium,
}

// reliabilityFor rates a named news outlet
func reliabilityFor(sourceName string) models.Reliability {
	if r, ok := sourceReliability[strings.ToLower(strings.TrimSpace(sourceName))]; ok {
		return r
	}
	return models.ReliabilityUnknown
}
