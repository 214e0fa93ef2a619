package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/geowatch/geo-events-bot/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxTags             = 10
	baseRelevance       = 0.1
	keywordWeight       = 0.1
	keywordCap          = 0.4
	regionWeight        = 0.15
	regionCap           = 0.3
	maxSummaryLength    = 200
	defaultBatchWorkers = 8
)

// Analyzer classifies raw items into candidate events. It holds no mutable
// state, so one instance can be shared by any number of goroutines.
type Analyzer struct {
	engagementMetrics []string
}

// NewAnalyzer creates an analyzer. engagementMetrics selects which counters
// feed the social engagement boost; nil uses the defaults.
func NewAnalyzer(engagementMetrics []string) *Analyzer {
	if len(engagementMetrics) == 0 {
		engagementMetrics = defaultEngagementMetrics
	}
	return &Analyzer{engagementMetrics: engagementMetrics}
}

// Analyze returns the candidate event for item, or false when the item is
// not about geopolitics at all.
func (a *Analyzer) Analyze(item models.RawItem) (models.CandidateEvent, bool) {
	text := strings.ToLower(strings.Join([]string{item.Title, item.Description, item.Body}, " "))

	matchedKeywords := matchAll(text, geopoliticalKeywords)
	if len(matchedKeywords) == 0 {
		return models.CandidateEvent{}, false
	}

	matchedRegions := matchAll(text, locations)

	event := models.CandidateEvent{
		Title:             strings.TrimSpace(item.Title),
		Description:       strings.TrimSpace(item.Description),
		FullText:          strings.TrimSpace(strings.Join([]string{item.Title, item.Description, item.Body}, "\n\n")),
		Location:          a.location(matchedRegions),
		Category:          category(text),
		Severity:          severity(text),
		EventDate:         item.PublishedAt,
		Tags:              firstN(matchedKeywords, maxTags),
		Keywords:          matchAll(text, keyPhrases),
		Impact:            impact(text),
		Platform:          item.Platform,
		SourceName:        item.SourceName,
		SourceURL:         item.URL,
		SourceReliability: item.SourceReliability,
		Sentiment:         sentiment(text),
		Entities:          a.entities(text),
	}

	score := relevance(text, len(matchedKeywords), len(matchedRegions))

	switch item.Platform {
	case models.PlatformTwitter, models.PlatformReddit, models.PlatformLinkedIn:
		event.Engagement = a.engagement(item.Engagement)
		score = clamp(score + engagementBoost(event.Engagement))
	case models.PlatformNews:
	default:
		// unknown platforms are treated like news
	}

	event.RelevanceScore = score
	event.Summary = summary(item, event.Location)

	return event, true
}

// AnalyzeBatch analyzes items in parallel and returns the relevant candidates
// in input order together with the number of items judged not relevant.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, items []models.RawItem, workers int) ([]models.CandidateEvent, int, error) {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}

	type result struct {
		event    models.CandidateEvent
		relevant bool
		done     bool
	}
	results := make([]result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			event, ok := a.Analyze(items[i])
			results[i] = result{event: event, relevant: ok, done: true}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var events []models.CandidateEvent
	notRelevant := 0
	for _, r := range results {
		if !r.done {
			continue
		}
		if r.relevant {
			events = append(events, r.event)
		} else {
			notRelevant++
		}
	}

	return events, notRelevant, err
}

func (a *Analyzer) location(matchedRegions []string) string {
	if len(matchedRegions) == 0 {
		return models.DefaultLocation
	}
	return a.displayName(matchedRegions[0], locationNames)
}

func (a *Analyzer) entities(text string) []string {
	matched := matchAll(text, entityTerms)
	names := make([]string, 0, len(matched))
	for _, term := range matched {
		names = append(names, a.displayName(term, entityNames))
	}
	return names
}

func (a *Analyzer) displayName(term string, overrides map[string]string) string {
	if name, ok := overrides[term]; ok {
		return name
	}
	// Casers keep state, so each call gets its own
	return cases.Title(language.English).String(term)
}

func (a *Analyzer) engagement(metrics map[string]int) int {
	total := 0
	for _, name := range a.engagementMetrics {
		total += metrics[name]
	}
	return total
}

func category(text string) string {
	for _, rule := range categoryRules {
		if containsAny(text, rule.terms) {
			return rule.category
		}
	}
	return CategoryGeneral
}

func severity(text string) models.Severity {
	switch {
	case containsAny(text, criticalTerms):
		return models.SeverityCritical
	case containsAny(text, highTerms):
		return models.SeverityHigh
	case containsAny(text, mediumTerms):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func impact(text string) string {
	switch {
	case containsAny(text, globalImpactTerms):
		return models.ImpactGlobal
	case containsAny(text, regionalImpactTerms):
		return models.ImpactRegional
	case containsAny(text, nationalImpactTerms):
		return models.ImpactNational
	default:
		return models.ImpactLocal
	}
}

func relevance(text string, keywordMatches, regionMatches int) float64 {
	score := baseRelevance
	score += math.Min(keywordWeight*float64(keywordMatches), keywordCap)
	score += math.Min(regionWeight*float64(regionMatches), regionCap)

	for _, b := range relevanceBonuses {
		if containsAny(text, b.terms) {
			score += b.bonus
		}
	}

	return clamp(score)
}

func engagementBoost(total int) float64 {
	switch {
	case total > 1000:
		return 0.2
	case total > 100:
		return 0.1
	case total > 10:
		return 0.05
	default:
		return 0
	}
}

func sentiment(text string) string {
	positive := weightedCount(text, positiveTerms)
	negative := weightedCount(text, negativeTerms)
	neutral := weightedCount(text, neutralTerms)

	switch {
	case positive > negative && positive > neutral:
		return models.SentimentPositive
	case negative > positive && negative > neutral:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func summary(item models.RawItem, location string) string {
	for _, field := range []string{item.Title, item.Description} {
		lower := strings.ToLower(field)
		for _, rule := range summaryRules {
			if containsTerm(lower, rule.term) {
				return fmt.Sprintf("%s (%s)", rule.label, location)
			}
		}
	}

	if d := strings.TrimSpace(item.Description); d != "" {
		runes := []rune(d)
		if len(runes) > maxSummaryLength {
			return strings.TrimSpace(string(runes[:maxSummaryLength])) + "..."
		}
		return d
	}
	return strings.TrimSpace(item.Title)
}

func weightedCount(text string, terms []weightedTerm) int {
	total := 0
	for _, t := range terms {
		if containsTerm(text, t.term) {
			total += t.weight
		}
	}
	return total
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(1, score))
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
