package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/geowatch/geo-events-bot/internal/models"
	"golang.org/x/text/cases"
)

const (
	relevanceWeight = 0.4
	regionBonus     = 0.3
	categoryBonus   = 0.2
	keywordBonus    = 0.2
	criticalBonus   = 0.1
)

// KeywordScorer rates an event for a recipient by overlap between the
// event and the recipient's declared interests
type KeywordScorer struct{}

// NewKeywordScorer creates the default recipient scorer
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// Score returns a value in [0, 1] and a short explanation. Recipients with no
// declared interests get the event's platform relevance unchanged.
func (s *KeywordScorer) Score(ctx context.Context, recipient models.Recipient, event models.PersistedEvent) (float64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}

	interests := recipient.Interests
	if len(interests.Regions) == 0 && len(interests.Categories) == 0 && len(interests.Keywords) == 0 {
		return clamp(event.RelevanceScore), fmt.Sprintf("no declared interests, platform relevance %.2f", event.RelevanceScore), nil
	}

	fold := cases.Fold()
	score := relevanceWeight * event.RelevanceScore
	reasons := []string{fmt.Sprintf("relevance %.2f", event.RelevanceScore)}

	places := append([]string{event.Location}, event.Entities...)
	if region, ok := firstShared(fold, interests.Regions, places); ok {
		score += regionBonus
		reasons = append(reasons, "region "+region)
	}

	if category, ok := firstShared(fold, interests.Categories, []string{event.Category}); ok {
		score += categoryBonus
		reasons = append(reasons, "category "+category)
	}

	text := fold.String(strings.Join(append([]string{event.Title, event.Summary, event.Description}, event.Tags...), " "))
	for _, keyword := range interests.Keywords {
		k := fold.String(strings.TrimSpace(keyword))
		if k != "" && strings.Contains(text, k) {
			score += keywordBonus
			reasons = append(reasons, "keyword "+keyword)
			break
		}
	}

	if event.Severity == models.SeverityCritical {
		score += criticalBonus
		reasons = append(reasons, "critical severity")
	}

	return clamp(score), strings.Join(reasons, "; "), nil
}

func firstShared(fold cases.Caser, wanted, have []string) (string, bool) {
	for _, w := range wanted {
		fw := fold.String(strings.TrimSpace(w))
		if fw == "" {
			continue
		}
		for _, h := range have {
			if fw == fold.String(h) {
				return w, true
			}
		}
	}
	return "", false
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(1, score))
}
