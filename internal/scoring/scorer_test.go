package scoring

import (
	"context"
	"testing"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sanctionsEvent() models.PersistedEvent {
	return models.PersistedEvent{
		ID: "e1",
		CandidateEvent: models.CandidateEvent{
			Title:          "US imposes new sanctions on Iran",
			Summary:        "Sanctions imposed (Iran)",
			Location:       "Iran",
			Category:       "Sanctions",
			Severity:       models.SeverityHigh,
			RelevanceScore: 0.6,
			Tags:           []string{"sanction", "embargo"},
			Entities:       []string{"Iran", "United States"},
		},
	}
}

func TestKeywordScorer_Score(t *testing.T) {
	tests := []struct {
		name      string
		interests models.Interests
		mutate    func(e *models.PersistedEvent)
		expected  float64
		reason    string
	}{
		{
			name:     "No interests uses platform relevance",
			expected: 0.6,
			reason:   "no declared interests",
		},
		{
			name:      "Region and category",
			interests: models.Interests{Regions: []string{"Iran"}, Categories: []string{"Sanctions"}},
			expected:  0.74,
			reason:    "category Sanctions",
		},
		{
			name:      "Case-insensitive region via entities",
			interests: models.Interests{Regions: []string{"united states"}},
			expected:  0.54,
			reason:    "region united states",
		},
		{
			name:      "Keyword in tags",
			interests: models.Interests{Keywords: []string{"Embargo"}},
			expected:  0.44,
			reason:    "keyword Embargo",
		},
		{
			name:      "Unrelated interests",
			interests: models.Interests{Regions: []string{"Brazil"}, Categories: []string{"Elections"}},
			expected:  0.24,
			reason:    "relevance 0.60",
		},
		{
			name:      "Clamped at one",
			interests: models.Interests{Regions: []string{"Iran"}, Categories: []string{"Sanctions"}, Keywords: []string{"sanction"}},
			mutate: func(e *models.PersistedEvent) {
				e.RelevanceScore = 1
				e.Severity = models.SeverityCritical
			},
			expected: 1,
			reason:   "critical severity",
		},
	}

	scorer := NewKeywordScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := sanctionsEvent()
			if tt.mutate != nil {
				tt.mutate(&event)
			}

			score, rationale, err := scorer.Score(context.Background(), models.Recipient{ID: "r1", Interests: tt.interests}, event)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, score, 1e-9)
			assert.Contains(t, rationale, tt.reason)
		})
	}
}

func TestKeywordScorer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewKeywordScorer().Score(ctx, models.Recipient{}, sanctionsEvent())
	assert.ErrorIs(t, err, context.Canceled)
}
