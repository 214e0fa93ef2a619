package analysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newsItem(title, body string) models.RawItem {
	return models.RawItem{
		Title:       title,
		Body:        body,
		URL:         "https://example.com/article",
		PublishedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		SourceName:  "Reuters",
		Platform:    models.PlatformNews,
	}
}

func TestAnalyze_SanctionsScenario(t *testing.T) {
	analyzer := NewAnalyzer(nil)

	event, ok := analyzer.Analyze(newsItem(
		"US imposes new sanctions on Iran",
		"Treasury officials detailed the sanction and embargo measures.",
	))
	require.True(t, ok)

	assert.Equal(t, "Sanctions", event.Category)
	assert.GreaterOrEqual(t, event.Severity, models.SeverityHigh)
	assert.Equal(t, "Iran", event.Location)
	assert.InDelta(t, 0.6, event.RelevanceScore, 1e-9)
	assert.Greater(t, event.RelevanceScore, 0.1)
	assert.Equal(t, []string{"sanction", "embargo"}, event.Tags)
	assert.Equal(t, "Sanctions imposed (Iran)", event.Summary)
	assert.Equal(t, models.SentimentNegative, event.Sentiment)
	assert.Equal(t, []string{"Iran"}, event.Entities)
	assert.Equal(t, models.ImpactLocal, event.Impact)
	assert.Equal(t, "https://example.com/article", event.SourceURL)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), event.EventDate)
}

func TestAnalyze_NotRelevant(t *testing.T) {
	analyzer := NewAnalyzer(nil)

	_, ok := analyzer.Analyze(newsItem("Local bakery wins award", "The sourdough was judged the best in town."))
	assert.False(t, ok)
}

func TestAnalyze_MissingDateStillAnalyzed(t *testing.T) {
	item := newsItem("Coup attempt in capital", "")
	item.PublishedAt = time.Time{}

	event, ok := NewAnalyzer(nil).Analyze(item)
	require.True(t, ok)
	assert.True(t, event.EventDate.IsZero())
}

func TestAnalyze_Location(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{name: "First table entry wins", title: "Summit between China and Russia", expected: "Russia"},
		{name: "Multi-word display name", title: "Missile launch by North Korea", expected: "North Korea"},
		{name: "Default", title: "Summit ends without agreement", expected: "Global"},
		{name: "Word boundary", title: "Parliament debates Iranian proposal in Tirana", expected: "Iran"},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := analyzer.Analyze(newsItem(tt.title, ""))
			require.True(t, ok)
			assert.Equal(t, tt.expected, event.Location)
		})
	}
}

func TestAnalyze_CategoryFirstMatchWins(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{title: "Tariff threat escalates into sanctions", expected: "Sanctions"},
		{title: "Military drills near Taiwan after tariff row", expected: "Trade Disputes"},
		{title: "Cyberattack hits military networks", expected: "Cyber Security"},
		{title: "Troops deployed to the border", expected: "Military Conflict"},
		{title: "Protest over election results", expected: "Civil Unrest"},
		{title: "Election called by the president", expected: "Elections"},
		{title: "Ambassador recalled after summit", expected: "Diplomatic Relations"},
		{title: "OPEC pipeline agreement", expected: "Energy Security"},
		{title: "Parliament session opens", expected: "General"},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			event, ok := analyzer.Analyze(newsItem(tt.title, ""))
			require.True(t, ok)
			assert.Equal(t, tt.expected, event.Category)
		})
	}
}

func TestAnalyze_Severity(t *testing.T) {
	tests := []struct {
		title    string
		expected models.Severity
	}{
		{title: "Nuclear talks stall", expected: models.SeverityCritical},
		{title: "Invasion fears grow as sanctions bite", expected: models.SeverityCritical},
		{title: "Military budget approved", expected: models.SeverityHigh},
		{title: "Election results delayed", expected: models.SeverityMedium},
		{title: "Parliament session opens", expected: models.SeverityLow},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			event, ok := analyzer.Analyze(newsItem(tt.title, ""))
			require.True(t, ok)
			assert.Equal(t, tt.expected, event.Severity)
		})
	}
}

func TestAnalyze_Impact(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{title: "Global markets react to sanctions", expected: models.ImpactGlobal},
		{title: "NATO allies meet on defence", expected: models.ImpactRegional},
		{title: "Nationwide protest over government plan", expected: models.ImpactNational},
		{title: "Protest outside city hall", expected: models.ImpactLocal},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			event, ok := analyzer.Analyze(newsItem(tt.title, ""))
			require.True(t, ok)
			assert.Equal(t, tt.expected, event.Impact)
		})
	}
}

func TestAnalyze_Sentiment(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{title: "Peace agreement signed after ceasefire", expected: models.SentimentPositive},
		{title: "Attack kills dozens as war escalates", expected: models.SentimentNegative},
		{title: "Parliament statement on border talks", expected: models.SentimentNeutral},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			event, ok := analyzer.Analyze(newsItem(tt.title, ""))
			require.True(t, ok)
			assert.Equal(t, tt.expected, event.Sentiment)
		})
	}
}

func TestAnalyze_EngagementBoost(t *testing.T) {
	tests := []struct {
		name       string
		platform   models.Platform
		likes      int
		expected   float64
		engagement int
	}{
		{name: "Viral tweet", platform: models.PlatformTwitter, likes: 1500, expected: 0.5, engagement: 1500},
		{name: "Popular post", platform: models.PlatformReddit, likes: 150, expected: 0.4, engagement: 150},
		{name: "Some engagement", platform: models.PlatformTwitter, likes: 50, expected: 0.35, engagement: 50},
		{name: "Quiet post", platform: models.PlatformTwitter, likes: 5, expected: 0.3, engagement: 5},
		{name: "News ignores engagement", platform: models.PlatformNews, likes: 5000, expected: 0.3, engagement: 0},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := newsItem("Protest outside city hall", "")
			item.Platform = tt.platform
			item.Engagement = map[string]int{"likes": tt.likes}

			event, ok := analyzer.Analyze(item)
			require.True(t, ok)
			assert.InDelta(t, tt.expected, event.RelevanceScore, 1e-9)
			assert.Equal(t, tt.engagement, event.Engagement)
		})
	}
}

func TestAnalyze_ConfiguredEngagementMetrics(t *testing.T) {
	item := newsItem("Protest outside city hall", "")
	item.Platform = models.PlatformTwitter
	item.Engagement = map[string]int{"likes": 5000, "retweets": 20}

	event, ok := NewAnalyzer([]string{"retweets"}).Analyze(item)
	require.True(t, ok)
	assert.Equal(t, 20, event.Engagement)
	assert.InDelta(t, 0.35, event.RelevanceScore, 1e-9)
}

func TestAnalyze_ScoreBound(t *testing.T) {
	everything := strings.Join(append(append([]string{}, geopoliticalKeywords...), locations...), " ")

	items := []models.RawItem{
		newsItem(everything, everything),
		newsItem("war", ""),
		{Title: everything, Platform: models.PlatformTwitter, Engagement: map[string]int{"likes": 1 << 30}},
		{Title: "nuclear war sanctions protest", Platform: models.PlatformReddit, Engagement: map[string]int{"upvotes": -500}},
	}

	analyzer := NewAnalyzer(nil)
	for _, item := range items {
		event, ok := analyzer.Analyze(item)
		require.True(t, ok)
		assert.GreaterOrEqual(t, event.RelevanceScore, 0.0)
		assert.LessOrEqual(t, event.RelevanceScore, 1.0)
	}
}

func TestAnalyze_TagsCapped(t *testing.T) {
	text := strings.Join(geopoliticalKeywords, " ")

	event, ok := NewAnalyzer(nil).Analyze(newsItem(text, ""))
	require.True(t, ok)
	assert.Len(t, event.Tags, 10)
	assert.Equal(t, geopoliticalKeywords[:10], event.Tags)
}

func TestAnalyze_Deterministic(t *testing.T) {
	analyzer := NewAnalyzer(nil)
	item := newsItem("Russia and Ukraine agree ceasefire at summit", "Talks in Turkey brought a peace deal, officials said.")

	first, ok := analyzer.Analyze(item)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, _ := NewAnalyzer(nil).Analyze(item)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Errorf("analysis changed between runs (-first +again):\n%s", diff)
		}
	}
}

func TestAnalyze_EntitiesAndKeywords(t *testing.T) {
	event, ok := NewAnalyzer(nil).Analyze(newsItem(
		"Huawei and TSMC caught in China export control fight",
		"The supply chain dispute deepens trade war worries.",
	))
	require.True(t, ok)

	assert.Equal(t, []string{"China", "Huawei", "TSMC"}, event.Entities)
	assert.Equal(t, []string{"trade war", "supply chain"}, event.Keywords)
}

func TestAnalyze_SummaryFallback(t *testing.T) {
	item := newsItem("Parliament session opens", "")
	item.Description = strings.Repeat("a", 250)

	event, ok := NewAnalyzer(nil).Analyze(item)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("a", 200)+"...", event.Summary)
}

func TestContainsTerm(t *testing.T) {
	tests := []struct {
		text     string
		term     string
		expected bool
	}{
		{text: "local bakery wins award", term: "war", expected: false},
		{text: "wars of attrition", term: "war", expected: true},
		{text: "storm warning issued", term: "war", expected: false},
		{text: "warships gather", term: "war", expected: false},
		{text: "military coup", term: "coup", expected: true},
		{text: "coupon sales up", term: "coup", expected: false},
		{text: "central bank meets", term: "ban", expected: false},
		{text: "export ban, tariffs", term: "ban", expected: true},
		{text: "iranian proposal", term: "iran", expected: true},
		{text: "new sanctions announced", term: "sanction", expected: true},
		{text: "us-iran talks", term: "iran", expected: true},
		{text: "software update", term: "war", expected: false},
		{text: "anything", term: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.term, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsTerm(tt.text, tt.term))
		})
	}
}

func TestAnalyze_StormWarningNotConflict(t *testing.T) {
	event, ok := NewAnalyzer(nil).Analyze(newsItem("Government issues storm warning for coastal towns", ""))
	require.True(t, ok)
	assert.Equal(t, CategoryGeneral, event.Category)
	assert.NotEqual(t, models.SeverityCritical, event.Severity)
}

func TestAnalyzeBatch_PreservesOrder(t *testing.T) {
	items := []models.RawItem{
		newsItem("Election called by the president", ""),
		newsItem("Local bakery wins award", ""),
		newsItem("Nuclear talks stall", ""),
		newsItem("Cat show draws crowds", ""),
		newsItem("Troops deployed to the border", ""),
	}

	events, notRelevant, err := NewAnalyzer(nil).AnalyzeBatch(context.Background(), items, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, notRelevant)
	require.Len(t, events, 3)
	assert.Equal(t, "Election called by the president", events[0].Title)
	assert.Equal(t, "Nuclear talks stall", events[1].Title)
	assert.Equal(t, "Troops deployed to the border", events[2].Title)
}

func TestAnalyzeBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, _, err := NewAnalyzer(nil).AnalyzeBatch(ctx, []models.RawItem{newsItem("war", "")}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events)
}
