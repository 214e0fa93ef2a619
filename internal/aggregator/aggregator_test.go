package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/geowatch/geo-events-bot/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Fetcher = (*sources.Adapter)(nil)

type fakeFetcher struct {
	name   string
	group  sources.Group
	delay  time.Duration
	hang   bool
	titles []string
}

func (f *fakeFetcher) GetName() string     { return f.name }
func (f *fakeFetcher) Group() sources.Group { return f.group }

func (f *fakeFetcher) Fetch(ctx context.Context) ([]models.RawItem, sources.FetchStatus) {
	if f.hang {
		// ignores ctx on purpose
		time.Sleep(time.Second)
		return nil, sources.StatusOK
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, sources.StatusFailed
	}
	var items []models.RawItem
	for _, title := range f.titles {
		items = append(items, models.RawItem{Title: title, SourceName: f.name})
	}
	return items, sources.StatusOK
}

func titles(items []models.RawItem) []string {
	var out []string
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestRun_OrderIndependentOfCompletion(t *testing.T) {
	agg := New([]Fetcher{
		&fakeFetcher{name: "twitter", group: sources.GroupSocial, titles: []string{"t1"}},
		&fakeFetcher{name: "newsapi", group: sources.GroupNews, delay: 30 * time.Millisecond, titles: []string{"n1", "n2"}},
		&fakeFetcher{name: "gnews", group: sources.GroupNews, titles: []string{"g1"}},
		&fakeFetcher{name: "reddit", group: sources.GroupSocial, delay: 10 * time.Millisecond, titles: []string{"r1"}},
	}, time.Second)

	result, err := agg.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"n1", "n2", "g1", "t1", "r1"}, titles(result.Items))
	require.Len(t, result.Stats, 4)
	assert.Equal(t, "newsapi", result.Stats[0].Name)
	assert.Equal(t, 2, result.Stats[0].Items)
	assert.Equal(t, "reddit", result.Stats[3].Name)
}

func TestRun_SlowAdapterDoesNotBlockOthers(t *testing.T) {
	agg := New([]Fetcher{
		&fakeFetcher{name: "stuck", group: sources.GroupNews, hang: true},
		&fakeFetcher{name: "gnews", group: sources.GroupNews, titles: []string{"g1"}},
	}, 50*time.Millisecond)

	start := time.Now()
	result, err := agg.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []string{"g1"}, titles(result.Items))
	assert.Equal(t, StatusTimedOut, result.Stats[0].Status)
	assert.Equal(t, sources.StatusOK, result.Stats[1].Status)
}

func TestRunGroup(t *testing.T) {
	agg := New([]Fetcher{
		&fakeFetcher{name: "newsapi", group: sources.GroupNews, titles: []string{"n1"}},
		&fakeFetcher{name: "twitter", group: sources.GroupSocial, titles: []string{"t1"}},
	}, time.Second)

	news, err := agg.RunGroup(context.Background(), sources.GroupNews)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, titles(news.Items))

	social, err := agg.RunGroup(context.Background(), sources.GroupSocial)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, titles(social.Items))

	_, err = agg.RunGroup(context.Background(), sources.Group("blogs"))
	assert.Error(t, err)
}

func TestRun_NoAdapters(t *testing.T) {
	var nilAgg *Aggregator
	_, err := nilAgg.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoAdapters)

	_, err = New(nil, 0).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoAdapters)

	_, err = New(nil, 0).RunGroup(context.Background(), sources.GroupNews)
	assert.ErrorIs(t, err, ErrNoAdapters)
}

func TestRun_Canceled(t *testing.T) {
	agg := New([]Fetcher{
		&fakeFetcher{name: "newsapi", group: sources.GroupNews, delay: time.Second, titles: []string{"n1"}},
	}, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := agg.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, result.Items)
}

type staticSource struct {
	calls int
}

func (s *staticSource) GetName() string     { return "static" }
func (s *staticSource) Group() sources.Group { return sources.GroupNews }
func (s *staticSource) IsEnabled() bool      { return true }

func (s *staticSource) FetchItems(ctx context.Context) ([]models.RawItem, error) {
	s.calls++
	return []models.RawItem{{Title: "Summit held"}}, nil
}

func TestRun_RateLimitedAdapterYieldsNothing(t *testing.T) {
	source := &staticSource{}
	clock := ratelimit.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	agg := New([]Fetcher{sources.NewAdapter(source, ratelimit.New(time.Minute, clock))}, time.Second)

	first, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Items, 1)

	second, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Items)
	assert.Equal(t, sources.StatusRateLimited, second.Stats[0].Status)
	assert.Equal(t, 1, source.calls)
}
