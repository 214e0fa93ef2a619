package pipeline

import (
	"github.com/geowatch/geo-events-bot/internal/aggregator"
	"github.com/geowatch/geo-events-bot/internal/config"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/geowatch/geo-events-bot/internal/sources"
)

// NewAdapters builds every configured feed with its own limiter. Feeds
// without credentials are still registered and report themselves disabled.
func NewAdapters(cfg *config.Config, clock ratelimit.Clock) []*sources.Adapter {
	keywords := sources.QueryOptions{
		Terms:         cfg.Keywords,
		MaxQueryTerms: cfg.MaxQueryTerms,
		PageSize:      cfg.PageSize,
	}
	hashtags := keywords
	hashtags.Terms = cfg.Hashtags

	standard := func(s sources.Source) *sources.Adapter {
		return sources.NewAdapter(s, ratelimit.New(cfg.NewsMinInterval, clock))
	}
	// Twitter's search quota needs the longer interval
	strict := func(s sources.Source) *sources.Adapter {
		return sources.NewAdapter(s, ratelimit.New(cfg.StrictMinInterval, clock))
	}

	return []*sources.Adapter{
		standard(sources.NewNewsAPISource(cfg.NewsAPIKey, keywords)),
		standard(sources.NewGNewsSource(cfg.GNewsAPIKey, keywords)),
		standard(sources.NewRSSSource(cfg.RSSFeedURLs, cfg.RSSMaxItems)),
		strict(sources.NewTwitterSource(cfg.TwitterBearerToken, hashtags)),
		standard(sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, cfg.Subreddits, keywords)),
	}
}

// Fetchers adapts a list of adapters for the aggregator
func Fetchers(adapters []*sources.Adapter) []aggregator.Fetcher {
	fetchers := make([]aggregator.Fetcher, len(adapters))
	for i, a := range adapters {
		fetchers[i] = a
	}
	return fetchers
}
