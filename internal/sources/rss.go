package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// RSSSource reads configured wire-service RSS/Atom feeds
type RSSSource struct {
	feedURLs []string
	maxItems int
	parser   *gofeed.Parser
}

// NewRSSSource creates a source over a fixed list of feed URLs
func NewRSSSource(feedURLs []string, maxItemsPerFeed int) *RSSSource {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: clientTimeout}

	var urls []string
	for _, u := range feedURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	if maxItemsPerFeed <= 0 {
		maxItemsPerFeed = defaultPageSize
	}

	return &RSSSource{feedURLs: urls, maxItems: maxItemsPerFeed, parser: parser}
}

func (r *RSSSource) GetName() string {
	return "rss"
}

func (r *RSSSource) Group() Group {
	return GroupNews
}

func (r *RSSSource) IsEnabled() bool {
	return len(r.feedURLs) > 0
}

// FetchItems reads every feed; it only fails when no feed could be read
func (r *RSSSource) FetchItems(ctx context.Context) ([]models.RawItem, error) {
	var items []models.RawItem
	var failures []string

	for _, feedURL := range r.feedURLs {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			logrus.Errorf("Failed to read RSS feed %s: %v", feedURL, err)
			failures = append(failures, feedURL)
			continue
		}

		items = append(items, r.normalizeFeed(feed)...)
	}

	if len(failures) == len(r.feedURLs) {
		return nil, fmt.Errorf("%w: all %d RSS feeds failed", ErrSourceUnavailable, len(failures))
	}

	return items, nil
}

func (r *RSSSource) normalizeFeed(feed *gofeed.Feed) []models.RawItem {
	sourceName := strings.TrimSpace(feed.Title)

	limit := len(feed.Items)
	if limit > r.maxItems {
		limit = r.maxItems
	}

	items := make([]models.RawItem, 0, limit)
	for _, entry := range feed.Items[:limit] {
		var published time.Time
		switch {
		case entry.PublishedParsed != nil:
			published = entry.PublishedParsed.UTC()
		case entry.UpdatedParsed != nil:
			published = entry.UpdatedParsed.UTC()
		}

		var author string
		if entry.Author != nil {
			author = entry.Author.Name
		}

		items = append(items, models.RawItem{
			Title:             strings.TrimSpace(entry.Title),
			Description:       stripHTML(entry.Description),
			Body:              stripHTML(entry.Content),
			URL:               entry.Link,
			Author:            author,
			PublishedAt:       published,
			SourceName:        sourceName,
			SourceReliability: reliabilityFor(sourceName),
			Platform:          models.PlatformNews,
		})
	}

	return items
}
