package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const twitterBaseURL = "https://api.twitter.com"

// TwitterSource implements Twitter/X recent search
type TwitterSource struct {
	bearerToken string
	options     QueryOptions
	client      *resty.Client
}

type twitterSearchResponse struct {
	Data []twitterTweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type twitterTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

// NewTwitterSource creates a new Twitter source. Terms are hashtags or keywords.
func NewTwitterSource(bearerToken string, options QueryOptions) *TwitterSource {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = twitterBaseURL
	}
	return &TwitterSource{
		bearerToken: bearerToken,
		options:     options,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(clientTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

func (t *TwitterSource) GetName() string {
	return "twitter"
}

func (t *TwitterSource) Group() Group {
	return GroupSocial
}

func (t *TwitterSource) IsEnabled() bool {
	return t.bearerToken != ""
}

func (t *TwitterSource) FetchItems(ctx context.Context) ([]models.RawItem, error) {
	query := t.buildSearchQuery()
	if query == "" {
		return nil, nil
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetAuthToken(t.bearerToken).
		SetQueryParams(map[string]string{
			"query":        query,
			"max_results":  strconv.Itoa(clampInt(t.options.pageSize(), 10, 100)),
			"tweet.fields": "created_at,author_id,public_metrics,referenced_tweets",
		}).
		Get("/2/tweets/search/recent")
	if err != nil {
		return nil, fmt.Errorf("%w: twitter request: %v", ErrSourceUnavailable, err)
	}

	// Fail fast on 429 so the rest of the cycle is not held up
	if resp.StatusCode() == 429 {
		if reset := resp.Header().Get("x-rate-limit-reset"); reset != "" {
			logrus.Infof("Twitter rate limit will reset at: %s", reset)
		}
		return nil, fmt.Errorf("%w: twitter API rate limit hit", ErrSourceUnavailable)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: twitter API returned status %d: %s", ErrSourceUnavailable, resp.StatusCode(), string(resp.Body()))
	}

	var searchResp twitterSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse Twitter response: %v", ErrSourceUnavailable, err)
	}

	logrus.Debugf("Twitter API returned %d tweets", len(searchResp.Data))

	items := make([]models.RawItem, 0, len(searchResp.Data))
	for _, tweet := range searchResp.Data {
		if t.isRetweet(tweet) {
			continue
		}

		items = append(items, models.RawItem{
			Title:             truncateText(tweet.Text, 100),
			Description:       tweet.Text,
			URL:               fmt.Sprintf("https://twitter.com/i/status/%s", tweet.ID),
			Author:            tweet.AuthorID,
			PublishedAt:       parseTimestamp(tweet.CreatedAt),
			SourceName:        "Twitter",
			SourceReliability: models.ReliabilityLow,
			Platform:          models.PlatformTwitter,
			Engagement: map[string]int{
				"likes":    tweet.PublicMetrics.LikeCount,
				"retweets": tweet.PublicMetrics.RetweetCount,
				"replies":  tweet.PublicMetrics.ReplyCount,
				"quotes":   tweet.PublicMetrics.QuoteCount,
			},
		})
	}

	return items, nil
}

// buildSearchQuery OR-joins a bounded prefix of the hashtags and drops retweets
// and non-English posts at the provider.
func (t *TwitterSource) buildSearchQuery() string {
	terms := make([]string, 0, len(t.options.Terms))
	for _, term := range t.options.Terms {
		term = strings.TrimSpace(term)
		if term != "" && !strings.Contains(term, " ") && !strings.HasPrefix(term, "#") {
			term = "#" + term
		}
		terms = append(terms, term)
	}

	joined := buildORQuery(terms, t.options.maxTerms())
	if joined == "" {
		return ""
	}
	return fmt.Sprintf("(%s) -is:retweet lang:en", joined)
}

func (t *TwitterSource) isRetweet(tweet twitterTweet) bool {
	for _, ref := range tweet.ReferencedTweets {
		if ref.Type == "retweeted" {
			return true
		}
	}
	return false
}
