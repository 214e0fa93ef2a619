package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/go-resty/resty/v2"
)

const (
	redditAuthURL    = "https://www.reddit.com/api/v1/access_token"
	redditAPIBaseURL = "https://oauth.reddit.com"
)

// RedditSource implements Reddit search across a set of subreddits
type RedditSource struct {
	clientID     string
	clientSecret string
	subreddits   []string
	options      QueryOptions
	authURL      string
	client       *resty.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewRedditSource creates a new Reddit source. With BaseURL set, both the
// token and the search endpoint are served from it.
func NewRedditSource(clientID, clientSecret string, subreddits []string, options QueryOptions) *RedditSource {
	apiURL, authURL := redditAPIBaseURL, redditAuthURL
	if options.BaseURL != "" {
		apiURL = options.BaseURL
		authURL = strings.TrimRight(options.BaseURL, "/") + "/api/v1/access_token"
	}
	if len(subreddits) == 0 {
		subreddits = []string{"worldnews", "geopolitics", "news"}
	}
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		subreddits:   subreddits,
		options:      options,
		authURL:      authURL,
		client: resty.New().
			SetBaseURL(apiURL).
			SetTimeout(clientTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) Group() Group {
	return GroupSocial
}

func (r *RedditSource) IsEnabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditSource) FetchItems(ctx context.Context) ([]models.RawItem, error) {
	query := buildORQuery(r.options.Terms, r.options.maxTerms())
	if query == "" {
		return nil, nil
	}

	token, err := r.authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reddit authentication failed: %v", ErrSourceUnavailable, err)
	}

	path := fmt.Sprintf("/r/%s/search.json", strings.Join(r.subreddits, "+"))
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":           query,
			"restrict_sr": "1",
			"sort":        "new",
			"t":           "day",
			"limit":       strconv.Itoa(clampInt(r.options.pageSize(), 1, 100)),
		}).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reddit request: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: reddit API returned status %d", ErrSourceUnavailable, resp.StatusCode())
	}

	var searchResp redditSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse Reddit response: %v", ErrSourceUnavailable, err)
	}

	seen := make(map[string]bool)
	var items []models.RawItem
	for _, child := range searchResp.Data.Children {
		post := child.Data
		if seen[post.ID] {
			continue
		}
		seen[post.ID] = true

		var published time.Time
		if post.Created > 0 {
			published = time.Unix(int64(post.Created), 0).UTC()
		}

		items = append(items, models.RawItem{
			Title:             post.Title,
			Description:       truncateText(post.Selftext, 500),
			Body:              post.Selftext,
			URL:               fmt.Sprintf("https://reddit.com%s", post.Permalink),
			Author:            post.Author,
			PublishedAt:       published,
			SourceName:        fmt.Sprintf("r/%s", post.Subreddit),
			SourceReliability: models.ReliabilityLow,
			Platform:          models.PlatformReddit,
			Engagement: map[string]int{
				"upvotes":  post.Score,
				"comments": post.NumComments,
			},
		})
	}

	return items, nil
}

// authenticate reuses the app-only token until shortly before it expires
func (r *RedditSource) authenticate(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.tokenExpiry) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.authURL)
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}
