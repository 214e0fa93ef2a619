package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/go-resty/resty/v2"
)

const gnewsBaseURL = "https://gnews.io"

// GNewsSource implements the GNews search API
type GNewsSource struct {
	apiKey  string
	options QueryOptions
	client  *resty.Client
}

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
	Errors        []string       `json:"errors"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

// NewGNewsSource creates a new GNews source
func NewGNewsSource(apiKey string, options QueryOptions) *GNewsSource {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = gnewsBaseURL
	}
	return &GNewsSource{
		apiKey:  apiKey,
		options: options,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(clientTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

func (g *GNewsSource) GetName() string {
	return "gnews"
}

func (g *GNewsSource) Group() Group {
	return GroupNews
}

func (g *GNewsSource) IsEnabled() bool {
	return g.apiKey != ""
}

func (g *GNewsSource) FetchItems(ctx context.Context) ([]models.RawItem, error) {
	query := buildORQuery(g.options.Terms, g.options.maxTerms())
	if query == "" {
		return nil, nil
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"lang":   "en",
			"max":    strconv.Itoa(clampInt(g.options.pageSize(), 1, 100)),
			"apikey": g.apiKey,
		}).
		Get("/api/v4/search")
	if err != nil {
		return nil, fmt.Errorf("%w: gnews request: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: gnews returned status %d: %s", ErrSourceUnavailable, resp.StatusCode(), string(resp.Body()))
	}

	var body gnewsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: failed to parse GNews response: %v", ErrSourceUnavailable, err)
	}

	items := make([]models.RawItem, 0, len(body.Articles))
	for _, article := range body.Articles {
		items = append(items, models.RawItem{
			Title:             article.Title,
			Description:       article.Description,
			Body:              article.Content,
			URL:               article.URL,
			PublishedAt:       parseTimestamp(article.PublishedAt),
			SourceName:        article.Source.Name,
			SourceReliability: reliabilityFor(article.Source.Name),
			Platform:          models.PlatformNews,
		})
	}

	return items, nil
}
