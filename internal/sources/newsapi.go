package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const newsAPIBaseURL = "https://newsapi.org"

// NewsAPISource implements the NewsAPI "everything" endpoint
type NewsAPISource struct {
	apiKey  string
	options QueryOptions
	client  *resty.Client
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// NewNewsAPISource creates a new NewsAPI source
func NewNewsAPISource(apiKey string, options QueryOptions) *NewsAPISource {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = newsAPIBaseURL
	}
	return &NewsAPISource{
		apiKey:  apiKey,
		options: options,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(clientTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

func (n *NewsAPISource) GetName() string {
	return "newsapi"
}

func (n *NewsAPISource) Group() Group {
	return GroupNews
}

func (n *NewsAPISource) IsEnabled() bool {
	return n.apiKey != ""
}

func (n *NewsAPISource) FetchItems(ctx context.Context) ([]models.RawItem, error) {
	query := buildORQuery(n.options.Terms, n.options.maxTerms())
	if query == "" {
		return nil, nil
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", n.apiKey).
		SetQueryParams(map[string]string{
			"q":        query,
			"language": "en",
			"sortBy":   "publishedAt",
			"pageSize": strconv.Itoa(clampInt(n.options.pageSize(), 1, 100)),
		}).
		Get("/v2/everything")
	if err != nil {
		return nil, fmt.Errorf("%w: newsapi request: %v", ErrSourceUnavailable, err)
	}

	var body newsAPIResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: failed to parse NewsAPI response: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode() != 200 || body.Status != "ok" {
		return nil, fmt.Errorf("%w: newsapi returned status %d (%s: %s)", ErrSourceUnavailable, resp.StatusCode(), body.Code, body.Message)
	}

	logrus.Debugf("NewsAPI returned %d of %d articles", len(body.Articles), body.TotalResults)

	items := make([]models.RawItem, 0, len(body.Articles))
	for _, article := range body.Articles {
		if article.Title == "" || article.Title == "[Removed]" {
			continue
		}
		items = append(items, models.RawItem{
			Title:             article.Title,
			Description:       article.Description,
			Body:              article.Content,
			URL:               article.URL,
			Author:            article.Author,
			PublishedAt:       parseTimestamp(article.PublishedAt),
			SourceName:        article.Source.Name,
			SourceReliability: reliabilityFor(article.Source.Name),
			Platform:          models.PlatformNews,
		})
	}

	return items, nil
}
