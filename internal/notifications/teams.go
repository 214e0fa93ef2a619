package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const maxReportedEvents = 5

// TeamsReporter posts cycle summaries to a Microsoft Teams incoming webhook
type TeamsReporter struct {
	webhookURL string
	client     *resty.Client
}

// Ensure TeamsReporter implements Reporter
var _ Reporter = (*TeamsReporter)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewTeamsReporter creates a reporter; an empty webhook URL disables it
func NewTeamsReporter(webhookURL string) *TeamsReporter {
	return &TeamsReporter{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(30 * time.Second),
	}
}

// SendCycleReport posts the summary. It is a no-op when no webhook is configured.
func (r *TeamsReporter) SendCycleReport(ctx context.Context, summary *models.CycleSummary) error {
	if r.webhookURL == "" {
		return nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildTeamsMessage(summary)).
		Post(r.webhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	logrus.Info("Successfully sent cycle report to Teams")
	return nil
}

func buildTeamsMessage(summary *models.CycleSummary) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "0078D4",
		Title:      "Geopolitical Events Cycle Report",
		Text:       fmt.Sprintf("Persisted %d new events from %d fetched items", len(summary.Events), summary.Fetched),
	}
	if summary.Failed() > 0 || summary.Canceled {
		message.ThemeColor = "D13438"
	}

	facts := []TeamsFact{
		{Name: "Started", Value: summary.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		{Name: "Duration", Value: summary.Duration},
		{Name: "Fetched", Value: fmt.Sprintf("%d", summary.Fetched)},
		{Name: "Relevant", Value: fmt.Sprintf("%d of %d", summary.Analyzed-summary.NotRelevant, summary.Analyzed)},
		{Name: "Persisted", Value: fmt.Sprintf("%d (%d duplicates, %d invalid, %d failed)", summary.Persisted, summary.Duplicates, summary.Invalid, summary.PersistFailed)},
		{Name: "Notified", Value: fmt.Sprintf("%d (%d skipped, %d failed)", summary.Notified, summary.NotifySkipped, summary.NotifyFailed)},
	}
	if summary.Canceled {
		facts = append(facts, TeamsFact{Name: "Canceled", Value: "yes"})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(summary.Events) > 0 {
		var lines []string
		for i, event := range summary.Events {
			if i == maxReportedEvents {
				break
			}
			line := fmt.Sprintf("**%s** - %s, %s (%s severity)", event.Title, event.Location, event.Category, event.Severity)
			if event.SourceURL != "" {
				line = fmt.Sprintf("**[%s](%s)** - %s, %s (%s severity)", event.Title, event.SourceURL, event.Location, event.Category, event.Severity)
			}
			lines = append(lines, line)
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "New Events",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}
