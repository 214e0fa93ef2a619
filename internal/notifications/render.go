package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RiskLevel buckets a recipient score
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// RiskLevelFor maps a score onto the fixed risk thresholds
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskCritical
	case score >= 0.6:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Alert is everything the alert email template needs
type Alert struct {
	Recipient   models.Recipient
	Event       models.PersistedEvent
	Score       float64
	Rationale   string
	Risk        RiskLevel
	GeneratedAt time.Time
}

const alertTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Geopolitical Risk Alert</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { color: white; padding: 20px; border-radius: 5px; }
        .CRITICAL { background-color: #a4262c; }
        .HIGH { background-color: #d83b01; }
        .MEDIUM { background-color: #c19c00; }
        .LOW { background-color: #605e5c; }
        .details { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header {{.Risk}}">
        <h1>{{.Risk}} risk: {{.Event.Title}}</h1>
        <p>{{.Event.Summary}}</p>
    </div>

    <p>Hello {{if .Recipient.Name}}{{.Recipient.Name}}{{else}}there{{end}},</p>

    <div class="details">
        <p><strong>Location:</strong> {{.Event.Location}}</p>
        <p><strong>Category:</strong> {{.Event.Category}}</p>
        <p><strong>Severity:</strong> {{.Event.Severity | title}}</p>
        <p><strong>Impact:</strong> {{.Event.Impact}}</p>
        <p><strong>Relevance to you:</strong> {{printf "%.2f" .Score}}{{if .Rationale}} ({{.Rationale}}){{end}}</p>
        {{if not .Event.EventDate.IsZero}}<p><strong>Reported:</strong> {{.Event.EventDate.Format "January 2, 2006 at 3:04 PM UTC"}}</p>{{end}}
        {{if .Event.Tags}}<p><strong>Tags:</strong> {{join .Event.Tags ", "}}</p>{{end}}
        {{if .Event.Entities}}<p><strong>Entities:</strong> {{join .Event.Entities ", "}}</p>{{end}}
    </div>

    {{if .Event.Description}}
    <p>{{.Event.Description | truncate 500}}</p>
    {{end}}

    {{if .Event.SourceURL}}
    <p class="meta">Source: <a href="{{.Event.SourceURL}}" target="_blank">{{if .Event.SourceName}}{{.Event.SourceName}}{{else}}{{.Event.SourceURL}}{{end}}</a></p>
    {{end}}

    <hr>
    <p><small>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}} by the Geo Events Bot.</small></p>
</body>
</html>
`

var alertTmpl = template.Must(template.New("alert").Funcs(template.FuncMap{
	"title": func(v fmt.Stringer) string {
		return cases.Title(language.English).String(v.String())
	},
	"truncate": truncate,
	"join":     strings.Join,
}).Parse(alertTemplate))

// RenderAlert builds the subject and HTML body of an alert email
func RenderAlert(alert Alert) (string, string, error) {
	if alert.Risk == "" {
		alert.Risk = RiskLevelFor(alert.Score)
	}
	alert.GeneratedAt = alert.GeneratedAt.UTC()

	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("failed to render alert: %w", err)
	}

	subject := fmt.Sprintf("[%s] %s - %s", alert.Risk, alert.Event.Category, truncate(100, alert.Event.Title))
	return subject, buf.String(), nil
}

func truncate(length int, s string) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length]) + "..."
}
