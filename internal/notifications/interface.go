package notifications

import (
	"context"
	"errors"

	"github.com/geowatch/geo-events-bot/internal/models"
)

// ErrSendFailed wraps every transport failure reported by the dispatcher
var ErrSendFailed = errors.New("notification send failed")

// ErrRecordFailed marks a notification that went out but could not be
// added to the recipient's history
var ErrRecordFailed = errors.New("notification record write failed")

// Transport delivers one rendered notification and returns its message id
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// Scorer rates how relevant an event is to one recipient, in [0, 1], with a
// human-readable rationale
type Scorer interface {
	Score(ctx context.Context, recipient models.Recipient, event models.PersistedEvent) (float64, string, error)
}

// Reporter publishes a summary of a finished pipeline cycle
type Reporter interface {
	SendCycleReport(ctx context.Context, summary *models.CycleSummary) error
}
