package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
)

var (
	// ErrDuplicate is returned by Insert when an event with the same title
	// already exists within DedupWindow of the candidate's date.
	ErrDuplicate = errors.New("duplicate event")

	// ErrUnavailable wraps failures to reach the backing store at all
	ErrUnavailable = errors.New("store unavailable")
)

// DedupWindow is how far apart two same-titled events must be to both be kept.
// The bound is inclusive: events exactly DedupWindow apart are duplicates.
const DedupWindow = 24 * time.Hour

// EventStore persists geopolitical events
type EventStore interface {
	// FindSimilar returns events with exactly this title and an event date in [from, to]
	FindSimilar(ctx context.Context, title string, from, to time.Time) ([]models.PersistedEvent, error)
	// Insert writes the candidate unless a duplicate exists, in which case it
	// returns ErrDuplicate. The check and the write happen atomically.
	Insert(ctx context.Context, event models.CandidateEvent) (models.PersistedEvent, error)
	// Recent returns the newest events, most recently created first
	Recent(ctx context.Context, limit int) ([]models.PersistedEvent, error)
}

// RecipientStore holds recipients and their notification history
type RecipientStore interface {
	ListAll(ctx context.Context) ([]models.Recipient, error)
	UpsertRecipient(ctx context.Context, recipient models.Recipient) error
	// DeleteRecipient removes the recipient but keeps its notification history
	DeleteRecipient(ctx context.Context, recipientID string) error
	// LastNotificationTime returns false when the recipient was never notified
	LastNotificationTime(ctx context.Context, recipientID string) (time.Time, bool, error)
	HasNotification(ctx context.Context, recipientID, eventID string) (bool, error)
	AppendNotification(ctx context.Context, record models.NotificationRecord) error
}

// Store is everything the pipeline needs from persistence
type Store interface {
	EventStore
	RecipientStore
}

// DedupKey is the key events are deduplicated on
func DedupKey(title string) string {
	return strings.TrimSpace(title)
}

// DayBucket is the UTC calendar day of t. Two events closer than a day that
// share a title always collide on (title, day) or are caught by the window
// check, so a unique index on the pair never rejects a legitimate event.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Window returns the inclusive date range that counts as a duplicate of t
func Window(t time.Time) (time.Time, time.Time) {
	return t.Add(-DedupWindow), t.Add(DedupWindow)
}
