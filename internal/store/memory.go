package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used for dry runs and tests. It gives the
// same uniqueness guarantees as SQLStore.
type MemoryStore struct {
	mu            sync.RWMutex
	events        []models.PersistedEvent
	byKey         map[string]struct{}
	recipients    map[string]models.Recipient
	notifications []models.NotificationRecord
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:      make(map[string]struct{}),
		recipients: make(map[string]models.Recipient),
	}
}

func (m *MemoryStore) FindSimilar(ctx context.Context, title string, from, to time.Time) ([]models.PersistedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.findLocked(title, from, to), nil
}

func (m *MemoryStore) findLocked(title string, from, to time.Time) []models.PersistedEvent {
	var similar []models.PersistedEvent
	for _, e := range m.events {
		if e.Title != title {
			continue
		}
		if e.EventDate.Before(from) || e.EventDate.After(to) {
			continue
		}
		similar = append(similar, e)
	}
	return similar
}

func (m *MemoryStore) Insert(ctx context.Context, event models.CandidateEvent) (models.PersistedEvent, error) {
	if err := ctx.Err(); err != nil {
		return models.PersistedEvent{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from, to := Window(event.EventDate)
	if len(m.findLocked(event.Title, from, to)) > 0 {
		return models.PersistedEvent{}, ErrDuplicate
	}
	key := event.Title + "|" + DayBucket(event.EventDate)
	if _, exists := m.byKey[key]; exists {
		return models.PersistedEvent{}, ErrDuplicate
	}

	persisted := models.PersistedEvent{
		CandidateEvent: event,
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
	}
	m.events = append(m.events, persisted)
	m.byKey[key] = struct{}{}

	return persisted, nil
}

func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]models.PersistedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recent := make([]models.PersistedEvent, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		if limit > 0 && len(recent) == limit {
			break
		}
		recent = append(recent, m.events[i])
	}
	return recent, nil
}

// ListAll returns recipients ordered by ID
func (m *MemoryStore) ListAll(ctx context.Context) ([]models.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	recipients := make([]models.Recipient, 0, len(m.recipients))
	for _, r := range m.recipients {
		recipients = append(recipients, r)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].ID < recipients[j].ID })
	return recipients, nil
}

func (m *MemoryStore) UpsertRecipient(ctx context.Context, recipient models.Recipient) error {
	if recipient.ID == "" {
		return fmt.Errorf("recipient id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.recipients[recipient.ID] = recipient
	return nil
}

func (m *MemoryStore) DeleteRecipient(ctx context.Context, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.recipients, recipientID)
	return nil
}

func (m *MemoryStore) LastNotificationTime(ctx context.Context, recipientID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last time.Time
	found := false
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && (!found || n.SentAt.After(last)) {
			last = n.SentAt
			found = true
		}
	}
	return last, found, nil
}

func (m *MemoryStore) HasNotification(ctx context.Context, recipientID, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, n := range m.notifications {
		if n.RecipientID == recipientID && n.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) AppendNotification(ctx context.Context, record models.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifications = append(m.notifications, record)
	return nil
}

// Notifications returns a copy of every notification record, oldest first
func (m *MemoryStore) Notifications() []models.NotificationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.NotificationRecord(nil), m.notifications...)
}
