package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type eventRecord struct {
	ID                string `gorm:"primaryKey"`
	Title             string `gorm:"not null;uniqueIndex:idx_events_title_day"`
	DayBucket         string `gorm:"not null;uniqueIndex:idx_events_title_day"`
	EventUnix         int64  `gorm:"not null;index"`
	Description       string
	Summary           string
	FullText          string
	Location          string `gorm:"index"`
	Category          string `gorm:"index"`
	Severity          int
	RelevanceScore    float64
	TagsJSON          string
	KeywordsJSON      string
	EntitiesJSON      string
	Impact            string
	Platform          string
	Engagement        int
	SourceName        string
	SourceURL         string
	SourceReliability string
	Sentiment         string
	CreatedUnix       int64 `gorm:"not null;index"`
}

func (eventRecord) TableName() string { return "events" }

type recipientRecord struct {
	ID             string `gorm:"primaryKey"`
	Email          string `gorm:"not null"`
	Name           string
	RegionsJSON    string
	CategoriesJSON string
	KeywordsJSON   string
	EmailEnabled   bool
	Frequency      string
}

func (recipientRecord) TableName() string { return "recipients" }

type notificationRecord struct {
	ID          uint   `gorm:"primaryKey"`
	RecipientID string `gorm:"not null;index:idx_notifications_pair"`
	EventID     string `gorm:"not null;index:idx_notifications_pair"`
	Score       float64
	SentUnix    int64 `gorm:"not null;index"`
	MessageID   string
}

func (notificationRecord) TableName() string { return "notifications" }

// SQLStore is the SQLite-backed Store
type SQLStore struct {
	db *gorm.DB
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)

// NewSQLStore opens (creating if needed) the SQLite database at path and
// migrates the schema. Use ":memory:" for a throwaway database.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases alive
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&eventRecord{}, &recipientRecord{}, &notificationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logrus.Infof("Database ready at %s", path)
	return &SQLStore{db: db}, nil
}

// Close releases the underlying connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLStore) FindSimilar(ctx context.Context, title string, from, to time.Time) ([]models.PersistedEvent, error) {
	records, err := findSimilar(s.db.WithContext(ctx), title, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return toPersistedEvents(records), nil
}

func findSimilar(db *gorm.DB, title string, from, to time.Time) ([]eventRecord, error) {
	var records []eventRecord
	err := db.
		Where("title = ? AND event_unix >= ? AND event_unix <= ?", title, from.UnixNano(), to.UnixNano()).
		Order("event_unix").
		Find(&records).Error
	return records, err
}

func (s *SQLStore) Insert(ctx context.Context, event models.CandidateEvent) (models.PersistedEvent, error) {
	record := toEventRecord(event)
	record.ID = uuid.NewString()
	record.CreatedUnix = time.Now().UTC().UnixNano()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, to := Window(event.EventDate)
		existing, err := findSimilar(tx, record.Title, from, to)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrDuplicate
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return models.PersistedEvent{}, ErrDuplicate
		}
		return models.PersistedEvent{}, fmt.Errorf("failed to insert event: %w", err)
	}

	return toPersistedEvent(record), nil
}

func (s *SQLStore) Recent(ctx context.Context, limit int) ([]models.PersistedEvent, error) {
	query := s.db.WithContext(ctx).Order("created_unix DESC, id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []eventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return toPersistedEvents(records), nil
}

// ListAll returns recipients ordered by ID
func (s *SQLStore) ListAll(ctx context.Context) ([]models.Recipient, error) {
	var records []recipientRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	recipients := make([]models.Recipient, 0, len(records))
	for _, r := range records {
		recipients = append(recipients, models.Recipient{
			ID:    r.ID,
			Email: r.Email,
			Name:  r.Name,
			Interests: models.Interests{
				Regions:    decodeList(r.RegionsJSON),
				Categories: decodeList(r.CategoriesJSON),
				Keywords:   decodeList(r.KeywordsJSON),
			},
			NotificationPreferences: models.NotificationPreferences{
				EmailEnabled: r.EmailEnabled,
				Frequency:    models.Frequency(r.Frequency),
			},
		})
	}
	return recipients, nil
}

func (s *SQLStore) UpsertRecipient(ctx context.Context, recipient models.Recipient) error {
	if recipient.ID == "" {
		return fmt.Errorf("recipient id is required")
	}

	record := recipientRecord{
		ID:             recipient.ID,
		Email:          recipient.Email,
		Name:           recipient.Name,
		RegionsJSON:    encodeList(recipient.Interests.Regions),
		CategoriesJSON: encodeList(recipient.Interests.Categories),
		KeywordsJSON:   encodeList(recipient.Interests.Keywords),
		EmailEnabled:   recipient.NotificationPreferences.EmailEnabled,
		Frequency:      string(recipient.NotificationPreferences.Frequency),
	}

	// Save inserts or replaces every column by primary key
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save recipient %s: %w", recipient.ID, err)
	}
	return nil
}

func (s *SQLStore) DeleteRecipient(ctx context.Context, recipientID string) error {
	if err := s.db.WithContext(ctx).Delete(&recipientRecord{}, "id = ?", recipientID).Error; err != nil {
		return fmt.Errorf("failed to delete recipient %s: %w", recipientID, err)
	}
	return nil
}

func (s *SQLStore) LastNotificationTime(ctx context.Context, recipientID string) (time.Time, bool, error) {
	var records []notificationRecord
	err := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("sent_unix DESC").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(records) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, records[0].SentUnix).UTC(), true, nil
}

func (s *SQLStore) HasNotification(ctx context.Context, recipientID, eventID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&notificationRecord{}).
		Where("recipient_id = ? AND event_id = ?", recipientID, eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return count > 0, nil
}

func (s *SQLStore) AppendNotification(ctx context.Context, record models.NotificationRecord) error {
	row := notificationRecord{
		RecipientID: record.RecipientID,
		EventID:     record.EventID,
		Score:       record.Score,
		SentUnix:    record.SentAt.UTC().UnixNano(),
		MessageID:   record.MessageID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toEventRecord(e models.CandidateEvent) eventRecord {
	return eventRecord{
		Title:             e.Title,
		DayBucket:         DayBucket(e.EventDate),
		EventUnix:         e.EventDate.UTC().UnixNano(),
		Description:       e.Description,
		Summary:           e.Summary,
		FullText:          e.FullText,
		Location:          e.Location,
		Category:          e.Category,
		Severity:          int(e.Severity),
		RelevanceScore:    e.RelevanceScore,
		TagsJSON:          encodeList(e.Tags),
		KeywordsJSON:      encodeList(e.Keywords),
		EntitiesJSON:      encodeList(e.Entities),
		Impact:            e.Impact,
		Platform:          string(e.Platform),
		Engagement:        e.Engagement,
		SourceName:        e.SourceName,
		SourceURL:         e.SourceURL,
		SourceReliability: string(e.SourceReliability),
		Sentiment:         e.Sentiment,
	}
}

func toPersistedEvent(r eventRecord) models.PersistedEvent {
	return models.PersistedEvent{
		ID:        r.ID,
		CreatedAt: time.Unix(0, r.CreatedUnix).UTC(),
		CandidateEvent: models.CandidateEvent{
			Title:             r.Title,
			Description:       r.Description,
			Summary:           r.Summary,
			FullText:          r.FullText,
			Location:          r.Location,
			Category:          r.Category,
			Severity:          models.Severity(r.Severity),
			EventDate:         time.Unix(0, r.EventUnix).UTC(),
			RelevanceScore:    r.RelevanceScore,
			Tags:              decodeList(r.TagsJSON),
			Keywords:          decodeList(r.KeywordsJSON),
			Entities:          decodeList(r.EntitiesJSON),
			Impact:            r.Impact,
			Platform:          models.Platform(r.Platform),
			Engagement:        r.Engagement,
			SourceName:        r.SourceName,
			SourceURL:         r.SourceURL,
			SourceReliability: models.Reliability(r.SourceReliability),
			Sentiment:         r.Sentiment,
		},
	}
}

func toPersistedEvents(records []eventRecord) []models.PersistedEvent {
	events := make([]models.PersistedEvent, 0, len(records))
	for _, r := range records {
		events = append(events, toPersistedEvent(r))
	}
	return events
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(data string) []string {
	var values []string
	if data == "" {
		return values
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		logrus.Warnf("Failed to decode stored list %q: %v", data, err)
		return nil
	}
	return values
}
