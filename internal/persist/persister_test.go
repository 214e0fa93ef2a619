package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var baseDate = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func candidate(title string, date time.Time) models.CandidateEvent {
	return models.CandidateEvent{
		Title:     title,
		Category:  "Sanctions",
		Severity:  models.SeverityHigh,
		EventDate: date,
	}
}

// MockEventStore is a mock implementation of store.EventStore
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) FindSimilar(ctx context.Context, title string, from, to time.Time) ([]models.PersistedEvent, error) {
	args := m.Called(ctx, title, from, to)
	events, _ := args.Get(0).([]models.PersistedEvent)
	return events, args.Error(1)
}

func (m *MockEventStore) Insert(ctx context.Context, event models.CandidateEvent) (models.PersistedEvent, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(models.PersistedEvent), args.Error(1)
}

func (m *MockEventStore) Recent(ctx context.Context, limit int) ([]models.PersistedEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]models.PersistedEvent)
	return events, args.Error(1)
}

// flakyStore fails inserts for chosen titles
type flakyStore struct {
	*store.MemoryStore
	failTitles map[string]bool
}

func (f *flakyStore) Insert(ctx context.Context, event models.CandidateEvent) (models.PersistedEvent, error) {
	if f.failTitles[event.Title] {
		return models.PersistedEvent{}, errors.New("disk full")
	}
	return f.MemoryStore.Insert(ctx, event)
}

func TestPersistIfNew_DedupWindow(t *testing.T) {
	tests := []struct {
		name     string
		offset   time.Duration
		expected Outcome
	}{
		{name: "23h59m later is a duplicate", offset: 23*time.Hour + 59*time.Minute, expected: OutcomeDuplicate},
		{name: "23h59m earlier is a duplicate", offset: -(23*time.Hour + 59*time.Minute), expected: OutcomeDuplicate},
		{name: "24h01m later is persisted", offset: 24*time.Hour + time.Minute, expected: OutcomePersisted},
		{name: "24h01m earlier is persisted", offset: -(24*time.Hour + time.Minute), expected: OutcomePersisted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			persister := NewPersister(store.NewMemoryStore(), 2)

			_, outcome, err := persister.PersistIfNew(ctx, candidate("US imposes new sanctions on Iran", baseDate))
			require.NoError(t, err)
			require.Equal(t, OutcomePersisted, outcome)

			persisted, outcome, err := persister.PersistIfNew(ctx, candidate("US imposes new sanctions on Iran", baseDate.Add(tt.offset)))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, outcome)
			if tt.expected == OutcomePersisted {
				require.NotNil(t, persisted)
				assert.NotEmpty(t, persisted.ID)
			} else {
				assert.Nil(t, persisted)
			}
		})
	}
}

func TestPersistIfNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		candidate models.CandidateEvent
	}{
		{name: "Missing date", candidate: candidate("Coup attempt", time.Time{})},
		{name: "Blank title", candidate: candidate("   ", baseDate)},
		{name: "Date out of range", candidate: candidate("Coup attempt", time.Date(1, 1, 2, 0, 0, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := &MockEventStore{}
			persister := NewPersister(mockStore, 1)

			persisted, outcome, err := persister.PersistIfNew(context.Background(), tt.candidate)
			assert.Nil(t, persisted)
			assert.Equal(t, OutcomeInvalid, outcome)
			assert.ErrorIs(t, err, ErrInvalidCandidate)
			mockStore.AssertNotCalled(t, "FindSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPersistIfNew_TrimsTitle(t *testing.T) {
	memory := store.NewMemoryStore()
	persister := NewPersister(memory, 1)

	persisted, outcome, err := persister.PersistIfNew(context.Background(), candidate("  Embargo announced  ", baseDate))
	require.NoError(t, err)
	require.Equal(t, OutcomePersisted, outcome)
	assert.Equal(t, "Embargo announced", persisted.Title)

	_, outcome, err = persister.PersistIfNew(context.Background(), candidate("Embargo announced", baseDate))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestPersistIfNew_ConcurrentInsertIsDuplicate(t *testing.T) {
	mockStore := &MockEventStore{}
	mockStore.On("FindSimilar", mock.Anything, "Ceasefire agreed", mock.Anything, mock.Anything).Return(nil, nil)
	mockStore.On("Insert", mock.Anything, mock.Anything).Return(models.PersistedEvent{}, store.ErrDuplicate)

	persisted, outcome, err := NewPersister(mockStore, 1).PersistIfNew(context.Background(), candidate("Ceasefire agreed", baseDate))
	assert.NoError(t, err)
	assert.Nil(t, persisted)
	assert.Equal(t, OutcomeDuplicate, outcome)
	mockStore.AssertExpectations(t)
}

func TestPersistBatch_SameTitleOneHourApart(t *testing.T) {
	memory := store.NewMemoryStore()
	persister := NewPersister(memory, 4)

	result, err := persister.PersistBatch(context.Background(), []models.CandidateEvent{
		candidate("US imposes new sanctions on Iran", baseDate),
		candidate("US imposes new sanctions on Iran", baseDate.Add(time.Hour)),
	})
	require.NoError(t, err)

	require.Len(t, result.Persisted, 1)
	assert.True(t, result.Persisted[0].EventDate.Equal(baseDate))
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, []Outcome{OutcomePersisted, OutcomeDuplicate}, result.Outcomes)

	stored, err := memory.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestPersistBatch_PreservesOrderAndContinuesOnFailure(t *testing.T) {
	flaky := &flakyStore{MemoryStore: store.NewMemoryStore(), failTitles: map[string]bool{"Missile test": true}}
	persister := NewPersister(flaky, 3)

	titles := []string{"Summit held", "Missile test", "Coup attempt", "Election called", "Tariffs raised"}
	var candidates []models.CandidateEvent
	for _, title := range titles {
		candidates = append(candidates, candidate(title, baseDate))
	}
	candidates = append(candidates, candidate("No date", time.Time{}))

	result, err := persister.PersistBatch(context.Background(), candidates)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, 0, result.Duplicates)
	require.Len(t, result.Persisted, 4)
	assert.Equal(t, "Summit held", result.Persisted[0].Title)
	assert.Equal(t, "Coup attempt", result.Persisted[1].Title)
	assert.Equal(t, "Election called", result.Persisted[2].Title)
	assert.Equal(t, "Tariffs raised", result.Persisted[3].Title)
	assert.Equal(t, []Outcome{
		OutcomePersisted, OutcomeFailed, OutcomePersisted, OutcomePersisted, OutcomePersisted, OutcomeInvalid,
	}, result.Outcomes)
}

func TestPersistBatch_Idempotent(t *testing.T) {
	persister := NewPersister(store.NewMemoryStore(), 2)
	candidates := []models.CandidateEvent{
		candidate("Summit held", baseDate),
		candidate("Coup attempt", baseDate),
	}

	first, err := persister.PersistBatch(context.Background(), candidates)
	require.NoError(t, err)
	assert.Len(t, first.Persisted, 2)

	second, err := persister.PersistBatch(context.Background(), candidates)
	require.NoError(t, err)
	assert.Empty(t, second.Persisted)
	assert.Equal(t, 2, second.Duplicates)
}

func TestPersistBatch_StoreUnreachable(t *testing.T) {
	mockStore := &MockEventStore{}
	mockStore.On("FindSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: connection refused", store.ErrUnavailable))

	result, err := NewPersister(mockStore, 2).PersistBatch(context.Background(), []models.CandidateEvent{
		candidate("Summit held", baseDate),
		candidate("Coup attempt", baseDate),
	})
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 2, result.Failed)
	mockStore.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestPersistBatch_OnlyInvalidIsNotFatal(t *testing.T) {
	result, err := NewPersister(&MockEventStore{}, 2).PersistBatch(context.Background(), []models.CandidateEvent{
		candidate("", baseDate),
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Invalid)
}

func TestPersistBatch_ConcurrentCyclesDoNotDoubleInsert(t *testing.T) {
	memory := store.NewMemoryStore()
	persister := NewPersister(memory, 4)
	other := NewPersister(memory, 4)

	var candidates []models.CandidateEvent
	for i := 0; i < 20; i++ {
		candidates = append(candidates, candidate(fmt.Sprintf("Event %d", i%5), baseDate.Add(time.Duration(i)*time.Minute)))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		p := persister
		if i%2 == 1 {
			p = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.PersistBatch(context.Background(), candidates)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := memory.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, stored, 5)
	assert.Equal(t, 0, persister.locks.size())
}

func TestPersistBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewPersister(store.NewMemoryStore(), 2).PersistBatch(ctx, []models.CandidateEvent{
		candidate("Summit held", baseDate),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Persisted)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []Outcome{OutcomeCanceled}, result.Outcomes)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "persisted", OutcomePersisted.String())
	assert.Equal(t, "duplicate", OutcomeDuplicate.String())
	assert.Equal(t, "invalid", OutcomeInvalid.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "canceled", OutcomeCanceled.String())
}
