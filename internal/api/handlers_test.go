package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPipeline is a mock implementation of the trigger surface
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) RunFullCycle(ctx context.Context) (*models.CycleSummary, error) {
	args := m.Called(ctx)
	summary, _ := args.Get(0).(*models.CycleSummary)
	return summary, args.Error(1)
}

func (m *MockPipeline) RunFetchOnly(ctx context.Context, group string) ([]models.RawItem, error) {
	args := m.Called(ctx, group)
	items, _ := args.Get(0).([]models.RawItem)
	return items, args.Error(1)
}

func (m *MockPipeline) RunAnalyzeOnly(ctx context.Context, items []models.RawItem) ([]models.CandidateEvent, error) {
	args := m.Called(ctx, items)
	candidates, _ := args.Get(0).([]models.CandidateEvent)
	return candidates, args.Error(1)
}

func (m *MockPipeline) RecentEvents(ctx context.Context, limit int) ([]models.PersistedEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]models.PersistedEvent)
	return events, args.Error(1)
}

func (m *MockPipeline) ArchivedCycles(ctx context.Context, day time.Time) ([]*models.CycleSummary, error) {
	args := m.Called(ctx, day)
	cycles, _ := args.Get(0).([]*models.CycleSummary)
	return cycles, args.Error(1)
}

func (m *MockPipeline) GetMetrics() string {
	return m.Called().String(0)
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	healthy := NewRouter(&MockPipeline{}, nil, func(ctx context.Context) error { return nil })
	rec := serve(healthy, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	down := NewRouter(&MockPipeline{}, nil, func(ctx context.Context) error { return errors.New("database is locked") })
	rec = serve(down, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestCycles(t *testing.T) {
	event := models.PersistedEvent{ID: "e1", CandidateEvent: models.CandidateEvent{Title: "Embargo announced"}}

	tests := []struct {
		name     string
		summary  *models.CycleSummary
		err      error
		expected int
	}{
		{name: "Success", summary: &models.CycleSummary{Persisted: 1, Events: []models.PersistedEvent{event}}, expected: http.StatusOK},
		{name: "Fatal", summary: &models.CycleSummary{}, err: fmt.Errorf("%w: store down", pipeline.ErrFatal), expected: http.StatusServiceUnavailable},
		{name: "Canceled", summary: &models.CycleSummary{Canceled: true}, err: context.Canceled, expected: http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MockPipeline{}
			p.On("RunFullCycle", mock.Anything).Return(tt.summary, tt.err)

			rec := serve(NewRouter(p, nil, nil), "POST", "/cycles", "")
			assert.Equal(t, tt.expected, rec.Code)

			var resp CycleResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, len(tt.summary.Events), resp.EventsProcessed)
			require.NotNil(t, resp.Summary)
			assert.Equal(t, tt.summary.Canceled, resp.Summary.Canceled)
			if tt.err != nil {
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestCycles_Async(t *testing.T) {
	p := &MockPipeline{}
	done := make(chan struct{})
	p.On("RunFullCycle", mock.Anything).Return(&models.CycleSummary{}, nil).Run(func(mock.Arguments) { close(done) })

	rec := serve(NewRouter(p, nil, nil), "POST", "/cycles?async=true", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-done
}

func TestFetch(t *testing.T) {
	p := &MockPipeline{}
	p.On("RunFetchOnly", mock.Anything, "news").Return([]models.RawItem{{Title: "Sanctions widen"}}, nil)
	p.On("RunFetchOnly", mock.Anything, "blogs").Return(nil, fmt.Errorf("%w: %q", pipeline.ErrUnknownGroup, "blogs"))
	router := NewRouter(p, nil, nil)

	rec := serve(router, "POST", "/fetch/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.RawItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Sanctions widen", items[0].Title)

	rec = serve(router, "POST", "/fetch/blogs", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, "GET", "/fetch/news", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyze(t *testing.T) {
	p := &MockPipeline{}
	p.On("RunAnalyzeOnly", mock.Anything, mock.MatchedBy(func(items []models.RawItem) bool {
		return len(items) == 1 && items[0].Title == "US imposes new sanctions on Iran"
	})).Return([]models.CandidateEvent{{Title: "US imposes new sanctions on Iran", Category: "Sanctions"}}, nil)
	router := NewRouter(p, nil, nil)

	rec := serve(router, "POST", "/analyze", `{"items":[{"title":"US imposes new sanctions on Iran","platform":"news"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var candidates []models.CandidateEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &candidates))
	require.Len(t, candidates, 1)
	assert.Equal(t, "Sanctions", candidates[0].Category)

	rec = serve(router, "POST", "/analyze", `{"items": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents(t *testing.T) {
	p := &MockPipeline{}
	p.On("RecentEvents", mock.Anything, defaultEventLimit).Return([]models.PersistedEvent{{ID: "e1"}}, nil)
	p.On("RecentEvents", mock.Anything, maxEventLimit).Return([]models.PersistedEvent{}, nil)
	p.On("RecentEvents", mock.Anything, 5).Return(nil, errors.New("store down"))
	router := NewRouter(p, nil, nil)

	rec := serve(router, "GET", "/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"e1"`)

	rec = serve(router, "GET", "/events?limit=100000", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, "GET", "/events?limit=5", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(router, "GET", "/events?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusAndMetrics(t *testing.T) {
	p := &MockPipeline{}
	p.On("GetMetrics").Return(`{"total_cycles": 3}`)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("geo_events_cycles_total 3\n"))
	})
	router := NewRouter(p, metrics, nil)

	rec := serve(router, "GET", "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_cycles": 3}`, rec.Body.String())

	rec = serve(router, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "geo_events_cycles_total")
}

func TestArchivedCycles(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	p := &MockPipeline{}
	p.On("ArchivedCycles", mock.Anything, day).Return([]*models.CycleSummary{{Fetched: 12, Persisted: 2}}, nil)
	rec := serve(NewRouter(p, nil, nil), "GET", "/cycles/2025-03-10", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var cycles []models.CycleSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cycles))
	require.Len(t, cycles, 1)
	assert.Equal(t, 12, cycles[0].Fetched)
	p.AssertExpectations(t)

	rec = serve(NewRouter(&MockPipeline{}, nil, nil), "GET", "/cycles/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noArchive := &MockPipeline{}
	noArchive.On("ArchivedCycles", mock.Anything, day).Return(nil, pipeline.ErrNoArchive)
	rec = serve(NewRouter(noArchive, nil, nil), "GET", "/cycles/2025-03-10", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	down := &MockPipeline{}
	down.On("ArchivedCycles", mock.Anything, day).Return(nil, errors.New("blob service timeout"))
	rec = serve(NewRouter(down, nil, nil), "GET", "/cycles/2025-03-10", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
