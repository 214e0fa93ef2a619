package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/geowatch/geo-events-bot/internal/aggregator"
	"github.com/geowatch/geo-events-bot/internal/analysis"
	"github.com/geowatch/geo-events-bot/internal/metrics"
	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/notifications"
	"github.com/geowatch/geo-events-bot/internal/persist"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/geowatch/geo-events-bot/internal/sources"
	"github.com/geowatch/geo-events-bot/internal/storage"
	"github.com/geowatch/geo-events-bot/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrFatal marks a cycle aborted because the event store or the recipient
// list could not be reached. Callers decide whether to retry later.
var ErrFatal = errors.New("fatal pipeline failure")

// ErrUnknownGroup is returned by RunFetchOnly for a group name it does not know
var ErrUnknownGroup = errors.New("unknown source group")

// ErrNoArchive is returned by ArchivedCycles when no archive is configured
var ErrNoArchive = errors.New("cycle archive not configured")

const (
	defaultWorkers = 4
	sideEffectWait = 30 * time.Second
)

// Deps are the stages and sinks a Service drives. Recorder, Archive and
// Reporter are optional.
type Deps struct {
	Aggregator *aggregator.Aggregator
	Analyzer   *analysis.Analyzer
	Persister  *persist.Persister
	Dispatcher *notifications.Dispatcher
	Events     store.EventStore
	Recorder   *metrics.Recorder
	Archive    *storage.Archive
	Reporter   notifications.Reporter
	Clock      ratelimit.Clock
	Workers    int
}

// Service runs pipeline cycles and keeps a running status for the API
type Service struct {
	deps    Deps
	metrics *Metrics
	mu      sync.RWMutex
}

// Metrics holds the status of recent cycles
type Metrics struct {
	TotalCycles     int                            `json:"total_cycles"`
	LastRun         time.Time                      `json:"last_run"`
	LastRunDuration string                         `json:"last_run_duration"`
	LastSummary     *models.CycleSummary           `json:"last_summary,omitempty"`
	AdapterStatus   map[string]sources.FetchStatus `json:"adapter_status"`
	ErrorCount      int                            `json:"error_count"`
}

// NewService creates a pipeline service
func NewService(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = ratelimit.SystemClock()
	}
	if deps.Workers <= 0 {
		deps.Workers = defaultWorkers
	}
	return &Service{
		deps: deps,
		metrics: &Metrics{
			AdapterStatus: make(map[string]sources.FetchStatus),
		},
	}
}

// RunFullCycle fetches, analyzes, persists and notifies. It always returns a
// summary of how far each stage got. The error is ErrFatal-wrapped when the
// store or recipient list is unreachable, and ctx's error when the cycle was
// canceled.
func (s *Service) RunFullCycle(ctx context.Context) (*models.CycleSummary, error) {
	start := s.deps.Clock.Now()
	summary := &models.CycleSummary{StartedAt: start, Events: []models.PersistedEvent{}}
	logrus.Info("Starting pipeline cycle")

	fetched, err := s.deps.Aggregator.Run(ctx)
	summary.Fetched = len(fetched.Items)
	s.recordFetch(fetched.Stats)
	if err != nil && !errors.Is(err, aggregator.ErrNoAdapters) {
		return s.finish(ctx, summary, err)
	}
	if errors.Is(err, aggregator.ErrNoAdapters) {
		logrus.Warn("No adapters registered, nothing to fetch")
	}

	candidates, notRelevant, err := s.deps.Analyzer.AnalyzeBatch(ctx, fetched.Items, s.deps.Workers)
	summary.Analyzed = len(candidates) + notRelevant
	summary.NotRelevant = notRelevant
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObserveAnalysis(len(candidates), notRelevant)
	}
	if err != nil {
		return s.finish(ctx, summary, err)
	}

	persisted, err := s.deps.Persister.PersistBatch(ctx, candidates)
	summary.Persisted = len(persisted.Persisted)
	summary.Duplicates = persisted.Duplicates
	summary.Invalid = persisted.Invalid
	summary.PersistFailed = persisted.Failed
	if persisted.Persisted != nil {
		summary.Events = persisted.Persisted
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObservePersist(summary.Persisted, summary.Duplicates, summary.Invalid, summary.PersistFailed)
	}
	if err != nil {
		return s.finish(ctx, summary, err)
	}

	dispatched, err := s.deps.Dispatcher.Dispatch(ctx, summary.Events)
	summary.Notified = dispatched.Sent
	summary.NotifySkipped = dispatched.Skipped
	summary.NotifyFailed = dispatched.Failed
	if dispatched.Failures != nil {
		logrus.Warnf("Some notifications failed: %v", dispatched.Failures)
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObserveNotify(dispatched.Sent, dispatched.Skipped, dispatched.Failed)
	}

	return s.finish(ctx, summary, err)
}

// finish classifies err, records the cycle and publishes it
func (s *Service) finish(ctx context.Context, summary *models.CycleSummary, err error) (*models.CycleSummary, error) {
	elapsed := s.deps.Clock.Now().Sub(summary.StartedAt)
	summary.Duration = elapsed.String()

	result := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		summary.Canceled = true
		result = "canceled"
		err = ctx.Err()
		logrus.Warnf("Pipeline cycle canceled after %v", elapsed)
	default:
		result = "failed"
		err = fmt.Errorf("%w: %w", ErrFatal, err)
		logrus.Errorf("Pipeline cycle aborted: %v", err)
	}

	fields := logrus.Fields{
		"fetched":    summary.Fetched,
		"analyzed":   summary.Analyzed,
		"persisted":  summary.Persisted,
		"duplicates": summary.Duplicates,
		"notified":   summary.Notified,
		"failed":     summary.Failed(),
		"duration":   summary.Duration,
	}
	logrus.WithFields(fields).Infof("Pipeline cycle finished (%s)", result)

	if s.deps.Recorder != nil {
		s.deps.Recorder.ObserveCycle(elapsed, result)
	}
	s.updateMetrics(summary, err != nil)
	s.publish(ctx, summary)

	return summary, err
}

// publish archives the summary and posts the cycle report. Both are
// best-effort and outlive cancellation of the cycle itself.
func (s *Service) publish(ctx context.Context, summary *models.CycleSummary) {
	if s.deps.Archive == nil && s.deps.Reporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectWait)
	defer cancel()

	if s.deps.Archive != nil && len(summary.Events) > 0 {
		if name, err := s.deps.Archive.SaveCycle(ctx, summary); err != nil {
			logrus.Errorf("Failed to archive cycle: %v", err)
		} else {
			logrus.Debugf("Archived cycle as %s", name)
		}
	}

	if s.deps.Reporter != nil {
		if err := s.deps.Reporter.SendCycleReport(ctx, summary); err != nil {
			logrus.Errorf("Failed to send cycle report: %v", err)
		}
	}
}

// RunFetchOnly fetches from one source group without analyzing or storing
func (s *Service) RunFetchOnly(ctx context.Context, groupName string) ([]models.RawItem, error) {
	group, ok := sources.ParseGroup(groupName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, groupName)
	}

	result, err := s.deps.Aggregator.RunGroup(ctx, group)
	s.recordFetch(result.Stats)
	if errors.Is(err, aggregator.ErrNoAdapters) {
		return []models.RawItem{}, nil
	}
	if result.Items == nil {
		result.Items = []models.RawItem{}
	}
	return result.Items, err
}

// RunAnalyzeOnly analyzes caller-supplied items and returns the relevant ones.
// Nothing is persisted.
func (s *Service) RunAnalyzeOnly(ctx context.Context, items []models.RawItem) ([]models.CandidateEvent, error) {
	candidates, notRelevant, err := s.deps.Analyzer.AnalyzeBatch(ctx, items, s.deps.Workers)
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObserveAnalysis(len(candidates), notRelevant)
	}
	if candidates == nil {
		candidates = []models.CandidateEvent{}
	}
	return candidates, err
}

// RecentEvents returns the newest stored events
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]models.PersistedEvent, error) {
	events, err := s.deps.Events.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.PersistedEvent{}
	}
	return events, nil
}

// ArchivedCycles reads back the summaries of cycles started on day (UTC),
// oldest first
func (s *Service) ArchivedCycles(ctx context.Context, day time.Time) ([]*models.CycleSummary, error) {
	if s.deps.Archive == nil {
		return nil, ErrNoArchive
	}

	names, err := s.deps.Archive.ListCycles(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived cycles: %w", err)
	}
	sort.Strings(names)

	cycles := make([]*models.CycleSummary, 0, len(names))
	for _, name := range names {
		summary, err := s.deps.Archive.LoadCycle(ctx, name)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, summary)
	}
	return cycles, nil
}

func (s *Service) recordFetch(stats []aggregator.AdapterStat) {
	if len(stats) == 0 {
		return
	}

	s.mu.Lock()
	for _, stat := range stats {
		s.metrics.AdapterStatus[stat.Name] = stat.Status
	}
	s.mu.Unlock()

	if s.deps.Recorder != nil {
		for _, stat := range stats {
			s.deps.Recorder.ObserveFetch(stat.Name, string(stat.Status), stat.Items)
		}
	}
}

func (s *Service) updateMetrics(summary *models.CycleSummary, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalCycles++
	s.metrics.LastRun = summary.StartedAt
	s.metrics.LastRunDuration = summary.Duration
	s.metrics.LastSummary = summary
	if failed {
		s.metrics.ErrorCount++
	}
}

// Status returns a copy of the current metrics
func (s *Service) Status() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := *s.metrics
	status.AdapterStatus = make(map[string]sources.FetchStatus, len(s.metrics.AdapterStatus))
	for name, st := range s.metrics.AdapterStatus {
		status.AdapterStatus[name] = st
	}
	return status
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	status := s.Status()
	data, _ := json.MarshalIndent(status, "", "  ")
	return string(data)
}
