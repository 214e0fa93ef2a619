package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/geowatch/geo-events-bot/internal/config"
	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// pruneSchedule runs the archive cleanup once a day at 03:30
const pruneSchedule = "0 30 3 * * *"

// CycleRunner runs one full pipeline cycle
type CycleRunner interface {
	RunFullCycle(ctx context.Context) (*models.CycleSummary, error)
}

// Pruner removes archived cycles older than cutoff
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Service handles scheduling of pipeline cycles
type Service struct {
	config  *config.Config
	runner  CycleRunner
	pruner  Pruner
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
}

// NewService creates a new scheduler service. pruner may be nil.
func NewService(cfg *config.Config, runner CycleRunner, pruner Pruner) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config: cfg,
		runner: runner,
		pruner: pruner,
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the scheduled cycles
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.config.CycleSchedule, s.runCycle); err != nil {
		return fmt.Errorf("invalid cycle schedule %q: %w", s.config.CycleSchedule, err)
	}

	if s.pruner != nil && s.config.ArchiveRetentionDays > 0 {
		if _, err := s.cron.AddFunc(pruneSchedule, s.pruneArchive); err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q (%s)", s.config.CycleSchedule, s.config.TimeZone)
	return nil
}

// runCycle skips a tick while the previous cycle is still running
func (s *Service) runCycle() {
	if !s.running.CompareAndSwap(false, true) {
		logrus.Warn("Previous cycle still running, skipping this tick")
		return
	}
	defer s.running.Store(false)

	logrus.Info("Starting scheduled pipeline cycle")
	summary, err := s.runner.RunFullCycle(s.ctx)
	if err != nil {
		logrus.Errorf("Scheduled cycle failed: %v", err)
		return
	}
	logrus.Infof("Scheduled cycle stored %d new events", summary.EventsProcessed())
}

func (s *Service) pruneArchive() {
	cutoff := time.Now().AddDate(0, 0, -s.config.ArchiveRetentionDays)
	deleted, err := s.pruner.Prune(s.ctx, cutoff)
	if err != nil {
		logrus.Errorf("Archive prune failed: %v", err)
		return
	}
	logrus.Infof("Pruned %d archived cycles older than %s", deleted, cutoff.Format(time.RFC3339))
}

// Stop stops the scheduler, cancels a running cycle and waits for it to return
func (s *Service) Stop() {
	if s.cron != nil {
		s.cancel()
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
