package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/geowatch/geo-events-bot/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// MinRecipientScore is the floor; scores at or below it are never sent
	MinRecipientScore = 0.3
	// ImmediateScore is the score an immediate recipient needs
	ImmediateScore = 0.7

	dailyInterval  = 24 * time.Hour
	weeklyInterval = 7 * 24 * time.Hour

	defaultWorkers = 4
)

// DispatchSummary counts (event, recipient) pairs by result. Failures joins
// every send error, and every history write that failed after a successful
// send, so callers can inspect them with errors.Is.
type DispatchSummary struct {
	Sent     int   `json:"sent"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Failures error `json:"-"`
}

func (s *DispatchSummary) merge(other DispatchSummary) {
	s.Sent += other.Sent
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Failures = errors.Join(s.Failures, other.Failures)
}

// Dispatcher decides which recipients hear about which new events
type Dispatcher struct {
	recipients store.RecipientStore
	scorer     Scorer
	transport  Transport
	clock      ratelimit.Clock
	workers    int

	// per-recipient state, shared by every cycle using this dispatcher
	recipientStates sync.Map
}

// recipientState serializes one recipient's pairs. It also remembers sends
// whose history record could not be written, so the frequency policy still
// counts them.
type recipientState struct {
	mu         sync.Mutex
	lastSent   time.Time
	unrecorded map[string]bool
}

func (s *recipientState) remember(eventID string, sentAt time.Time) {
	if s.unrecorded == nil {
		s.unrecorded = make(map[string]bool)
	}
	s.unrecorded[eventID] = true
	if sentAt.After(s.lastSent) {
		s.lastSent = sentAt
	}
}

// NewDispatcher creates a dispatcher. A nil clock means the wall clock.
func NewDispatcher(recipients store.RecipientStore, scorer Scorer, transport Transport, clock ratelimit.Clock, workers int) *Dispatcher {
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Dispatcher{
		recipients: recipients,
		scorer:     scorer,
		transport:  transport,
		clock:      clock,
		workers:    workers,
	}
}

// Dispatch evaluates every (event, recipient) pair. Recipients are handled in
// parallel; each recipient's pairs run in event order under that recipient's
// lock. Per-pair failures are counted in the summary and never stop other
// pairs. The error is non-nil only when recipients cannot be listed or ctx
// ends early.
func (d *Dispatcher) Dispatch(ctx context.Context, events []models.PersistedEvent) (DispatchSummary, error) {
	var summary DispatchSummary
	if len(events) == 0 {
		return summary, nil
	}

	recipients, err := d.recipients.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list recipients: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, recipient := range recipients {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := d.dispatchRecipient(gctx, recipient, events)
			mu.Lock()
			summary.merge(result)
			mu.Unlock()
			return err
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	logrus.WithFields(logrus.Fields{
		"events":     len(events),
		"recipients": len(recipients),
		"sent":       summary.Sent,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	}).Info("Notify stage complete")

	return summary, err
}

func (d *Dispatcher) dispatchRecipient(ctx context.Context, recipient models.Recipient, events []models.PersistedEvent) (DispatchSummary, error) {
	state := d.stateFor(recipient.ID)
	state.mu.Lock()
	defer state.mu.Unlock()

	var summary DispatchSummary
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		sent, err := d.notify(ctx, state, recipient, event)
		switch {
		case sent:
			summary.Sent++
			if err != nil {
				summary.Failures = errors.Join(summary.Failures, err)
			}
		case err != nil:
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			summary.Failures = errors.Join(summary.Failures, err)
			logrus.Errorf("Notification of %s about %s failed: %v", recipient.ID, event.ID, err)
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

// notify handles one pair; the caller holds state.mu. A send whose record
// could not be written returns true together with an ErrRecordFailed error.
func (d *Dispatcher) notify(ctx context.Context, state *recipientState, recipient models.Recipient, event models.PersistedEvent) (bool, error) {
	score, rationale, err := d.scorer.Score(ctx, recipient, event)
	if err != nil {
		return false, fmt.Errorf("failed to score %s for %s: %w", event.ID, recipient.ID, err)
	}
	if score <= MinRecipientScore {
		return false, nil
	}
	if !recipient.NotificationPreferences.EmailEnabled {
		return false, nil
	}

	ok, err := d.shouldNotify(ctx, state, recipient, event.ID, score)
	if err != nil || !ok {
		return false, err
	}

	subject, body, err := RenderAlert(Alert{
		Recipient:   recipient,
		Event:       event,
		Score:       score,
		Rationale:   rationale,
		GeneratedAt: d.clock.Now(),
	})
	if err != nil {
		return false, err
	}

	messageID, err := d.transport.Send(ctx, recipient.Email, subject, body)
	if err != nil {
		return false, fmt.Errorf("%w: event %s to %s: %w", ErrSendFailed, event.ID, recipient.ID, err)
	}

	record := models.NotificationRecord{
		RecipientID: recipient.ID,
		EventID:     event.ID,
		Score:       score,
		SentAt:      d.clock.Now(),
		MessageID:   messageID,
	}
	logrus.Infof("Notified %s about %q (%s, score %.2f)", recipient.ID, event.Title, RiskLevelFor(score), score)

	if err := d.recipients.AppendNotification(ctx, record); err != nil {
		state.remember(event.ID, record.SentAt)
		logrus.Warnf("Sent %s to %s but failed to record it; only this process will remember the send: %v", event.ID, recipient.ID, err)
		return true, fmt.Errorf("%w: event %s to %s: %w", ErrRecordFailed, event.ID, recipient.ID, err)
	}
	return true, nil
}

// shouldNotify applies the recipient's frequency policy to a scored event.
// The caller holds state.mu.
func (d *Dispatcher) shouldNotify(ctx context.Context, state *recipientState, recipient models.Recipient, eventID string, score float64) (bool, error) {
	switch recipient.NotificationPreferences.Frequency {
	case models.FrequencyImmediate:
		if score < ImmediateScore || state.unrecorded[eventID] {
			return false, nil
		}
		seen, err := d.recipients.HasNotification(ctx, recipient.ID, eventID)
		if err != nil {
			return false, fmt.Errorf("failed to read notification history for %s: %w", recipient.ID, err)
		}
		return !seen, nil
	case models.FrequencyDaily:
		return d.quietFor(ctx, state, recipient.ID, dailyInterval)
	case models.FrequencyWeekly:
		return d.quietFor(ctx, state, recipient.ID, weeklyInterval)
	default:
		return false, nil
	}
}

// quietFor reports whether the recipient has had no notification for at least interval
func (d *Dispatcher) quietFor(ctx context.Context, state *recipientState, recipientID string, interval time.Duration) (bool, error) {
	last, found, err := d.recipients.LastNotificationTime(ctx, recipientID)
	if err != nil {
		return false, fmt.Errorf("failed to read notification history for %s: %w", recipientID, err)
	}
	if state.lastSent.After(last) {
		last, found = state.lastSent, true
	}
	if !found {
		return true, nil
	}
	return d.clock.Now().Sub(last) >= interval, nil
}

func (d *Dispatcher) stateFor(recipientID string) *recipientState {
	state, _ := d.recipientStates.LoadOrStore(recipientID, &recipientState{})
	return state.(*recipientState)
}
