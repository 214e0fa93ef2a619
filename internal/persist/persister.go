package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidCandidate marks candidates rejected before any store access
var ErrInvalidCandidate = errors.New("invalid candidate")

const (
	defaultWorkers = 4
	minEventYear   = 1970
	maxEventYear   = 2200
)

// Outcome says what happened to one candidate
type Outcome int

const (
	OutcomePersisted Outcome = iota
	OutcomeDuplicate
	OutcomeInvalid
	OutcomeFailed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// BatchResult summarizes PersistBatch. Outcomes lines up with the input;
// candidates never reached before cancellation are OutcomeCanceled.
type BatchResult struct {
	Persisted  []models.PersistedEvent
	Outcomes   []Outcome
	Duplicates int
	Invalid    int
	Failed     int
}

// Persister writes candidate events that are not duplicates of stored ones
type Persister struct {
	store   store.EventStore
	workers int
	locks   *keyedMutex
}

// NewPersister creates a persister. The same instance should be shared by
// every cycle so that concurrent cycles serialize on the same titles.
func NewPersister(eventStore store.EventStore, workers int) *Persister {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Persister{
		store:   eventStore,
		workers: workers,
		locks:   newKeyedMutex(),
	}
}

// PersistIfNew stores the candidate unless a same-titled event exists within
// the dedup window. Duplicates are not errors. Invalid candidates return an
// error wrapping ErrInvalidCandidate; store failures are returned wrapped.
func (p *Persister) PersistIfNew(ctx context.Context, candidate models.CandidateEvent) (*models.PersistedEvent, Outcome, error) {
	if err := validate(candidate); err != nil {
		return nil, OutcomeInvalid, err
	}

	key := store.DedupKey(candidate.Title)
	candidate.Title = key

	unlock := p.locks.Lock(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, OutcomeFailed, err
	}

	from, to := store.Window(candidate.EventDate)
	similar, err := p.store.FindSimilar(ctx, key, from, to)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("failed to check for duplicates of %q: %w", key, err)
	}
	if len(similar) > 0 {
		logrus.Debugf("Skipping duplicate event %q (matches %s)", key, similar[0].ID)
		return nil, OutcomeDuplicate, nil
	}

	persisted, err := p.store.Insert(ctx, candidate)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			logrus.Debugf("Event %q was inserted concurrently, skipping", key)
			return nil, OutcomeDuplicate, nil
		}
		return nil, OutcomeFailed, fmt.Errorf("failed to persist %q: %w", key, err)
	}

	return &persisted, OutcomePersisted, nil
}

// PersistBatch persists candidates with a bounded worker pool. Candidates
// sharing a dedup key are handled by one worker in input order, so the
// earliest of a set of duplicates is the one kept. Per-item failures are
// counted and never stop the batch. The returned error is non-nil only when
// ctx ends early or the store could not be reached for any candidate.
func (p *Persister) PersistBatch(ctx context.Context, candidates []models.CandidateEvent) (BatchResult, error) {
	results := make([]*models.PersistedEvent, len(candidates))
	outcomes := make([]Outcome, len(candidates))
	errs := make([]error, len(candidates))
	done := make([]bool, len(candidates))

	// group by dedup key, keyed groups ordered by first appearance
	var keys []string
	groups := make(map[string][]int)
	for i, c := range candidates {
		if err := validate(c); err != nil {
			outcomes[i] = OutcomeInvalid
			errs[i] = err
			done[i] = true
			continue
		}
		key := store.DedupKey(c.Title)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, key := range keys {
		if gctx.Err() != nil {
			break
		}
		indexes := groups[key]
		g.Go(func() error {
			for _, i := range indexes {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i], outcomes[i], errs[i] = p.PersistIfNew(gctx, candidates[i])
				done[i] = true
			}
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	result := BatchResult{Outcomes: outcomes}
	attempted, unavailable := 0, 0
	for i := range candidates {
		if !done[i] {
			outcomes[i] = OutcomeCanceled
			continue
		}
		switch outcomes[i] {
		case OutcomePersisted:
			result.Persisted = append(result.Persisted, *results[i])
			attempted++
		case OutcomeDuplicate:
			result.Duplicates++
			attempted++
		case OutcomeInvalid:
			result.Invalid++
			logrus.Warnf("Rejected candidate %q: %v", candidates[i].Title, errs[i])
		case OutcomeFailed:
			if errors.Is(errs[i], context.Canceled) || errors.Is(errs[i], context.DeadlineExceeded) {
				outcomes[i] = OutcomeCanceled
				continue
			}
			result.Failed++
			attempted++
			if errors.Is(errs[i], store.ErrUnavailable) {
				unavailable++
			}
			logrus.Errorf("Failed to persist candidate: %v", errs[i])
		}
	}

	logrus.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"persisted":  len(result.Persisted),
		"duplicates": result.Duplicates,
		"invalid":    result.Invalid,
		"failed":     result.Failed,
	}).Info("Persist stage complete")

	if waitErr != nil {
		return result, waitErr
	}
	if attempted > 0 && unavailable == attempted {
		return result, fmt.Errorf("%w: every duplicate check failed", store.ErrUnavailable)
	}
	return result, nil
}

func validate(c models.CandidateEvent) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidCandidate)
	}
	if c.EventDate.IsZero() {
		return fmt.Errorf("%w: missing event date", ErrInvalidCandidate)
	}
	if y := c.EventDate.Year(); y < minEventYear || y > maxEventYear {
		return fmt.Errorf("%w: event date %s out of range", ErrInvalidCandidate, c.EventDate.Format("2006-01-02"))
	}
	return nil
}
