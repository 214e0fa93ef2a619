package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/sources"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoAdapters is returned when the aggregator has nothing registered
var ErrNoAdapters = errors.New("no adapters registered")

// DefaultAdapterTimeout bounds a single adapter call
const DefaultAdapterTimeout = 45 * time.Second

// StatusTimedOut is reported for adapters abandoned at their deadline
const StatusTimedOut sources.FetchStatus = "timeout"

// Fetcher is a rate-limited source; *sources.Adapter implements it
type Fetcher interface {
	GetName() string
	Group() sources.Group
	Fetch(ctx context.Context) ([]models.RawItem, sources.FetchStatus)
}

// AdapterStat records how one adapter call went
type AdapterStat struct {
	Name     string              `json:"name"`
	Group    sources.Group       `json:"group"`
	Status   sources.FetchStatus `json:"status"`
	Items    int                 `json:"items"`
	Duration time.Duration       `json:"duration"`
}

// Result is the merged output of one aggregation run
type Result struct {
	Items []models.RawItem `json:"items"`
	Stats []AdapterStat    `json:"stats"`
}

// Aggregator fans out to every registered adapter and merges the results
type Aggregator struct {
	news    []Fetcher
	social  []Fetcher
	timeout time.Duration
}

// New registers adapters. Output order is news adapters then social
// adapters, each in registration order.
func New(adapters []Fetcher, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	a := &Aggregator{timeout: timeout}
	for _, f := range adapters {
		if f == nil {
			continue
		}
		if f.Group() == sources.GroupSocial {
			a.social = append(a.social, f)
		} else {
			a.news = append(a.news, f)
		}
	}
	return a
}

// Adapters lists the registered adapters in output order
func (a *Aggregator) Adapters() []Fetcher {
	if a == nil {
		return nil
	}
	return append(append([]Fetcher(nil), a.news...), a.social...)
}

// Run fetches from every adapter concurrently and waits for all of them
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	if a == nil || len(a.news)+len(a.social) == 0 {
		return Result{}, ErrNoAdapters
	}
	return a.run(ctx, a.Adapters())
}

// RunGroup fetches from one group only
func (a *Aggregator) RunGroup(ctx context.Context, group sources.Group) (Result, error) {
	if a == nil || len(a.news)+len(a.social) == 0 {
		return Result{}, ErrNoAdapters
	}
	switch group {
	case sources.GroupNews:
		return a.run(ctx, a.news)
	case sources.GroupSocial:
		return a.run(ctx, a.social)
	default:
		return Result{}, fmt.Errorf("unknown source group %q", group)
	}
}

func (a *Aggregator) run(ctx context.Context, adapters []Fetcher) (Result, error) {
	items := make([][]models.RawItem, len(adapters))
	stats := make([]AdapterStat, len(adapters))

	var g errgroup.Group
	for i, adapter := range adapters {
		g.Go(func() error {
			start := time.Now()
			fetched, status := a.fetchWithTimeout(ctx, adapter)
			items[i] = fetched
			stats[i] = AdapterStat{
				Name:     adapter.GetName(),
				Group:    adapter.Group(),
				Status:   status,
				Items:    len(fetched),
				Duration: time.Since(start),
			}
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Stats: stats}
	for _, batch := range items {
		result.Items = append(result.Items, batch...)
	}

	logrus.WithFields(logrus.Fields{
		"adapters": len(adapters),
		"items":    len(result.Items),
	}).Info("Fetch stage complete")

	return result, ctx.Err()
}

// fetchWithTimeout gives up on an adapter at its deadline even if the
// adapter itself ignores ctx
func (a *Aggregator) fetchWithTimeout(ctx context.Context, adapter Fetcher) ([]models.RawItem, sources.FetchStatus) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type fetchResult struct {
		items  []models.RawItem
		status sources.FetchStatus
	}
	done := make(chan fetchResult, 1)

	go func() {
		items, status := adapter.Fetch(ctx)
		done <- fetchResult{items: items, status: status}
	}()

	select {
	case r := <-done:
		return r.items, r.status
	case <-ctx.Done():
		logrus.Warnf("%s did not answer within %s, continuing without it", adapter.GetName(), a.timeout)
		return nil, StatusTimedOut
	}
}
