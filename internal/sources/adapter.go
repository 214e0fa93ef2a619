package sources

import (
	"context"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

// FetchStatus describes how an adapter call ended
type FetchStatus string

const (
	StatusOK          FetchStatus = "ok"
	StatusDisabled    FetchStatus = "disabled"
	StatusRateLimited FetchStatus = "rate_limited"
	StatusFailed      FetchStatus = "failed"
)

// Adapter wraps a Source with its rate limiter. Fetch never returns an error:
// disabled, rate limited and failing feeds all yield an empty result.
type Adapter struct {
	source  Source
	limiter *ratelimit.Limiter
}

// NewAdapter binds a source to a limiter. The limiter may be shared by
// several pipeline instances polling the same feed.
func NewAdapter(source Source, limiter *ratelimit.Limiter) *Adapter {
	return &Adapter{source: source, limiter: limiter}
}

func (a *Adapter) GetName() string {
	return a.source.GetName()
}

func (a *Adapter) Group() Group {
	return a.source.Group()
}

func (a *Adapter) IsEnabled() bool {
	return a.source.IsEnabled()
}

// Limiter exposes the adapter's limiter for status reporting
func (a *Adapter) Limiter() *ratelimit.Limiter {
	return a.limiter
}

// Fetch pulls one batch of items from the source
func (a *Adapter) Fetch(ctx context.Context) ([]models.RawItem, FetchStatus) {
	name := a.source.GetName()

	if !a.source.IsEnabled() {
		logrus.Debugf("%s source disabled - missing credentials", name)
		return nil, StatusDisabled
	}

	permit, ok := a.limiter.Acquire()
	if !ok {
		logrus.Debugf("%s source rate limited, next fetch allowed at %s", name, a.limiter.NextAllowed().Format(time.RFC3339))
		return nil, StatusRateLimited
	}

	items, err := a.source.FetchItems(ctx)
	if err != nil {
		permit.Complete(false)
		logrus.Errorf("Error fetching from %s: %v", name, err)
		return nil, StatusFailed
	}

	permit.Complete(true)
	logrus.Infof("Found %d items from %s", len(items), name)
	return items, StatusOK
}
