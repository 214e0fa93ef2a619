package sources

import (
	"context"
	"errors"

	"github.com/geowatch/geo-events-bot/internal/models"
)

// Group splits adapters into wire news feeds and social feeds
type Group string

const (
	GroupNews   Group = "news"
	GroupSocial Group = "social"
)

// ParseGroup validates a group name
func ParseGroup(name string) (Group, bool) {
	switch Group(name) {
	case GroupNews, GroupSocial:
		return Group(name), true
	}
	return "", false
}

// ErrSourceUnavailable marks transport, decode and provider-side failures.
// The Adapter recovers from it; it never leaves this package's callers.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source interface defines the contract for all external feeds
type Source interface {
	GetName() string
	Group() Group
	IsEnabled() bool
	FetchItems(ctx context.Context) ([]models.RawItem, error)
}
