package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const cyclePrefix = "cycles/"

// Archive keeps one JSON document per pipeline cycle, laid out as
// cycles/YYYY/MM/DD/HHMMSS.json
type Archive struct {
	blobs BlobStore
}

func NewArchive(blobs BlobStore) *Archive {
	return &Archive{blobs: blobs}
}

// CycleName is the blob name a cycle started at t is stored under
func CycleName(t time.Time) string {
	return cyclePrefix + t.UTC().Format("2006/01/02/150405") + ".json"
}

// SaveCycle stores the summary and returns its blob name
func (a *Archive) SaveCycle(ctx context.Context, summary *models.CycleSummary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal cycle summary: %w", err)
	}

	name := CycleName(summary.StartedAt)
	if err := a.blobs.Store(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}

// LoadCycle reads back a stored summary
func (a *Archive) LoadCycle(ctx context.Context, name string) (*models.CycleSummary, error) {
	data, err := a.blobs.Retrieve(ctx, name)
	if err != nil {
		return nil, err
	}

	var summary models.CycleSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode cycle %s: %w", name, err)
	}
	return &summary, nil
}

// ListCycles returns the blob names of cycles started on day (UTC)
func (a *Archive) ListCycles(ctx context.Context, day time.Time) ([]string, error) {
	return a.blobs.List(ctx, cyclePrefix+day.UTC().Format("2006/01/02/"))
}

// Prune deletes cycles that started before cutoff and returns how many went.
// A failed delete is logged and the rest are still attempted.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	names, err := a.blobs.List(ctx, cyclePrefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, name := range names {
		started, ok := cycleTime(name)
		if !ok || !started.Before(cutoff) {
			continue
		}
		if err := a.blobs.Delete(ctx, name); err != nil {
			logrus.Warnf("Failed to prune %s: %v", name, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func cycleTime(name string) (time.Time, bool) {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, cyclePrefix), ".json")
	t, err := time.Parse("2006/01/02/150405", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
