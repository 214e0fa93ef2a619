package store

import (
	"context"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// SyncRecipients makes the stored recipients match the given list: every
// listed recipient is upserted and every other one is deleted. It returns
// how many were deleted. Notification history is kept, so a recipient that
// comes back is still throttled by what it already received.
func SyncRecipients(ctx context.Context, s RecipientStore, recipients []models.Recipient) (int, error) {
	existing, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	keep := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		if err := s.UpsertRecipient(ctx, r); err != nil {
			return 0, err
		}
		keep[r.ID] = true
	}

	removed := 0
	for _, r := range existing {
		if keep[r.ID] {
			continue
		}
		if err := s.DeleteRecipient(ctx, r.ID); err != nil {
			return removed, err
		}
		logrus.Infof("Removed recipient %s", r.ID)
		removed++
	}
	return removed, nil
}
