package jobs

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

// Expiry retires non-auction listings whose expiry timestamp has passed.
type Expiry struct {
	base
}

// NewExpiry constructs the expiry sweep.
func NewExpiry(deps Deps) *Expiry {
	return &Expiry{base: newBase(NameExpiry, deps)}
}

// Run expires due listings and notifies each owner once. The status guard on the update
// keeps a concurrent sweep from notifying twice.
func (e *Expiry) Run(ctx context.Context) (Result, error) {
	var result Result
	if err := e.ready(); err != nil {
		return result, err
	}

	now := e.now()
	var due []models.Listing
	if err := e.db.WithContext(ctx).
		Select("id", "owner_id", "title").
		Where("sale_mode <> ? AND status = ?", models.SaleModeAuction, models.ListingStatusActive).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Find(&due).Error; err != nil {
		return result, apperrors.Transient("expiry: load listings", err)
	}
	result.Candidates = len(due)

	var errs error
	for i := range due {
		listing := &due[i]
		res := e.db.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ? AND status = ?", listing.ID, models.ListingStatusActive).
			Updates(map[string]any{
				"status":     models.ListingStatusExpired,
				"updated_at": now,
			})
		if res.Error != nil {
			result.Failed++
			errs = multierr.Append(errs, apperrors.Row("expiry: expire "+listing.ID, res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			result.Skipped++
			continue
		}
		result.Affected++

		if err := e.notify(ctx, notifications.Message{
			RecipientID: listing.OwnerID,
			Type:        models.NotificationSystem,
			Title:       "Your listing has expired",
			Body:        fmt.Sprintf("%q is no longer visible to buyers. Renew it to publish again.", listing.Title),
			ListingID:   listingRef(listing.ID),
			Payload:     map[string]any{"reason": "listing_expired"},
		}, &result); err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
		}
	}

	e.completed(result, errs, zap.Int64("listings_expired", result.Affected))
	return result, errs
}
