package jobs

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

const referencePageSize = 50

// PriceDrop notifies favoriters when a listing's price falls to the configured ratio of the
// last price a viewer saw.
type PriceDrop struct {
	base
}

// NewPriceDrop constructs the price-drop job.
func NewPriceDrop(deps Deps) *PriceDrop {
	return &PriceDrop{base: newBase(NamePriceDrop, deps)}
}

// Run checks every recently updated priced listing.
func (p *PriceDrop) Run(ctx context.Context) (Result, error) {
	var result Result
	if err := p.ready(); err != nil {
		return result, err
	}

	now := p.now()
	var updated []models.Listing
	if err := p.db.WithContext(ctx).
		Where("sale_mode <> ? AND status = ?", models.SaleModeAuction, models.ListingStatusActive).
		Where("updated_at >= ? AND price IS NOT NULL", now.Add(-p.cfg.PriceDropWindow)).
		Find(&updated).Error; err != nil {
		return result, apperrors.Transient("price drop: load listings", err)
	}
	result.Candidates = len(updated)

	var errs error
	for i := range updated {
		if err := p.check(ctx, &updated[i], &result); err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
		}
	}

	p.completed(result, errs)
	return result, errs
}

func (p *PriceDrop) check(ctx context.Context, listing *models.Listing, result *Result) error {
	if !listing.Price.Valid {
		return nil
	}
	price := listing.Price.Decimal

	reference, ok, err := p.referencePrice(ctx, listing)
	if err != nil {
		return err
	}
	if !ok || !Dropped(price, reference, p.cfg.PriceDropRatio) {
		return nil
	}

	var favoriters []string
	if err := p.db.WithContext(ctx).
		Model(&models.Signal{}).
		Where("listing_id = ? AND kind = ? AND user_id <> ?", listing.ID, models.SignalFavorite, listing.OwnerID).
		Distinct().
		Order("user_id").
		Pluck("user_id", &favoriters).Error; err != nil {
		return apperrors.Row("price drop: load favoriters for "+listing.ID, err)
	}

	seen, err := notifiedUsers(ctx, p.db, models.NotificationFavoritePriceDrop, listing.ID, p.now().Add(-p.cfg.DedupWindow), favoriters)
	if err != nil {
		return apperrors.Row("price drop: dedup "+listing.ID, err)
	}
	pending := withoutNotified(favoriters, seen)
	result.Skipped += len(favoriters) - len(pending)

	oldPrice := reference.StringFixed(2)
	newPrice := price.StringFixed(2)
	var errs error
	for _, user := range pending {
		errs = multierr.Append(errs, p.notify(ctx, notifications.Message{
			RecipientID: user,
			Type:        models.NotificationFavoritePriceDrop,
			Title:       "Price drop on a saved listing",
			Body:        fmt.Sprintf("%q dropped from %s to %s.", listing.Title, oldPrice, newPrice),
			ListingID:   listingRef(listing.ID),
			Payload: map[string]any{
				"old_price": oldPrice,
				"new_price": newPrice,
			},
		}, result))
	}
	return errs
}

// referencePrice returns the newest price observed by a viewer before the listing changed.
// Views without a recorded price are skipped, page by page, until a priced one is found.
func (p *PriceDrop) referencePrice(ctx context.Context, listing *models.Listing) (decimal.Decimal, bool, error) {
	for offset := 0; ; offset += referencePageSize {
		var views []models.Signal
		if err := p.db.WithContext(ctx).
			Where("listing_id = ? AND kind = ? AND created_at < ?", listing.ID, models.SignalView, listing.UpdatedAt).
			Order("created_at DESC").
			Order("id DESC").
			Offset(offset).
			Limit(referencePageSize).
			Find(&views).Error; err != nil {
			return decimal.Decimal{}, false, apperrors.Row("price drop: load views for "+listing.ID, err)
		}

		for i := range views {
			if observed, ok := views[i].ObservedPrice(); ok {
				return observed, true, nil
			}
		}
		if len(views) < referencePageSize {
			return decimal.Decimal{}, false, nil
		}
	}
}

// Dropped reports whether price is at or below ratio × reference.
func Dropped(price, reference, ratio decimal.Decimal) bool {
	if !reference.IsPositive() {
		return false
	}
	return price.LessThanOrEqual(reference.Mul(ratio))
}
