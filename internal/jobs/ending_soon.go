package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

// EndingSoon reminds each bidder once per auction when the deadline is within the horizon.
type EndingSoon struct {
	base
}

// NewEndingSoon constructs the ending-soon reminder job.
func NewEndingSoon(deps Deps) *EndingSoon {
	return &EndingSoon{base: newBase(NameEndingSoon, deps)}
}

// Run notifies bidders of auctions closing within the configured horizon.
func (e *EndingSoon) Run(ctx context.Context) (Result, error) {
	var result Result
	if err := e.ready(); err != nil {
		return result, err
	}

	now := e.now()
	var closing []models.Listing
	if err := e.db.WithContext(ctx).
		Where("sale_mode = ? AND auction_status = ?", models.SaleModeAuction, models.AuctionStatusActive).
		Where("auction_ends_at > ? AND auction_ends_at <= ?", now, now.Add(e.cfg.EndingSoonHorizon)).
		Find(&closing).Error; err != nil {
		return result, apperrors.Transient("ending soon: load auctions", err)
	}
	result.Candidates = len(closing)

	var errs error
	for i := range closing {
		if err := e.remind(ctx, &closing[i], now, &result); err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
		}
	}

	e.completed(result, errs)
	return result, errs
}

func (e *EndingSoon) remind(ctx context.Context, listing *models.Listing, now time.Time, result *Result) error {
	var bidders []string
	if err := e.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("listing_id = ?", listing.ID).
		Distinct().
		Order("bidder_id").
		Pluck("bidder_id", &bidders).Error; err != nil {
		return apperrors.Row("ending soon: load bidders for "+listing.ID, err)
	}

	seen, err := notifiedUsers(ctx, e.db, models.NotificationAuctionEnding, listing.ID, time.Time{}, bidders)
	if err != nil {
		return apperrors.Row("ending soon: dedup "+listing.ID, err)
	}
	pending := withoutNotified(bidders, seen)
	result.Skipped += len(bidders) - len(pending)

	left := time.Duration(0)
	if listing.AuctionEndsAt != nil {
		left = listing.AuctionEndsAt.Sub(now).Round(time.Minute)
	}

	var errs error
	for _, bidder := range pending {
		errs = multierr.Append(errs, e.notify(ctx, notifications.Message{
			RecipientID: bidder,
			Type:        models.NotificationAuctionEnding,
			Title:       "Auction ending soon",
			Body:        fmt.Sprintf("%q closes in %s.", listing.Title, left),
			ListingID:   listingRef(listing.ID),
			Payload:     map[string]any{"ends_at": listing.AuctionEndsAt},
		}, result))
	}
	return errs
}
