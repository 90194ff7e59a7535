package jobs

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

var interestKinds = []string{models.SignalView, models.SignalFavorite, models.SignalChatInitiated}

// Interest tells sellers when enough distinct buyers engaged with a listing recently.
type Interest struct {
	base
}

// NewInterest constructs the interest aggregation job.
func NewInterest(deps Deps) *Interest {
	return &Interest{base: newBase(NameInterest, deps)}
}

type interestRow struct {
	ListingID string
	OwnerID   string
	Title     string
	Users     int
}

// Run notifies the owner of every active listing that crossed the distinct-user threshold,
// at most once per listing per dedup window.
func (i *Interest) Run(ctx context.Context) (Result, error) {
	var result Result
	if err := i.ready(); err != nil {
		return result, err
	}

	now := i.now()
	var rows []interestRow
	if err := i.db.WithContext(ctx).
		Table("signals").
		Select("signals.listing_id AS listing_id, listings.owner_id AS owner_id, listings.title AS title, COUNT(DISTINCT signals.user_id) AS users").
		Joins("JOIN listings ON listings.id = signals.listing_id").
		Where("signals.kind IN ?", interestKinds).
		Where("signals.created_at >= ?", now.Add(-i.cfg.InterestWindow)).
		Where("listings.status = ?", models.ListingStatusActive).
		Where("signals.user_id <> listings.owner_id").
		Group("signals.listing_id, listings.owner_id, listings.title").
		Having("COUNT(DISTINCT signals.user_id) >= ?", i.cfg.InterestMinUsers).
		Order("signals.listing_id").
		Scan(&rows).Error; err != nil {
		return result, apperrors.Transient("interest: aggregate signals", err)
	}
	result.Candidates = len(rows)

	since := now.Add(-i.cfg.DedupWindow)
	var errs error
	for _, row := range rows {
		seen, err := notifiedUsers(ctx, i.db, models.NotificationSellerInterest, row.ListingID, since, []string{row.OwnerID})
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, apperrors.Row("interest: dedup "+row.ListingID, err))
			continue
		}
		if len(seen) > 0 {
			result.Skipped++
			continue
		}

		if err := i.notify(ctx, notifications.Message{
			RecipientID: row.OwnerID,
			Type:        models.NotificationSellerInterest,
			Title:       "Buyers are interested in your listing",
			Body:        fmt.Sprintf("%d people looked at %q in the last day.", row.Users, row.Title),
			ListingID:   listingRef(row.ListingID),
			Payload:     map[string]any{"interested_users": row.Users},
		}, &result); err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
		}
	}

	i.completed(result, errs)
	return result, errs
}
