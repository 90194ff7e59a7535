package jobs

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/monitoring"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

// Settlement outcomes, also used as metric labels.
const (
	OutcomeWinner         = "winner"
	OutcomeNoBids         = "no_bids"
	OutcomeAlreadyHandled = "already_handled"
)

// Settlement closes auctions whose deadline has passed.
//
// The transition is a single conditioned UPDATE guarded on auction_status = 'active'. When
// another worker got there first the update affects no rows and the listing is skipped
// without side effects, so concurrent instances never double-notify.
type Settlement struct {
	base
}

// NewSettlement constructs the settlement job.
func NewSettlement(deps Deps) *Settlement {
	return &Settlement{base: newBase(NameSettlement, deps)}
}

// Run finalizes every due auction independently.
func (s *Settlement) Run(ctx context.Context) (Result, error) {
	var result Result
	if err := s.ready(); err != nil {
		return result, err
	}

	now := s.now()
	var due []models.Listing
	if err := s.db.WithContext(ctx).
		Where("sale_mode = ? AND auction_status = ? AND auction_ends_at <= ?",
			models.SaleModeAuction, models.AuctionStatusActive, now).
		Order("auction_ends_at ASC").
		Find(&due).Error; err != nil {
		return result, apperrors.Transient("settlement: load due auctions", err)
	}
	result.Candidates = len(due)

	var (
		errs      error
		winners   int
		noBids    int
		finalized int64
	)
	for i := range due {
		outcome, err := s.settle(ctx, &due[i], &result)
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
		}
		switch outcome {
		case OutcomeWinner:
			winners++
			finalized++
		case OutcomeNoBids:
			noBids++
			finalized++
		case OutcomeAlreadyHandled:
			result.Skipped++
		}
		if outcome != "" {
			monitoring.RecordAuctionFinalized(outcome)
		}
	}
	result.Affected = finalized

	s.completed(result, errs,
		zap.Int64("auctions_finalized", finalized),
		zap.Int("with_winner", winners),
		zap.Int("no_bids", noBids),
		zap.Int("already_handled", result.Skipped),
	)
	return result, errs
}

func (s *Settlement) settle(ctx context.Context, listing *models.Listing, result *Result) (string, error) {
	var bids []models.Bid
	if err := s.db.WithContext(ctx).
		Where("listing_id = ?", listing.ID).
		Order("amount DESC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(1).
		Find(&bids).Error; err != nil {
		return "", apperrors.Row("settlement: load top bid for "+listing.ID, err)
	}

	if len(bids) == 0 {
		return s.closeWithoutBids(ctx, listing, result)
	}
	return s.closeWithWinner(ctx, listing, &bids[0], result)
}

func (s *Settlement) closeWithWinner(ctx context.Context, listing *models.Listing, bid *models.Bid, result *Result) (string, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND auction_status = ?", listing.ID, models.AuctionStatusActive).
		Updates(map[string]any{
			"auction_status": models.AuctionStatusEndedWinner,
			"status":         models.ListingStatusSold,
			"winner_id":      bid.BidderID,
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return "", apperrors.Row("settlement: finalize "+listing.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return OutcomeAlreadyHandled, nil
	}

	amount := bid.Amount.StringFixed(2)
	var errs error
	errs = multierr.Append(errs, s.notify(ctx, notifications.Message{
		RecipientID: bid.BidderID,
		Type:        models.NotificationAuctionWon,
		Title:       "You won the auction",
		Body:        fmt.Sprintf("Your bid of %s won %q.", amount, listing.Title),
		ListingID:   listingRef(listing.ID),
		Payload:     map[string]any{"amount": amount},
	}, result))
	errs = multierr.Append(errs, s.notify(ctx, notifications.Message{
		RecipientID: listing.OwnerID,
		Type:        models.NotificationAuctionEnded,
		Title:       "Your auction has ended",
		Body:        fmt.Sprintf("%q sold for %s.", listing.Title, amount),
		ListingID:   listingRef(listing.ID),
		Payload: map[string]any{
			"outcome":   OutcomeWinner,
			"winner_id": bid.BidderID,
			"amount":    amount,
		},
	}, result))
	return OutcomeWinner, errs
}

func (s *Settlement) closeWithoutBids(ctx context.Context, listing *models.Listing, result *Result) (string, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND auction_status = ?", listing.ID, models.AuctionStatusActive).
		Updates(map[string]any{
			"auction_status": models.AuctionStatusEndedNoBids,
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return "", apperrors.Row("settlement: close "+listing.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return OutcomeAlreadyHandled, nil
	}

	err := s.notify(ctx, notifications.Message{
		RecipientID: listing.OwnerID,
		Type:        models.NotificationAuctionEnded,
		Title:       "Your auction ended with no bids",
		Body:        fmt.Sprintf("%q closed without any bids.", listing.Title),
		ListingID:   listingRef(listing.ID),
		Payload:     map[string]any{"outcome": OutcomeNoBids},
	}, result)
	return OutcomeNoBids, err
}
