package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/souqly/marketd/internal/models"
)

func TestSettlementSelectsHighestBid(t *testing.T) {
	f := newFixture(t)
	auction := f.auction(t, -time.Minute)
	f.bid(t, auction.ID, "u1", 100, 3*time.Hour)
	f.bid(t, auction.ID, "u2", 150, 2*time.Hour)
	f.bid(t, auction.ID, "u3", 120, time.Hour)

	result, err := NewSettlement(f.deps).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Candidates)
	require.EqualValues(t, 1, result.Affected)
	require.Equal(t, 2, result.Notified)

	got := f.reload(t, auction.ID)
	require.Equal(t, models.AuctionStatusEndedWinner, got.AuctionStatus)
	require.Equal(t, models.ListingStatusSold, got.Status)
	require.NotNil(t, got.WinnerID)
	require.Equal(t, "u2", *got.WinnerID)

	won := f.notifications(t, models.NotificationAuctionWon)
	require.Len(t, won, 1)
	require.Equal(t, "u2", won[0].UserID)

	ended := f.notifications(t, models.NotificationAuctionEnded)
	require.Len(t, ended, 1)
	require.Equal(t, "seller", ended[0].UserID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ended[0].Payload, &payload))
	require.Equal(t, "u2", payload["winner_id"])
	require.Equal(t, "150.00", payload["amount"])
}

func TestSettlementTieGoesToEarliestBid(t *testing.T) {
	f := newFixture(t)
	auction := f.auction(t, -time.Minute)
	f.bid(t, auction.ID, "late", 200, time.Minute)
	f.bid(t, auction.ID, "early", 200, time.Hour)

	_, err := NewSettlement(f.deps).Run(context.Background())
	require.NoError(t, err)

	got := f.reload(t, auction.ID)
	require.NotNil(t, got.WinnerID)
	require.Equal(t, "early", *got.WinnerID)
}

func TestSettlementNoBidsNotifiesOnlySeller(t *testing.T) {
	f := newFixture(t)
	auction := f.auction(t, -time.Minute)

	result, err := NewSettlement(f.deps).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Notified)

	got := f.reload(t, auction.ID)
	require.Equal(t, models.AuctionStatusEndedNoBids, got.AuctionStatus)
	require.Nil(t, got.WinnerID)

	var all []models.Notification
	require.NoError(t, f.db.Find(&all).Error)
	require.Len(t, all, 1)
	require.Equal(t, "seller", all[0].UserID)
	require.Equal(t, models.NotificationAuctionEnded, all[0].Type)
}

func TestSettlementIgnoresOpenAndFinishedAuctions(t *testing.T) {
	f := newFixture(t)
	open := f.auction(t, time.Hour)
	f.bid(t, open.ID, "u1", 10, time.Minute)

	ends := f.clock.Now().Add(-time.Hour)
	f.listing(t, models.Listing{
		SaleMode:      models.SaleModeAuction,
		AuctionStatus: models.AuctionStatusEndedNoBids,
		AuctionEndsAt: &ends,
	})

	result, err := NewSettlement(f.deps).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Candidates)
	require.Equal(t, models.AuctionStatusActive, f.reload(t, open.ID).AuctionStatus)
}

func TestSettlementIsIdempotent(t *testing.T) {
	f := newFixture(t)
	auction := f.auction(t, -time.Minute)
	f.bid(t, auction.ID, "u1", 100, time.Hour)

	job := NewSettlement(f.deps)
	_, err := job.Run(context.Background())
	require.NoError(t, err)
	first := f.reload(t, auction.ID)

	second, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.Candidates)
	require.Zero(t, second.Notified)

	again := f.reload(t, auction.ID)
	require.Equal(t, first.AuctionStatus, again.AuctionStatus)
	require.Equal(t, first.Status, again.Status)
	require.Equal(t, *first.WinnerID, *again.WinnerID)

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestSettlementConcurrentWorkersNotifyOnce(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		auction := f.auction(t, -time.Minute)
		f.bid(t, auction.ID, "u1", 100, time.Hour)
	}

	const workers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int64
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := NewSettlement(f.deps).Run(context.Background())
			mu.Lock()
			defer mu.Unlock()
			settled += result.Affected
			if err != nil {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)

	require.EqualValues(t, 3, settled)
	require.Len(t, f.notifications(t, models.NotificationAuctionWon), 3)
	require.Len(t, f.notifications(t, models.NotificationAuctionEnded), 3)
}

func TestSettlementAlreadyHandledHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	auction := f.auction(t, -time.Minute)
	f.bid(t, auction.ID, "u1", 100, time.Hour)

	job := NewSettlement(f.deps)
	// Another worker wins the race between selection and update.
	require.NoError(t, f.db.Model(&models.Listing{}).
		Where("id = ?", auction.ID).
		Update("auction_status", models.AuctionStatusEndedWinner).Error)

	var result Result
	outcome, err := job.closeWithWinner(context.Background(), auction, &models.Bid{BidderID: "u1"}, &result)
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyHandled, outcome)
	require.Zero(t, result.Notified)

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}
