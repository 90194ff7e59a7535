package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/souqly/marketd/internal/models"
)

func TestExpiryRetiresDueListings(t *testing.T) {
	f := newFixture(t)
	past := f.clock.Now().Add(-time.Hour)
	future := f.clock.Now().Add(time.Hour)

	due := f.listing(t, models.Listing{OwnerID: "o1", ExpiresAt: &past})
	notYet := f.listing(t, models.Listing{OwnerID: "o2", ExpiresAt: &future})
	noExpiry := f.listing(t, models.Listing{OwnerID: "o3"})
	auction := f.listing(t, models.Listing{
		OwnerID:       "o4",
		SaleMode:      models.SaleModeAuction,
		AuctionStatus: models.AuctionStatusActive,
		ExpiresAt:     &past,
	})
	sold := f.listing(t, models.Listing{OwnerID: "o5", Status: models.ListingStatusSold, ExpiresAt: &past})

	job := NewExpiry(f.deps)
	result, err := job.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Affected)
	require.Equal(t, 1, result.Notified)

	require.Equal(t, models.ListingStatusExpired, f.reload(t, due.ID).Status)
	require.Equal(t, models.ListingStatusActive, f.reload(t, notYet.ID).Status)
	require.Equal(t, models.ListingStatusActive, f.reload(t, noExpiry.ID).Status)
	require.Equal(t, models.ListingStatusActive, f.reload(t, auction.ID).Status)
	require.Equal(t, models.ListingStatusSold, f.reload(t, sold.ID).Status)

	rows := f.notifications(t, models.NotificationSystem)
	require.Len(t, rows, 1)
	require.Equal(t, "o1", rows[0].UserID)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rows[0].Payload, &payload))
	require.Equal(t, "listing_expired", payload["reason"])

	result, err = job.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Candidates)
	require.Len(t, f.notifications(t, models.NotificationSystem), 1)
}
