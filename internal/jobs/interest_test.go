package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/souqly/marketd/internal/models"
)

func TestInterestNotifiesOwnerAtThreshold(t *testing.T) {
	f := newFixture(t)
	hot := f.listing(t, models.Listing{OwnerID: "seller"})
	cold := f.listing(t, models.Listing{OwnerID: "seller2"})

	f.signal(t, models.Signal{UserID: "u1", ListingID: strPtr(hot.ID), Kind: models.SignalView}, time.Hour)
	f.signal(t, models.Signal{UserID: "u1", ListingID: strPtr(hot.ID), Kind: models.SignalFavorite}, time.Hour)
	f.signal(t, models.Signal{UserID: "u2", ListingID: strPtr(hot.ID), Kind: models.SignalFavorite}, 2*time.Hour)
	f.signal(t, models.Signal{UserID: "u3", ListingID: strPtr(hot.ID), Kind: models.SignalChatInitiated}, 3*time.Hour)

	// Only u1 counts towards cold.
	f.signal(t, models.Signal{UserID: "seller2", ListingID: strPtr(cold.ID), Kind: models.SignalView}, time.Hour)
	f.signal(t, models.Signal{UserID: "u1", ListingID: strPtr(cold.ID), Kind: models.SignalView}, time.Hour)
	f.signal(t, models.Signal{UserID: "u2", ListingID: strPtr(cold.ID), Kind: models.SignalSearch}, time.Hour)
	f.signal(t, models.Signal{UserID: "u3", ListingID: strPtr(cold.ID), Kind: models.SignalView}, 30*time.Hour)

	job := NewInterest(f.deps)
	result, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Candidates)
	require.Equal(t, 1, result.Notified)

	rows := f.notifications(t, models.NotificationSellerInterest)
	require.Len(t, rows, 1)
	require.Equal(t, "seller", rows[0].UserID)
	require.Equal(t, hot.ID, *rows[0].ListingID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rows[0].Payload, &payload))
	require.EqualValues(t, 3, payload["interested_users"])
}

func TestInterestDedupsWithinDay(t *testing.T) {
	f := newFixture(t)
	hot := f.listing(t, models.Listing{OwnerID: "seller"})
	for _, user := range []string{"u1", "u2", "u3"} {
		f.signal(t, models.Signal{UserID: user, ListingID: strPtr(hot.ID), Kind: models.SignalView}, 0)
	}

	job := NewInterest(f.deps)
	for i := 0; i < 4; i++ {
		_, err := job.Run(context.Background())
		require.NoError(t, err)
		f.clock.Advance(6 * time.Hour)
		for _, user := range []string{"u4", "u5", "u6"} {
			f.signal(t, models.Signal{UserID: user, ListingID: strPtr(hot.ID), Kind: models.SignalView}, 0)
		}
	}
	require.Len(t, f.notifications(t, models.NotificationSellerInterest), 1)

	f.clock.Advance(time.Minute)
	result, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Notified)
	require.Len(t, f.notifications(t, models.NotificationSellerInterest), 2)
}

func TestInterestIgnoresInactiveListings(t *testing.T) {
	f := newFixture(t)
	sold := f.listing(t, models.Listing{Status: models.ListingStatusSold})
	for _, user := range []string{"u1", "u2", "u3"} {
		f.signal(t, models.Signal{UserID: user, ListingID: strPtr(sold.ID), Kind: models.SignalView}, time.Minute)
	}

	result, err := NewInterest(f.deps).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Candidates)
}
