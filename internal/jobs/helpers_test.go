package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/souqly/marketd/internal/database/testutil"
	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/notifications"
)

var baseTime = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db    *gorm.DB
	clock *fakeClock
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &fakeClock{now: baseTime}
	sink, err := notifications.NewSink(db, notifications.WithNow(clock.Now))
	require.NoError(t, err)

	return &fixture{
		db:    db,
		clock: clock,
		deps: Deps{
			DB:       db,
			Notifier: sink,
			Now:      clock.Now,
			Config:   DefaultConfig(),
		},
	}
}

func (f *fixture) listing(t *testing.T, l models.Listing) *models.Listing {
	t.Helper()
	if l.OwnerID == "" {
		l.OwnerID = "seller"
	}
	if l.Title == "" {
		l.Title = "Used bicycle"
	}
	if l.SaleMode == "" {
		l.SaleMode = models.SaleModeCash
	}
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = f.clock.Now().Add(-48 * time.Hour)
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	require.NoError(t, f.db.Create(&l).Error)
	return &l
}

func (f *fixture) auction(t *testing.T, endsIn time.Duration) *models.Listing {
	t.Helper()
	ends := f.clock.Now().Add(endsIn)
	return f.listing(t, models.Listing{
		Title:         "Vintage watch",
		SaleMode:      models.SaleModeAuction,
		AuctionStatus: models.AuctionStatusActive,
		AuctionEndsAt: &ends,
	})
}

func (f *fixture) bid(t *testing.T, listingID, bidder string, amount int64, age time.Duration) {
	t.Helper()
	bid := models.Bid{
		BaseModel: models.BaseModel{CreatedAt: f.clock.Now().Add(-age)},
		ListingID: listingID,
		BidderID:  bidder,
		Amount:    decimal.NewFromInt(amount),
	}
	require.NoError(t, f.db.Create(&bid).Error)
}

func (f *fixture) signal(t *testing.T, s models.Signal, age time.Duration) {
	t.Helper()
	s.CreatedAt = f.clock.Now().Add(-age)
	s.UpdatedAt = s.CreatedAt
	require.NoError(t, f.db.Create(&s).Error)
}

func (f *fixture) notifications(t *testing.T, notificationType string) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, f.db.Where("type = ?", notificationType).Order("user_id").Find(&rows).Error)
	return rows
}

func (f *fixture) reload(t *testing.T, id string) models.Listing {
	t.Helper()
	var listing models.Listing
	require.NoError(t, f.db.First(&listing, "id = ?", id).Error)
	return listing
}

func recipients(rows []models.Notification) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.UserID)
	}
	return out
}

func strPtr(v string) *string { return &v }

func jsonMap(kv ...any) datatypes.JSONMap {
	m := datatypes.JSONMap{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}
