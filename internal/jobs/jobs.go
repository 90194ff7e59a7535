package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
	"github.com/souqly/marketd/pkg/logger"
)

// Job names double as metric labels and log fields.
const (
	NameSettlement = "auction_settlement"
	NameMatching   = "new_listing_matching"
	NameEndingSoon = "ending_soon_reminder"
	NamePriceDrop  = "price_drop"
	NameExpiry     = "expiry_sweep"
	NameInterest   = "interest_aggregation"
	NameRetention  = "retention_sweep"
)

// Job is one unit of scheduled work. Run must be safe to repeat: candidate selection is a
// function of current store state only.
type Job interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// Result holds the outcome counts of a single run.
type Result struct {
	Candidates int
	Affected   int64
	Notified   int
	Skipped    int
	Failed     int
}

// Notifier delivers a notification to one recipient. *notifications.Sink satisfies it.
type Notifier interface {
	Notify(ctx context.Context, msg notifications.Message) error
}

// Config carries the windows and thresholds shared by the jobs.
type Config struct {
	EndingSoonHorizon  time.Duration
	InterestWindow     time.Duration
	InterestMinUsers   int
	MatchWindow        time.Duration
	MatchSignalWindow  time.Duration
	MatchMinScore      int
	MatchMaxRecipients int
	PriceDropWindow    time.Duration
	PriceDropRatio     decimal.Decimal
	DedupWindow        time.Duration
	Retention          time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		EndingSoonHorizon:  time.Hour,
		InterestWindow:     24 * time.Hour,
		InterestMinUsers:   3,
		MatchWindow:        5 * time.Minute,
		MatchSignalWindow:  30 * 24 * time.Hour,
		MatchMinScore:      8,
		MatchMaxRecipients: 50,
		PriceDropWindow:    30 * time.Minute,
		PriceDropRatio:     decimal.RequireFromString("0.95"),
		DedupWindow:        24 * time.Hour,
		Retention:          60 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.EndingSoonHorizon <= 0 {
		c.EndingSoonHorizon = def.EndingSoonHorizon
	}
	if c.InterestWindow <= 0 {
		c.InterestWindow = def.InterestWindow
	}
	if c.InterestMinUsers <= 0 {
		c.InterestMinUsers = def.InterestMinUsers
	}
	if c.MatchWindow <= 0 {
		c.MatchWindow = def.MatchWindow
	}
	if c.MatchSignalWindow <= 0 {
		c.MatchSignalWindow = def.MatchSignalWindow
	}
	if c.MatchMinScore <= 0 {
		c.MatchMinScore = def.MatchMinScore
	}
	if c.MatchMaxRecipients <= 0 {
		c.MatchMaxRecipients = def.MatchMaxRecipients
	}
	if c.PriceDropWindow <= 0 {
		c.PriceDropWindow = def.PriceDropWindow
	}
	if !c.PriceDropRatio.IsPositive() {
		c.PriceDropRatio = def.PriceDropRatio
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = def.DedupWindow
	}
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	return c
}

// Deps wires the store, the notification sink and the clock into every job.
type Deps struct {
	DB       *gorm.DB
	Notifier Notifier
	Now      func() time.Time
	Config   Config
}

type base struct {
	name     string
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	cfg      Config
	log      *zap.Logger
}

func newBase(name string, deps Deps) base {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return base{
		name:     name,
		db:       deps.DB,
		notifier: deps.Notifier,
		now:      func() time.Time { return now().UTC() },
		cfg:      deps.Config.withDefaults(),
		log:      logger.WithJob(name),
	}
}

// Name returns the job identifier.
func (b *base) Name() string { return b.name }

func (b *base) ready() error {
	if b.db == nil {
		return apperrors.Configuration(b.name, errors.New("db is required"))
	}
	if b.notifier == nil {
		return apperrors.Configuration(b.name, errors.New("notifier is required"))
	}
	return nil
}

func (b *base) notify(ctx context.Context, msg notifications.Message, result *Result) error {
	if err := b.notifier.Notify(ctx, msg); err != nil {
		return apperrors.Row(b.name+": notify "+msg.RecipientID, err)
	}
	result.Notified++
	return nil
}

// completed logs the single outcome line every run emits.
func (b *base) completed(result Result, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.Int("candidates", result.Candidates),
		zap.Int("notifications_sent", result.Notified),
	)
	if result.Failed > 0 {
		fields = append(fields, zap.Int("failed", result.Failed))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		b.log.Warn("job completed with errors", fields...)
		return
	}
	b.log.Info("job completed", fields...)
}

// notifiedUsers returns the subset of users already holding a notification of the given type
// for the listing. A zero since means "ever".
func notifiedUsers(ctx context.Context, db *gorm.DB, notificationType, listingID string, since time.Time, users []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	if len(users) == 0 {
		return seen, nil
	}

	query := db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("type = ? AND listing_id = ?", notificationType, listingID).
		Where("user_id IN ?", users)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}

	var ids []string
	if err := query.Distinct().Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// withoutNotified removes users already notified and keeps the original order.
func withoutNotified(users []string, seen map[string]struct{}) []string {
	out := make([]string, 0, len(users))
	for _, id := range users {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

func listingRef(id string) *string {
	return &id
}
