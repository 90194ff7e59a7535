package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/monitoring"
	apperrors "github.com/souqly/marketd/pkg/errors"
	"github.com/souqly/marketd/pkg/logger"
)

// Message describes one notification to a single recipient.
type Message struct {
	RecipientID string
	Type        string
	Title       string
	Body        string
	ListingID   *string
	Payload     map[string]any
}

// PushReport summarises a best-effort push attempt. It is logged and dropped by the sink,
// never returned to callers.
type PushReport struct {
	Subscriptions int
	Delivered     int
	Failed        int
	Pruned        int
	Err           error
}

// Sink persists in-app notifications and fans them out to push endpoints.
type Sink struct {
	db          *gorm.DB
	pusher      Pusher
	pushTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// Option customises the Sink.
type Option func(*Sink)

// WithPusher enables push delivery. A nil pusher leaves push disabled.
func WithPusher(p Pusher) Option {
	return func(s *Sink) {
		if p == nil {
			return
		}
		if wp, ok := p.(*WebPusher); ok && wp == nil {
			return
		}
		s.pusher = p
	}
}

// WithPushTimeout bounds each push delivery call.
func WithPushTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.pushTimeout = d
		}
	}
}

// WithNow overrides the clock used for notification timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSink constructs a Sink.
func NewSink(db *gorm.DB, opts ...Option) (*Sink, error) {
	if db == nil {
		return nil, errors.New("notification sink: db is required")
	}

	sink := &Sink{
		db:          db,
		pushTimeout: defaultPushTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		log:         logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

// Notify stores the notification and then attempts push delivery. Only a failure to store the
// notification is returned; push failures are logged and discarded.
func (s *Sink) Notify(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}

	row, err := s.insert(ctx, msg)
	if err != nil {
		return err
	}
	monitoring.RecordNotification(row.Type)

	if s.pusher == nil {
		return nil
	}

	report := s.push(ctx, row)
	if report.Err != nil {
		s.log.Debug("push delivery incomplete",
			zap.String("user_id", row.UserID),
			zap.String("notification_id", row.ID),
			zap.Int("subscriptions", report.Subscriptions),
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", report.Failed),
			zap.Int("pruned", report.Pruned),
			zap.Error(report.Err),
		)
	}
	return nil
}

func (s *Sink) insert(ctx context.Context, msg Message) (*models.Notification, error) {
	recipient := strings.TrimSpace(msg.RecipientID)
	if recipient == "" {
		return nil, errors.New("notification sink: recipient is required")
	}
	notificationType := strings.TrimSpace(msg.Type)
	if notificationType == "" {
		return nil, errors.New("notification sink: type is required")
	}

	now := s.now()
	row := &models.Notification{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		UserID:    recipient,
		Type:      notificationType,
		Title:     strings.TrimSpace(msg.Title),
		Body:      strings.TrimSpace(msg.Body),
		ListingID: msg.ListingID,
	}

	if msg.Payload != nil {
		data, err := json.Marshal(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("notification sink: marshal payload: %w", err)
		}
		row.Payload = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, apperrors.Transient("notification sink: create notification", err)
	}
	return row, nil
}

type pushPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	ListingID string `json:"listing_id,omitempty"`
	URL       string `json:"url"`
}

func (s *Sink) push(ctx context.Context, row *models.Notification) (report PushReport) {
	var subs []models.PushSubscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", row.UserID).
		Find(&subs).Error; err != nil {
		report.Err = apperrors.Push("load subscriptions", err)
		return report
	}
	report.Subscriptions = len(subs)
	if len(subs) == 0 {
		return report
	}

	payload := pushPayload{
		Title: row.Title,
		Body:  row.Body,
		Type:  row.Type,
		URL:   "/notifications",
	}
	if row.ListingID != nil && *row.ListingID != "" {
		payload.ListingID = *row.ListingID
		payload.URL = "/listings/" + *row.ListingID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		report.Err = apperrors.Push("marshal payload", err)
		return report
	}

	for _, sub := range subs {
		err := s.deliver(ctx, sub, data)
		switch {
		case err == nil:
			report.Delivered++
			monitoring.RecordPushDelivery("delivered")
		case errors.Is(err, ErrEndpointGone):
			monitoring.RecordPushDelivery("gone")
			if delErr := s.db.WithContext(ctx).Delete(&models.PushSubscription{}, "id = ?", sub.ID).Error; delErr != nil {
				report.Err = multierr.Append(report.Err, apperrors.Push("prune subscription", delErr))
				continue
			}
			report.Pruned++
		default:
			report.Failed++
			monitoring.RecordPushDelivery("failed")
			report.Err = multierr.Append(report.Err, apperrors.Push("deliver", err))
		}
	}
	return report
}

// deliver runs one push under the sink's timeout and converts panics in the pusher into errors.
func (s *Sink) deliver(ctx context.Context, sub models.PushSubscription, data []byte) (err error) {
	pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("push: panic: %v", rec)
		}
	}()

	return s.pusher.Push(pushCtx, Subscription{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
	}, data)
}
