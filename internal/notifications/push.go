package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrEndpointGone reports that the push service permanently rejected an endpoint.
// The sink deletes the matching subscription when it sees this error.
var ErrEndpointGone = errors.New("push: endpoint gone")

const (
	defaultPushTimeout = 5 * time.Second
	defaultPushTTL     = 24 * 60 * 60
)

// Subscription identifies one push endpoint and its encryption keys.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Pusher delivers an encrypted payload to a push endpoint.
type Pusher interface {
	Push(ctx context.Context, sub Subscription, payload []byte) error
}

// WebPushConfig carries the VAPID credential pair and delivery options.
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
	Timeout    time.Duration
	HTTPClient webpush.HTTPClient
}

// Configured reports whether both halves of the VAPID credential pair are present.
func (c WebPushConfig) Configured() bool {
	return strings.TrimSpace(c.PublicKey) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// WebPusher sends Web Push messages signed with VAPID credentials.
type WebPusher struct {
	cfg WebPushConfig
}

// NewWebPusher returns a pusher, or nil when the credential pair is incomplete.
func NewWebPusher(cfg WebPushConfig) *WebPusher {
	if !cfg.Configured() {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPushTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPushTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebPusher{cfg: cfg}
}

// Push sends payload to sub. 404 and 410 responses map to ErrEndpointGone; every other
// non-2xx status is a transient failure.
func (p *WebPusher) Push(ctx context.Context, sub Subscription, payload []byte) error {
	if p == nil {
		return errors.New("push: pusher not configured")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      p.cfg.HTTPClient,
		Subscriber:      p.cfg.Subject,
		TTL:             p.cfg.TTL,
		Urgency:         webpush.UrgencyNormal,
		VAPIDPublicKey:  p.cfg.PublicKey,
		VAPIDPrivateKey: p.cfg.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return ErrEndpointGone
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("push: unexpected status %d", resp.StatusCode)
	}
	return nil
}
