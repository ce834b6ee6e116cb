// Package push delivers web push notifications to browser endpoints using
// VAPID keys. The sender is nil-safe: when delivery keys are not configured,
// NewSender returns nil and the rest of the system runs in bookkeeping-only
// mode.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const (
	// HiddenTitle is U+2060 (word joiner). Notifications intentionally show
	// only the body text; the blank-looking title suppresses the redundant
	// app-name header. Do not replace with a visible title.
	HiddenTitle = "\u2060"

	// DefaultIcon is used when the snapshot carries no app icon preference.
	DefaultIcon = "/icons/white-icon-apple-touch.png"

	ttlSeconds = 60 * 60
)

// Subscription is the minimal browser push subscription: the endpoint URL
// plus the two required crypto keys.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Valid reports whether all required subscription fields are present.
func (s Subscription) Valid() bool {
	return s.Endpoint != "" && s.P256dh != "" && s.Auth != ""
}

// Payload is the wire shape the service worker consumes.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	URL   string `json:"url"`
}

// Marshal encodes the payload for delivery.
func (p Payload) Marshal() []byte {
	data, _ := json.Marshal(p)
	return data
}

// IsGone reports whether a delivery status means the endpoint is permanently
// invalid and the subscription should be dropped. Transient failures never
// trigger removal; only the transport's explicit gone signal does.
func IsGone(statusCode int) bool {
	return statusCode == http.StatusNotFound || statusCode == http.StatusGone
}

// Sender sends web push notifications signed with the household VAPID keys.
// Nil-safe: a nil Sender reports not ready and refuses sends.
type Sender struct {
	options webpush.Options
	logger  *slog.Logger
}

// NewSender creates a sender from VAPID configuration. Returns nil when
// either key is missing (push delivery disabled).
func NewSender(publicKey, privateKey, subject string, logger *slog.Logger) *Sender {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	return &Sender{
		options: webpush.Options{
			Subscriber:      subject,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             ttlSeconds,
			Urgency:         webpush.UrgencyHigh,
		},
		logger: logger,
	}
}

// Ready reports whether delivery credentials are configured.
func (s *Sender) Ready() bool {
	return s != nil
}

// Send delivers a payload to one subscription. Returns the push service's
// HTTP status code; statuses outside 2xx are returned alongside a nil error
// so callers can distinguish gone endpoints from transport failures.
func (s *Sender) Send(ctx context.Context, sub Subscription, payload []byte) (int, error) {
	if s == nil {
		return 0, nil
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	opts := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &opts)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// GenerateVAPIDKeys creates a new key pair for household setup.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
