package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"meteoalert/internal/types"
)

// ErrSubscriptionGone means the push service no longer accepts messages for
// a subscription (HTTP 404 or 410). The subscription should be discarded.
var ErrSubscriptionGone = errors.New("push subscription gone")

// PushMessage is the JSON document delivered to the service worker.
type PushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// VAPIDConfig identifies this server to push services.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey types.SecretString
	Subject    string
	TTL        time.Duration
}

// WebPushNotifier encrypts and delivers Web Push messages. HTTP goes through
// a BaseClient so delivery shares the breaker and retry policy.
type WebPushNotifier struct {
	client *BaseClient
	vapid  VAPIDConfig
}

// NewWebPushNotifier creates a notifier. The subject may be given with or
// without its mailto: scheme.
func NewWebPushNotifier(client *BaseClient, vapid VAPIDConfig) *WebPushNotifier {
	return &WebPushNotifier{client: client, vapid: vapid}
}

// PublicKey is the application server key browsers subscribe with.
func (n *WebPushNotifier) PublicKey() string {
	return n.vapid.PublicKey
}

// Send delivers msg to sub. It returns ErrSubscriptionGone for 404/410 and an
// upstream_push_unavailable AppError for any other failure.
func (n *WebPushNotifier) Send(ctx context.Context, sub *types.PushSubscription, msg PushMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push message", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload,
		&webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		},
		&webpush.Options{
			HTTPClient:      n.client,
			Subscriber:      strings.TrimPrefix(n.vapid.Subject, "mailto:"),
			VAPIDPublicKey:  n.vapid.PublicKey,
			VAPIDPrivateKey: n.vapid.PrivateKey.Unmask(),
			TTL:             int(n.vapid.TTL.Seconds()),
			Urgency:         webpush.UrgencyHigh,
		})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPush, "push delivery failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return types.NewAppError(types.ErrCodeUpstreamPush, fmt.Sprintf("push service returned %d", resp.StatusCode), nil)
	}
	return nil
}
