// Package push decides whether a weather snapshot becomes a Web Push
// notification and reconciles the user's subscription with the outcome.
package push

import (
	"context"
	"errors"
	"log/slog"

	"meteoalert/internal/external"
	"meteoalert/internal/types"
)

// Notification content.
const (
	Title        = "⚠️ Allerta Meteo"
	Icon         = "/weather-icon.png"
	Badge        = "/badge-icon.png"
	DashboardURL = "/dashboard"
)

// ReasonSubscriptionGone marks a delivery the push service rejected because
// the subscription no longer exists.
const ReasonSubscriptionGone = "subscription-gone"

// Dispatch outcomes, as recorded in metrics.
const (
	OutcomeSkipped = "skipped"
	OutcomeSent    = "sent"
	OutcomeGone    = "gone"
	OutcomeFailed  = "failed"
)

// Notifier delivers one message to one subscription.
type Notifier interface {
	Send(ctx context.Context, sub *types.PushSubscription, msg external.PushMessage) error
}

// SubscriptionStore clears a subscription the push service reported gone.
type SubscriptionStore interface {
	ClearPushSubscription(ctx context.Context, userID string) error
}

// Metrics records dispatch outcomes.
type Metrics interface {
	RecordDispatch(outcome string)
}

// Result is informational and never surfaces to API callers as an error.
type Result struct {
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher sends alert notifications.
type Dispatcher struct {
	notifier Notifier
	store    SubscriptionStore
	metrics  Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger falls back to slog.Default.
func NewDispatcher(notifier Notifier, store SubscriptionStore, metrics Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: notifier, store: store, metrics: metrics, logger: logger}
}

// Message builds the notification for an alerting snapshot.
func Message(snapshot *types.WeatherSnapshot) external.PushMessage {
	body := ""
	if snapshot.AlertMessage != nil {
		body = *snapshot.AlertMessage
	}
	return external.PushMessage{
		Title: Title,
		Body:  body,
		Icon:  Icon,
		Badge: Badge,
		Data: map[string]any{
			"city": snapshot.LocationName,
			"url":  DashboardURL,
		},
	}
}

// Dispatch notifies user when snapshot carries an alert and the user has a
// subscription. A gone subscription is cleared from the store; any other
// failure leaves it untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot *types.WeatherSnapshot, user *types.User) Result {
	if snapshot == nil || user == nil || !snapshot.HasAlert || !user.HasPushSubscription() {
		d.record(OutcomeSkipped)
		return Result{}
	}

	log := d.logger.With("user_id", user.ID, "city", snapshot.LocationName)

	err := d.notifier.Send(ctx, user.PushSubscription, Message(snapshot))
	switch {
	case err == nil:
		d.record(OutcomeSent)
		log.InfoContext(ctx, "push notification sent")
		return Result{Attempted: true, Success: true}

	case errors.Is(err, external.ErrSubscriptionGone):
		d.record(OutcomeGone)
		log.InfoContext(ctx, "push subscription gone, clearing")
		if clearErr := d.store.ClearPushSubscription(ctx, user.ID); clearErr != nil {
			log.ErrorContext(ctx, "failed to clear push subscription", "error", clearErr)
		}
		return Result{Attempted: true, Reason: ReasonSubscriptionGone}

	default:
		d.record(OutcomeFailed)
		log.WarnContext(ctx, "push notification failed", "error", err)
		return Result{Attempted: true, Error: err.Error()}
	}
}

func (d *Dispatcher) record(outcome string) {
	if d.metrics != nil {
		d.metrics.RecordDispatch(outcome)
	}
}
