package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meteoalert/internal/core"
	"meteoalert/internal/security"
	"meteoalert/internal/types"
)

// SubscribeRequest is the request body for POST /v1/push/subscribe.
type SubscribeRequest struct {
	Subscription *types.PushSubscription `json:"subscription" validate:"required"`
}

// VAPIDKeyResponse is returned by GET /v1/push/vapid-public-key.
type VAPIDKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// SubscriptionRepo stores the caller's browser subscription.
type SubscriptionRepo interface {
	SetPushSubscription(ctx context.Context, id string, sub *types.PushSubscription) error
	ClearPushSubscription(ctx context.Context, id string) error
}

// KeyProvider exposes the VAPID application server key.
type KeyProvider interface {
	PublicKey() string
}

// PushHandler serves /v1/push.
type PushHandler struct {
	subscriptions SubscriptionRepo
	keys          KeyProvider
	validator     *core.Validator
	logger        *slog.Logger
}

// NewPushHandler creates a PushHandler.
func NewPushHandler(repo SubscriptionRepo, keys KeyProvider, v *core.Validator, l *slog.Logger) *PushHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator()
	}
	return &PushHandler{
		subscriptions: repo,
		keys:          keys,
		validator:     v,
		logger:        l,
	}
}

// RegisterRoutes mounts the push routes. The key route is public.
func (h *PushHandler) RegisterRoutes(r chi.Router) {
	r.Get("/vapid-public-key", h.VAPIDPublicKey)
	r.Post("/subscribe", h.Subscribe)
	r.Post("/unsubscribe", h.Unsubscribe)
}

// VAPIDPublicKey handles GET /v1/push/vapid-public-key. An unconfigured key
// is returned as "" so the client can tell push is unavailable.
func (h *PushHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	key := ""
	if h.keys != nil {
		key = h.keys.PublicKey()
	}
	core.Data(w, r, http.StatusOK, VAPIDKeyResponse{PublicKey: key})
}

// Subscribe handles POST /v1/push/subscribe, replacing any previous
// subscription of the caller.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req SubscribeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, subscriptionError(err))
		return
	}
	if err := security.ValidateEndpoint(req.Subscription.Endpoint); err != nil {
		core.Error(w, r, types.NewValidationError(types.ErrCodeValidationSubscription, "invalid push subscription",
			[]types.FieldError{{Field: "subscription.endpoint", Reason: "must be a public https URL"}}))
		return
	}

	if err := h.subscriptions.SetPushSubscription(r.Context(), actor.ID, req.Subscription); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "push subscription saved", "user_id", actor.ID)
	core.Data(w, r, http.StatusOK, map[string]bool{"subscribed": true})
}

// Unsubscribe handles POST /v1/push/unsubscribe.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.subscriptions.ClearPushSubscription(r.Context(), actor.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "push subscription removed", "user_id", actor.ID)
	core.Data(w, r, http.StatusOK, map[string]bool{"subscribed": false})
}

// subscriptionError re-codes a validation failure so clients can tell a bad
// subscription from other bad input. Field details are kept.
func subscriptionError(err error) error {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationSubscription, "invalid push subscription", nil, appErr.Details)
}
