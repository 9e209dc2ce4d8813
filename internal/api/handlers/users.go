package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"meteoalert/internal/alerts"
	"meteoalert/internal/core"
	"meteoalert/internal/types"
)

// --- Service Interfaces ---

// ProfileRepo is the subset of the user repository the profile routes need.
type ProfileRepo interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
	UpdateProfile(ctx context.Context, id string, p types.ProfileUpdate) (*types.User, error)
	Delete(ctx context.Context, id string) error
}

// PreferencesService reads and merges a user's alert preferences.
type PreferencesService interface {
	GetAlertPreferences(ctx context.Context, userID string) (types.AlertPreferences, error)
	UpdateAlertPreferences(ctx context.Context, userID string, patch alerts.PreferencesPatch) (types.AlertPreferences, error)
}

// --- Handler ---

// UserHandler serves /v1/users for the authenticated user.
type UserHandler struct {
	userRepo    ProfileRepo
	preferences PreferencesService
	validator   *core.Validator
	logger      *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(repo ProfileRepo, prefs PreferencesService, v *core.Validator, l *slog.Logger) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator()
	}
	return &UserHandler{
		userRepo:    repo,
		preferences: prefs,
		validator:   v,
		logger:      l,
	}
}

// RegisterRoutes mounts the user routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)
	r.Delete("/profile", h.DeleteProfile)
	r.Get("/alert-preferences", h.GetAlertPreferences)
	r.Put("/alert-preferences", h.UpdateAlertPreferences)
}

// GetProfile handles GET /v1/users/profile.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, user)
}

// UpdateProfile handles PUT /v1/users/profile. Every editable field is
// replaced; the email and credentials are not editable here.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req types.ProfileUpdate
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Location = strings.TrimSpace(req.Location)

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := h.userRepo.UpdateProfile(r.Context(), actor.ID, req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "profile updated", "user_id", actor.ID)
	core.Data(w, r, http.StatusOK, user)
}

// DeleteProfile handles DELETE /v1/users/profile.
func (h *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.userRepo.Delete(r.Context(), actor.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "account deleted", "user_id", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}

// GetAlertPreferences handles GET /v1/users/alert-preferences. Users who
// never saved preferences get the defaults.
func (h *UserHandler) GetAlertPreferences(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	prefs, err := h.preferences.GetAlertPreferences(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, prefs)
}

// UpdateAlertPreferences handles PUT /v1/users/alert-preferences. Absent
// fields keep their stored value.
func (h *UserHandler) UpdateAlertPreferences(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var patch alerts.PreferencesPatch
	if err := core.DecodeJSON(w, r, &patch); err != nil {
		core.Error(w, r, err)
		return
	}

	prefs, err := h.preferences.UpdateAlertPreferences(r.Context(), actor.ID, patch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, prefs)
}
