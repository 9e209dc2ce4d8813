package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"meteoalert/internal/alerts"
	"meteoalert/internal/core"
	"meteoalert/internal/types"
)

// WeatherService produces evaluated snapshots.
type WeatherService interface {
	GetCurrentWeatherForUser(ctx context.Context, userID string) (*types.WeatherSnapshot, error)
	GetWeatherForLocation(ctx context.Context, location string) (*types.WeatherSnapshot, error)
	TestAlertForUser(ctx context.Context, userID string, kind alerts.TestAlertKind) (*types.WeatherSnapshot, error)
}

// WeatherHandler serves /v1/weather.
type WeatherHandler struct {
	weather WeatherService
}

// NewWeatherHandler creates a WeatherHandler.
func NewWeatherHandler(svc WeatherService) *WeatherHandler {
	return &WeatherHandler{weather: svc}
}

// RegisterRoutes mounts the weather routes.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/current", h.Current)
	r.Get("/city/{city}", h.City)
	r.Get("/test-alert/{type}", h.TestAlert)
}

// Current handles GET /v1/weather/current for the caller's stored location.
// A triggered alert is pushed to the caller as a side effect.
func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snapshot, err := h.weather.GetCurrentWeatherForUser(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, snapshot)
}

// City handles GET /v1/weather/city/{city}, evaluated against the default
// preferences.
func (h *WeatherHandler) City(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.weather.GetWeatherForLocation(r.Context(), chi.URLParam(r, "city"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, snapshot)
}

// TestAlert handles GET /v1/weather/test-alert/{type}. Unknown types produce
// the generic scenario.
func (h *WeatherHandler) TestAlert(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ActorFromRequest(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	kind := alerts.TestAlertKind(strings.ToLower(chi.URLParam(r, "type")))
	snapshot, err := h.weather.TestAlertForUser(r.Context(), actor.ID, kind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, snapshot)
}
