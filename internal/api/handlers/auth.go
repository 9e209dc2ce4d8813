// Package handlers contains the HTTP handler implementations for the
// MeteoAlert API.
//
// Each handler is responsible for:
//   - Decoding and validating HTTP requests
//   - Delegating to service-layer logic
//   - Encoding responses in the core envelope
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meteoalert/internal/auth"
	"meteoalert/internal/core"
)

// LoginRequest is the request body for POST /v1/auth/login. Presence is
// checked by the service so a missing field and a bad password share one
// response path.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService registers users and exchanges credentials for a session.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// AuthHandler serves the public /v1/auth routes.
type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc AuthService, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{authService: svc, logger: l}
}

// RegisterRoutes mounts the auth routes. Both are public; the auth
// middleware skips everything under /v1/auth/.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
}

// HandleRegister processes POST /v1/auth/register and returns 201 with the
// new session.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, err := h.authService.Register(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user registered", "user_id", session.User.ID)
	core.Data(w, r, http.StatusCreated, session)
}

// HandleLogin processes POST /v1/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, session)
}
