// Package handler provides HTTP handlers for the storefront API.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/novamart/nova-storefront/internal/middleware"
	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/service"
	"github.com/novamart/nova-storefront/pkg/logger"
)

// AuthHandler handles login, registration, and the current-user lookup.
type AuthHandler struct {
	users     *service.UserService
	jwtSecret string
	expiry    time.Duration
	logger    *logger.Logger
}

// NewAuthHandler creates a new auth handler issuing tokens valid for
// expiry.
func NewAuthHandler(users *service.UserService, jwtSecret string, expiry time.Duration, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		expiry:    expiry,
		logger:    log,
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithToken(w, user)
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.respondWithToken(w, user)
}

// Demo handles POST /api/auth/demo: a one-click login as the seeded
// demo account.
func (h *AuthHandler) Demo(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Authenticate(r.Context(), service.DemoEmail, "demo-pass")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "demo account unavailable")
		return
	}
	h.respondWithToken(w, user)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, user *model.User) {
	token, err := middleware.IssueToken(h.jwtSecret, *user, h.expiry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, model.AuthResponse{Token: token, User: *user})
}
