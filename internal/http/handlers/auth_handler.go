package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trailventures/tours-api/internal/auth"
	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/middleware"
	"github.com/trailventures/tours-api/internal/http/response"
	"github.com/trailventures/tours-api/pkg/logger"
)

// AuthHandler exposes signup, login and the password lifecycle.
type AuthHandler struct {
	Auth       auth.Service
	CookieName string
	CookieTTL  time.Duration
	Secure     bool
}

func NewAuthHandler(svc auth.Service, cookieName string, cookieTTL time.Duration, secure bool) *AuthHandler {
	return &AuthHandler{Auth: svc, CookieName: cookieName, CookieTTL: cookieTTL, Secure: secure}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// sendSession sets the session cookie and returns the token in the body,
// so browser and API clients can both pick their channel.
func (h *AuthHandler) sendSession(w http.ResponseWriter, r *http.Request, status int, user *domain.User, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.CookieTTL),
		HttpOnly: true,
		Secure:   h.Secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	response.JSON(w, status, sessionResponse{Token: token, User: user})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	user, token, err := h.Auth.Signup(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	logger.InfoContext(r.Context(), "user signed up", "user_id", user.ID)
	h.sendSession(w, r, http.StatusCreated, user, token)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	user, token, err := h.Auth.Login(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	h.sendSession(w, r, http.StatusOK, user, token)
}

// Logout overwrites the session cookie with a short-lived dummy value.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(time.Second),
		HttpOnly: true,
		Secure:   h.Secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	_, err := h.Auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// Unknown emails get the same answer as known ones, so the
		// endpoint cannot be used to probe which accounts exist.
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "if that account exists, a reset link is on its way",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	user, token, err := h.Auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	logger.InfoContext(r.Context(), "password reset completed", "user_id", user.ID)
	h.sendSession(w, r, http.StatusOK, user, token)
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		response.Error(w, r, domain.ErrUnauthenticated)
		return
	}

	var req domain.UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	updated, token, err := h.Auth.UpdatePassword(r.Context(), user.ID, &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	h.sendSession(w, r, http.StatusOK, updated, token)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		response.Error(w, r, domain.ErrUnauthenticated)
		return
	}
	response.JSON(w, http.StatusOK, user)
}
