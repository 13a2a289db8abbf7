package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/middleware"
	"github.com/trailventures/tours-api/internal/http/response"
	"github.com/trailventures/tours-api/internal/repo/postgres"
	"github.com/trailventures/tours-api/pkg/logger"
)

// UsersHandler covers self-service profile endpoints and admin user management.
type UsersHandler struct {
	Users postgres.UsersRepo
}

func NewUsersHandler(users postgres.UsersRepo) *UsersHandler {
	return &UsersHandler{Users: users}
}

func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		response.Error(w, r, domain.ErrUnauthenticated)
		return
	}

	var req domain.UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(w, r, domain.ValidationError(err.Error()))
		return
	}

	updated, err := h.Users.UpdateProfile(r.Context(), user.ID, &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

// DeleteMe deactivates the account rather than erasing it.
func (h *UsersHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		response.Error(w, r, domain.ErrUnauthenticated)
		return
	}

	if err := h.Users.Deactivate(r.Context(), user.ID); err != nil {
		response.Error(w, r, err)
		return
	}

	logger.InfoContext(r.Context(), "account deactivated", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageWindow(r)

	users, err := h.Users.List(r.Context(), limit, offset)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, users)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	user, err := h.Users.FindByID(r.Context(), id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if user == nil {
		response.Error(w, r, domain.ErrNotFound)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	var req domain.AdminUpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(w, r, domain.ValidationError(err.Error()))
		return
	}

	user, err := h.Users.AdminUpdate(r.Context(), id, &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if user == nil {
		response.Error(w, r, domain.ErrNotFound)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	if err := h.Users.Delete(r.Context(), id); err != nil {
		response.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
