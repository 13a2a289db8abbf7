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
	"github.com/trailventures/tours-api/pkg/events"
	"github.com/trailventures/tours-api/pkg/logger"
)

// ReviewsHandler manages tour reviews. Writing is for customers; editing is
// for the author or an admin.
type ReviewsHandler struct {
	Reviews postgres.ReviewsRepo
	Bus     events.Publisher
}

func NewReviewsHandler(reviews postgres.ReviewsRepo, bus events.Publisher) *ReviewsHandler {
	return &ReviewsHandler{Reviews: reviews, Bus: bus}
}

func (h *ReviewsHandler) ListByTour(w http.ResponseWriter, r *http.Request) {
	tourID, err := strconv.ParseInt(chi.URLParam(r, "tourID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid tour id")
		return
	}
	limit, offset := pageWindow(r)

	reviews, err := h.Reviews.ListByTour(r.Context(), tourID, limit, offset)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, reviews)
}

func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		response.Error(w, r, domain.ErrUnauthenticated)
		return
	}
	tourID, err := strconv.ParseInt(chi.URLParam(r, "tourID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid tour id")
		return
	}

	var req domain.CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(w, r, domain.ValidationError(err.Error()))
		return
	}

	review, err := h.Reviews.Create(r.Context(), tourID, user.ID, &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if err := h.Bus.Publish(r.Context(), events.ReviewWritten, events.ReviewWrittenEvent{
		ReviewID: review.ID,
		TourID:   review.TourID,
		UserID:   review.UserID,
		Rating:   review.Rating,
	}); err != nil {
		logger.ErrorContext(r.Context(), "publishing review event failed", "error", err)
	}

	response.JSON(w, http.StatusCreated, review)
}

// loadOwned fetches a review and checks the caller may modify it.
func (h *ReviewsHandler) loadOwned(r *http.Request) (*domain.Review, error) {
	user := middleware.CurrentUser(r)
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, domain.ValidationError("invalid review id")
	}

	review, err := h.Reviews.FindByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, domain.ErrNotFound
	}
	if review.UserID != user.ID && user.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return review, nil
}

func (h *ReviewsHandler) Update(w http.ResponseWriter, r *http.Request) {
	review, err := h.loadOwned(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req domain.UpdateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(w, r, domain.ValidationError(err.Error()))
		return
	}

	updated, err := h.Reviews.Update(r.Context(), review.ID, &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *ReviewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	review, err := h.loadOwned(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if _, err := h.Reviews.Delete(r.Context(), review.ID); err != nil {
		response.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
