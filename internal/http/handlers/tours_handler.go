package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/response"
	"github.com/trailventures/tours-api/internal/repo/postgres"
	"github.com/trailventures/tours-api/pkg/logger"
)

// ToursHandler serves the tour catalog.
type ToursHandler struct {
	Tours postgres.ToursRepo
}

func NewToursHandler(tours postgres.ToursRepo) *ToursHandler {
	return &ToursHandler{Tours: tours}
}

// pageWindow reads page/limit query params into a limit/offset pair.
func pageWindow(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func (h *ToursHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := postgres.ParseListOptions(r.URL.Query(), postgres.TourListColumns)
	if err != nil {
		response.Error(w, r, domain.ValidationError(err.Error()))
		return
	}

	tours, err := h.Tours.List(r.Context(), opts)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, tours)
}

// TopCheap is a canned listing: the five best-rated tours, cheapest first
// among equals.
func (h *ToursHandler) TopCheap(w http.ResponseWriter, r *http.Request) {
	opts, err := postgres.ParseListOptions(url.Values{
		"sort":  {"-ratings_average,price_cents"},
		"limit": {"5"},
	}, postgres.TourListColumns)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	tours, err := h.Tours.List(r.Context(), opts)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, tours)
}

// Stats reports the per-difficulty aggregate breakdown of the catalog.
func (h *ToursHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Tours.Stats(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

// MonthlyPlan lists departures per month for a year, for staff scheduling.
func (h *ToursHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 2200 {
		response.BadRequest(w, "invalid year")
		return
	}

	plan, err := h.Tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, plan)
}

func (h *ToursHandler) Get(w http.ResponseWriter, r *http.Request) {
	tour, err := h.lookup(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if tour == nil {
		response.Error(w, r, domain.ErrNotFound)
		return
	}
	response.JSON(w, http.StatusOK, tour)
}

// lookup resolves the tour route param as a numeric id first, then a slug.
func (h *ToursHandler) lookup(r *http.Request) (*domain.Tour, error) {
	key := chi.URLParam(r, "tourID")
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return h.Tours.FindByID(r.Context(), id)
	}
	return h.Tours.FindBySlug(r.Context(), key)
}

func (h *ToursHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		response.Error(w, r, domain.ValidationError(err.Error()))
		return
	}

	tour, err := h.Tours.Create(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	logger.InfoContext(r.Context(), "tour created", "tour_id", tour.ID, "slug", tour.Slug)
	response.JSON(w, http.StatusCreated, tour)
}

func (h *ToursHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tourID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid tour id")
		return
	}

	var req domain.UpdateTourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(w, r, domain.ValidationError(err.Error()))
		return
	}

	tour, err := h.Tours.Update(r.Context(), id, &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if tour == nil {
		response.Error(w, r, domain.ErrNotFound)
		return
	}
	response.JSON(w, http.StatusOK, tour)
}

func (h *ToursHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tourID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid tour id")
		return
	}

	deleted, err := h.Tours.Delete(r.Context(), id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if !deleted {
		response.Error(w, r, domain.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
