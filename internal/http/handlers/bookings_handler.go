package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/middleware"
	"github.com/trailventures/tours-api/internal/http/response"
	"github.com/trailventures/tours-api/internal/platform/payments"
	"github.com/trailventures/tours-api/internal/repo/postgres"
	"github.com/trailventures/tours-api/pkg/events"
	"github.com/trailventures/tours-api/pkg/logger"
)

// Stripe caps webhook payloads at 64KB; anything bigger is not ours.
const maxWebhookBody = 65536

// BookingsHandler sells tours: checkout session creation, the payment
// webhook that records bookings, and booking listings.
type BookingsHandler struct {
	Bookings postgres.BookingsRepo
	Tours    postgres.ToursRepo
	Payments payments.Provider
	Bus      events.Publisher
}

func NewBookingsHandler(bookings postgres.BookingsRepo, tours postgres.ToursRepo, provider payments.Provider, bus events.Publisher) *BookingsHandler {
	return &BookingsHandler{Bookings: bookings, Tours: tours, Payments: provider, Bus: bus}
}

func (h *BookingsHandler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
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

	tour, err := h.Tours.FindByID(r.Context(), tourID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if tour == nil {
		response.Error(w, r, domain.ErrNotFound)
		return
	}

	session, err := h.Payments.CreateCheckoutSession(r.Context(), tour, user)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, session)
}

// StripeWebhook records a booking when a checkout session completes. The
// booking is written here, not at checkout time, so only paid-for seats
// become bookings.
func (h *BookingsHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable payload")
		return
	}

	checkout, err := h.Payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.WarnContext(r.Context(), "rejected stripe webhook", "error", err)
		response.BadRequest(w, "invalid webhook")
		return
	}
	if checkout == nil {
		// An event type we don't act on; acknowledge so Stripe stops retrying.
		response.JSON(w, http.StatusOK, map[string]string{"received": "true"})
		return
	}

	booking, err := h.Bookings.Create(r.Context(), checkout.TourID, checkout.UserID, checkout.AmountCents)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if err := h.Bus.Publish(r.Context(), events.BookingCreated, events.BookingCreatedEvent{
		BookingID:  booking.ID,
		TourID:     booking.TourID,
		UserID:     booking.UserID,
		PriceCents: booking.PriceCents,
		CreatedAt:  booking.CreatedAt,
	}); err != nil {
		logger.ErrorContext(r.Context(), "publishing booking event failed", "error", err)
	}

	logger.InfoContext(r.Context(), "booking recorded", "booking_id", booking.ID, "tour_id", booking.TourID)
	response.JSON(w, http.StatusOK, map[string]string{"received": "true"})
}

func (h *BookingsHandler) MyBookings(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		response.Error(w, r, domain.ErrUnauthenticated)
		return
	}
	limit, offset := pageWindow(r)

	bookings, err := h.Bookings.ListByUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, bookings)
}

// Create records a booking by hand, for sales made outside the checkout
// flow. Admin only; paid checkouts arrive through the webhook instead.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TourID     int64 `json:"tour_id"`
		UserID     int64 `json:"user_id"`
		PriceCents int64 `json:"price_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.TourID <= 0 || req.UserID <= 0 || req.PriceCents < 0 {
		response.BadRequest(w, "tour_id, user_id and price_cents are required")
		return
	}

	tour, err := h.Tours.FindByID(r.Context(), req.TourID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if tour == nil {
		response.Error(w, r, domain.ErrNotFound)
		return
	}

	booking, err := h.Bookings.Create(r.Context(), req.TourID, req.UserID, req.PriceCents)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, booking)
}

func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageWindow(r)

	bookings, err := h.Bookings.List(r.Context(), limit, offset)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, bookings)
}

func (h *BookingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	deleted, err := h.Bookings.Delete(r.Context(), id)
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
