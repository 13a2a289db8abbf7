package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/middleware"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Auth     *AuthHandler
	Users    *UsersHandler
	Tours    *ToursHandler
	Reviews  *ReviewsHandler
	Bookings *BookingsHandler

	Session *middleware.Session

	// AuthLimiter throttles credential endpoints. Optional.
	AuthLimiter func(http.Handler) http.Handler
	// Idempotency caches replayed POSTs keyed by Idempotency-Key. Optional.
	Idempotency func(http.Handler) http.Handler

	AllowedOrigins []string
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	throttled := func(h http.HandlerFunc) http.Handler {
		if d.AuthLimiter == nil {
			return h
		}
		return d.AuthLimiter(h)
	}
	// Idempotency replay stays off the auth endpoints: a replayed login
	// would hand back a cached session token.
	replayed := func(h http.HandlerFunc) http.Handler {
		if d.Idempotency == nil {
			return h
		}
		return d.Idempotency(h)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Method(http.MethodPost, "/signup", throttled(d.Auth.Signup))
			r.Method(http.MethodPost, "/login", throttled(d.Auth.Login))
			r.Post("/logout", d.Auth.Logout)
			r.Method(http.MethodPost, "/forgot-password", throttled(d.Auth.ForgotPassword))
			r.Patch("/reset-password/{token}", d.Auth.ResetPassword)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(d.Session.Require)
			r.Get("/", d.Auth.Me)
			r.Patch("/", d.Users.UpdateMe)
			r.Delete("/", d.Users.DeleteMe)
			r.Patch("/password", d.Auth.UpdatePassword)
			r.Get("/bookings", d.Bookings.MyBookings)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(d.Session.Require, middleware.RequireRoles(domain.RoleAdmin))
			r.Get("/", d.Users.List)
			r.Get("/{id}", d.Users.Get)
			r.Patch("/{id}", d.Users.Update)
			r.Delete("/{id}", d.Users.Delete)
		})

		r.Route("/tours", func(r chi.Router) {
			r.Get("/", d.Tours.List)
			r.Get("/top-5-cheap", d.Tours.TopCheap)
			r.Get("/stats", d.Tours.Stats)
			r.With(d.Session.Require, middleware.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)).
				Get("/monthly-plan/{year}", d.Tours.MonthlyPlan)

			r.Group(func(r chi.Router) {
				r.Use(d.Session.Require, middleware.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide))
				r.Post("/", d.Tours.Create)
			})

			r.Route("/{tourID}", func(r chi.Router) {
				r.Get("/", d.Tours.Get)
				r.Get("/reviews", d.Reviews.ListByTour)

				r.Group(func(r chi.Router) {
					r.Use(d.Session.Require, middleware.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide))
					r.Patch("/", d.Tours.Update)
					r.Delete("/", d.Tours.Delete)
				})

				r.Group(func(r chi.Router) {
					r.Use(d.Session.Require)
					r.Get("/checkout-session", d.Bookings.CheckoutSession)
					r.With(middleware.RequireRoles(domain.RoleUser)).
						Post("/reviews", d.Reviews.Create)
				})
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(d.Session.Require)
			r.Patch("/{id}", d.Reviews.Update)
			r.Delete("/{id}", d.Reviews.Delete)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(d.Session.Require, middleware.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide))
			r.Get("/", d.Bookings.List)
			r.Method(http.MethodPost, "/", replayed(d.Bookings.Create))
			r.Delete("/{id}", d.Bookings.Delete)
		})

		r.Post("/webhooks/stripe", d.Bookings.StripeWebhook)
	})

	return r
}
