package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trailventures/tours-api/internal/auth"
	"github.com/trailventures/tours-api/internal/http/handlers"
	"github.com/trailventures/tours-api/internal/http/middleware"
	"github.com/trailventures/tours-api/internal/http/response"
	"github.com/trailventures/tours-api/internal/platform/mailer"
	"github.com/trailventures/tours-api/internal/platform/payments"
	"github.com/trailventures/tours-api/internal/platform/token"
	"github.com/trailventures/tours-api/internal/repo/postgres"
	"github.com/trailventures/tours-api/internal/repo/redisstore"
	"github.com/trailventures/tours-api/pkg/config"
	"github.com/trailventures/tours-api/pkg/database"
	"github.com/trailventures/tours-api/pkg/events"
	"github.com/trailventures/tours-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	response.SetDevMode(!cfg.IsProduction())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MinConns, cfg.Database.MaxConns, cfg.Database.MaxLifetime)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(cfg.Database.URL); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// NATS is optional infrastructure; without it events are dropped.
	var bus events.EventBus
	if natsBus, err := events.NewNATSEventBus(cfg.NATS.URL); err != nil {
		logger.Warn("nats unavailable, events disabled", "error", err)
		bus = events.NoopBus{}
	} else {
		bus = natsBus
		defer natsBus.Close()
	}

	usersRepo := postgres.NewUsersRepo(pool)
	toursRepo := postgres.NewToursRepo(pool)
	reviewsRepo := postgres.NewReviewsRepo(pool)
	bookingsRepo := postgres.NewBookingsRepo(pool)

	tokens := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	mail := buildMailer(cfg)
	authService := auth.NewService(usersRepo, tokens, mail, bus, cfg)

	stripeProvider := payments.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency, cfg.App.BaseURL)

	session := middleware.NewSession(tokens, usersRepo, cfg.Auth.SessionCookieName)
	authLimiter := middleware.NewRateLimiter(pool, middleware.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
		KeyFunc:  middleware.ClientIPKeyFunc,
	})

	deps := handlers.Deps{
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth.SessionCookieName, cfg.Auth.SessionTTL, cfg.IsProduction()),
		Users:          handlers.NewUsersHandler(usersRepo),
		Tours:          handlers.NewToursHandler(toursRepo),
		Reviews:        handlers.NewReviewsHandler(reviewsRepo, bus),
		Bookings:       handlers.NewBookingsHandler(bookingsRepo, toursRepo, stripeProvider, bus),
		Session:        session,
		AuthLimiter:    authLimiter.Middleware(),
		AllowedOrigins: cfg.App.CORSOrigins,
	}

	if store, err := redisstore.NewIdempotencyStore(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		logger.Warn("redis unavailable, idempotency replay disabled", "error", err)
	} else {
		defer store.Close()
		deps.Idempotency = middleware.Idempotency(store)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildMailer picks the outbound email transport: log-only in dev mode,
// MailerSend when an API key is configured, plain SMTP otherwise.
func buildMailer(cfg *config.Config) mailer.Service {
	if cfg.Email.DevMode {
		return mailer.NewDevMailer()
	}
	if cfg.Email.MailerSendKey != "" {
		m, err := mailer.NewMailerSendMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
		if err == nil {
			return m
		}
		logger.Warn("mailersend init failed, falling back to smtp", "error", err)
	}
	return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
}
