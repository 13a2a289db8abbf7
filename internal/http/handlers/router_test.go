package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/middleware"
	"github.com/trailventures/tours-api/internal/platform/token"
	"github.com/trailventures/tours-api/internal/repo/postgres"
)

// ---------- Stubs ----------

type stubUsersRepo struct {
	user *domain.User
}

func (s *stubUsersRepo) Create(context.Context, string, string, string) (*domain.User, error) {
	return nil, nil
}
func (s *stubUsersRepo) FindByID(context.Context, int64) (*domain.User, error) {
	return s.user, nil
}
func (s *stubUsersRepo) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, nil
}
func (s *stubUsersRepo) SetPassword(context.Context, int64, string, time.Time) error { return nil }
func (s *stubUsersRepo) SetResetToken(context.Context, int64, string, time.Time) error {
	return nil
}
func (s *stubUsersRepo) ClearResetToken(context.Context, int64) error { return nil }
func (s *stubUsersRepo) ConsumeResetToken(context.Context, string, string, time.Time) (*domain.User, error) {
	return nil, nil
}
func (s *stubUsersRepo) UpdateProfile(context.Context, int64, *domain.UpdateMeRequest) (*domain.User, error) {
	return nil, nil
}
func (s *stubUsersRepo) AdminUpdate(context.Context, int64, *domain.AdminUpdateUserRequest) (*domain.User, error) {
	return nil, nil
}
func (s *stubUsersRepo) Deactivate(context.Context, int64) error { return nil }
func (s *stubUsersRepo) Delete(context.Context, int64) error     { return nil }
func (s *stubUsersRepo) List(context.Context, int, int) ([]domain.User, error) {
	return nil, nil
}

type stubToursRepo struct {
	tour *domain.Tour
}

func (s *stubToursRepo) Create(context.Context, *domain.CreateTourRequest) (*domain.Tour, error) {
	return nil, nil
}
func (s *stubToursRepo) FindByID(context.Context, int64) (*domain.Tour, error) {
	return s.tour, nil
}
func (s *stubToursRepo) FindBySlug(context.Context, string) (*domain.Tour, error) {
	return nil, nil
}
func (s *stubToursRepo) Update(context.Context, int64, *domain.UpdateTourRequest) (*domain.Tour, error) {
	return nil, nil
}
func (s *stubToursRepo) Delete(context.Context, int64) (bool, error) { return false, nil }
func (s *stubToursRepo) List(context.Context, *postgres.ListOptions) ([]domain.Tour, error) {
	return nil, nil
}
func (s *stubToursRepo) Stats(context.Context) ([]domain.TourStats, error) { return nil, nil }
func (s *stubToursRepo) MonthlyPlan(context.Context, int) ([]domain.MonthlyPlanEntry, error) {
	return nil, nil
}

type stubBookingsRepo struct {
	created int
}

func (s *stubBookingsRepo) Create(_ context.Context, tourID, userID, priceCents int64) (*domain.Booking, error) {
	s.created++
	return &domain.Booking{ID: int64(s.created), TourID: tourID, UserID: userID, PriceCents: priceCents}, nil
}
func (s *stubBookingsRepo) FindByID(context.Context, int64) (*domain.Booking, error) {
	return nil, nil
}
func (s *stubBookingsRepo) ListByUser(context.Context, int64, int, int) ([]domain.Booking, error) {
	return nil, nil
}
func (s *stubBookingsRepo) List(context.Context, int, int) ([]domain.Booking, error) {
	return nil, nil
}
func (s *stubBookingsRepo) Delete(context.Context, int64) (bool, error) { return false, nil }

type memStore struct {
	values map[string]string
}

func (s *memStore) Get(_ context.Context, key string) (string, error) { return s.values[key], nil }
func (s *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.values[key] = value
	return nil
}

// ---------- Tests ----------

func TestRouterNeverReplaysLoginResponses(t *testing.T) {
	loginCalls := 0
	svc := &mockAuthService{
		loginFn: func(*domain.LoginRequest) (*domain.User, string, error) {
			loginCalls++
			return &domain.User{ID: 1, Role: domain.RoleUser, Active: true},
				fmt.Sprintf("token-%d", loginCalls), nil
		},
	}
	tokens := token.NewService("router-test-secret", time.Hour)

	router := NewRouter(Deps{
		Auth:        newAuthHandler(svc),
		Users:       NewUsersHandler(&stubUsersRepo{}),
		Tours:       NewToursHandler(&stubToursRepo{}),
		Reviews:     NewReviewsHandler(nil, nil),
		Bookings:    NewBookingsHandler(&stubBookingsRepo{}, &stubToursRepo{}, nil, nil),
		Session:     middleware.NewSession(tokens, &stubUsersRepo{}, "session"),
		Idempotency: middleware.Idempotency(&memStore{values: make(map[string]string)}),
	})

	var tokensSeen []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"ada@example.com","password":"password123"}`))
		req.Header.Set("Idempotency-Key", "same-key")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("login %d: status = %d, body %s", i, rec.Code, rec.Body.String())
		}
		tokensSeen = append(tokensSeen, rec.Body.String())
	}

	if loginCalls != 2 {
		t.Fatalf("login handler ran %d times; an Idempotency-Key must not cache sessions", loginCalls)
	}
	if tokensSeen[0] == tokensSeen[1] {
		t.Error("two logins returned the same response; session tokens were replayed")
	}
}

func TestRouterReplaysBookingCreation(t *testing.T) {
	adminRepo := &stubUsersRepo{user: &domain.User{ID: 1, Role: domain.RoleAdmin, Active: true}}
	bookings := &stubBookingsRepo{}
	tokens := token.NewService("router-test-secret", time.Hour)

	router := NewRouter(Deps{
		Auth:        newAuthHandler(&mockAuthService{}),
		Users:       NewUsersHandler(adminRepo),
		Tours:       NewToursHandler(&stubToursRepo{}),
		Reviews:     NewReviewsHandler(nil, nil),
		Bookings:    NewBookingsHandler(bookings, &stubToursRepo{tour: &domain.Tour{ID: 5}}, nil, nil),
		Session:     middleware.NewSession(tokens, adminRepo, "session"),
		Idempotency: middleware.Idempotency(&memStore{values: make(map[string]string)}),
	})

	adminToken, err := tokens.Issue(1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var codes []int
	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings",
			strings.NewReader(`{"tour_id":5,"user_id":2,"price_cents":100000}`))
		req.Header.Set("Authorization", "Bearer "+adminToken)
		req.Header.Set("Idempotency-Key", "booking-once")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}

	if bookings.created != 1 {
		t.Fatalf("booking created %d times, want 1", bookings.created)
	}
	if codes[1] != codes[0] || codes[1] != http.StatusCreated {
		t.Errorf("replay status = %d, original = %d, want both 201", codes[1], codes[0])
	}
	if bodies[1] != bodies[0] {
		t.Errorf("replay body %q differs from original %q", bodies[1], bodies[0])
	}
}
