package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/middleware"
	"github.com/trailventures/tours-api/internal/platform/token"
)

type analyticsToursRepo struct {
	stubToursRepo
	stats    []domain.TourStats
	plan     []domain.MonthlyPlanEntry
	planYear int
}

func (s *analyticsToursRepo) Stats(context.Context) ([]domain.TourStats, error) {
	return s.stats, nil
}

func (s *analyticsToursRepo) MonthlyPlan(_ context.Context, year int) ([]domain.MonthlyPlanEntry, error) {
	s.planYear = year
	return s.plan, nil
}

func TestTourStatsEndpoint(t *testing.T) {
	repo := &analyticsToursRepo{
		stats: []domain.TourStats{
			{Difficulty: domain.DifficultyEasy, TourCount: 3, AvgRating: 4.7, AvgPriceCents: 99700},
			{Difficulty: domain.DifficultyDifficult, TourCount: 1, AvgRating: 4.9, AvgPriceCents: 299700},
		},
	}
	h := NewToursHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/stats", nil)
	rec := httptest.NewRecorder()
	h.Stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []domain.TourStats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Difficulty != domain.DifficultyEasy || got[0].TourCount != 3 {
		t.Errorf("stats = %+v", got)
	}
}

func TestMonthlyPlanRequiresStaffRole(t *testing.T) {
	repo := &analyticsToursRepo{
		plan: []domain.MonthlyPlanEntry{
			{Month: 7, TourCount: 2, Tours: []string{"The Forest Hiker", "The Sea Explorer"}},
		},
	}
	tokens := token.NewService("router-test-secret", time.Hour)
	users := &stubUsersRepo{user: &domain.User{ID: 1, Role: domain.RoleUser, Active: true}}

	router := NewRouter(Deps{
		Auth:     newAuthHandler(&mockAuthService{}),
		Users:    NewUsersHandler(users),
		Tours:    NewToursHandler(repo),
		Reviews:  NewReviewsHandler(nil, nil),
		Bookings: NewBookingsHandler(&stubBookingsRepo{}, repo, nil, nil),
		Session:  middleware.NewSession(tokens, users, "session"),
	})

	tok, _ := tokens.Issue(1)
	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/monthly-plan/2026", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// Plain customers are shut out.
	if rec := get(); rec.Code != http.StatusForbidden {
		t.Fatalf("role user: status = %d, want 403", rec.Code)
	}

	// Guides and up get the schedule.
	users.user.Role = domain.RoleGuide
	rec := get()
	if rec.Code != http.StatusOK {
		t.Fatalf("role guide: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if repo.planYear != 2026 {
		t.Errorf("queried year = %d, want 2026", repo.planYear)
	}
	var got []domain.MonthlyPlanEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Month != 7 || got[0].TourCount != 2 {
		t.Errorf("plan = %+v", got)
	}
}

func TestMonthlyPlanRejectsBadYear(t *testing.T) {
	h := NewToursHandler(&analyticsToursRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/monthly-plan/soon", nil)
	rec := httptest.NewRecorder()
	h.MonthlyPlan(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
