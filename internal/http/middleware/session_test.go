package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/platform/token"
)

// ---------- Mocks ----------

type mockUsersRepo struct {
	users   map[int64]*domain.User
	findErr error
}

func (m *mockUsersRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, nil
	}
	return u, nil
}

func (m *mockUsersRepo) Create(context.Context, string, string, string) (*domain.User, error) {
	return nil, nil
}
func (m *mockUsersRepo) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, nil
}
func (m *mockUsersRepo) SetPassword(context.Context, int64, string, time.Time) error { return nil }
func (m *mockUsersRepo) SetResetToken(context.Context, int64, string, time.Time) error {
	return nil
}
func (m *mockUsersRepo) ClearResetToken(context.Context, int64) error { return nil }
func (m *mockUsersRepo) ConsumeResetToken(context.Context, string, string, time.Time) (*domain.User, error) {
	return nil, nil
}
func (m *mockUsersRepo) UpdateProfile(context.Context, int64, *domain.UpdateMeRequest) (*domain.User, error) {
	return nil, nil
}
func (m *mockUsersRepo) AdminUpdate(context.Context, int64, *domain.AdminUpdateUserRequest) (*domain.User, error) {
	return nil, nil
}
func (m *mockUsersRepo) Deactivate(context.Context, int64) error { return nil }
func (m *mockUsersRepo) Delete(context.Context, int64) error     { return nil }
func (m *mockUsersRepo) List(context.Context, int, int) ([]domain.User, error) {
	return nil, nil
}

// ---------- Helpers ----------

const cookieName = "session"

func newFixture(t *testing.T) (*Session, *mockUsersRepo, *token.Service) {
	t.Helper()
	repo := &mockUsersRepo{users: make(map[int64]*domain.User)}
	tokens := token.NewService("test-secret", time.Hour)
	return NewSession(tokens, repo, cookieName), repo, tokens
}

func addUser(repo *mockUsersRepo, id int64, role string) *domain.User {
	u := &domain.User{ID: id, Role: role, Email: "u@example.com", Active: true}
	repo.users[id] = u
	return u
}

// echoUser reports the authenticated user's id, or 0 for anonymous.
func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id int64
		if u := CurrentUser(r); u != nil {
			id = u.ID
		}
		json.NewEncoder(w).Encode(map[string]int64{"id": id})
	})
}

func doRequest(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func responseCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body.Code
}

func echoedID(t *testing.T, rec *httptest.ResponseRecorder) int64 {
	t.Helper()
	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body.ID
}

// ---------- Tests ----------

func TestRequireRejectsMissingToken(t *testing.T) {
	session, _, _ := newFixture(t)

	rec := doRequest(session.Require(echoUser()), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := responseCode(t, rec); code != "UNAUTHENTICATED" {
		t.Errorf("code = %q", code)
	}
}

func TestRequireAcceptsHeaderToken(t *testing.T) {
	session, repo, tokens := newFixture(t)
	addUser(repo, 7, domain.RoleUser)
	raw, _ := tokens.Issue(7)

	rec := doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if id := echoedID(t, rec); id != 7 {
		t.Errorf("user id = %d, want 7", id)
	}
}

func TestRequireAcceptsCookieToken(t *testing.T) {
	session, repo, tokens := newFixture(t)
	addUser(repo, 7, domain.RoleUser)
	raw, _ := tokens.Issue(7)

	rec := doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: cookieName, Value: raw})
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if id := echoedID(t, rec); id != 7 {
		t.Errorf("user id = %d, want 7", id)
	}
}

func TestHeaderTakesPrecedenceOverCookie(t *testing.T) {
	session, repo, tokens := newFixture(t)
	addUser(repo, 1, domain.RoleUser)
	addUser(repo, 2, domain.RoleUser)
	headerTok, _ := tokens.Issue(1)
	cookieTok, _ := tokens.Issue(2)

	rec := doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+headerTok)
		r.AddCookie(&http.Cookie{Name: cookieName, Value: cookieTok})
	})
	if id := echoedID(t, rec); id != 1 {
		t.Errorf("user id = %d, want header's user 1", id)
	}
}

func TestRequireRejectsExpiredToken(t *testing.T) {
	session, repo, _ := newFixture(t)
	addUser(repo, 7, domain.RoleUser)
	expired := token.NewService("test-secret", -time.Minute)
	raw, _ := expired.Issue(7)

	rec := doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRejectsVanishedUser(t *testing.T) {
	session, repo, tokens := newFixture(t)
	u := addUser(repo, 7, domain.RoleUser)
	raw, _ := tokens.Issue(7)
	u.Active = false

	rec := doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := responseCode(t, rec); code != "UNAUTHENTICATED" {
		t.Errorf("code = %q", code)
	}
}

func TestStaleSessionAfterPasswordChange(t *testing.T) {
	session, repo, tokens := newFixture(t)
	u := addUser(repo, 7, domain.RoleUser)

	// Token issued before the change.
	raw, _ := tokens.Issue(7)
	changed := time.Now().Add(time.Minute)
	u.PasswordChangedAt = &changed

	rec := doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := responseCode(t, rec); code != "STALE_SESSION" {
		t.Errorf("code = %q, want STALE_SESSION", code)
	}

	// Token issued after the change passes.
	changed = time.Now().Add(-time.Minute)
	u.PasswordChangedAt = &changed
	fresh, _ := tokens.Issue(7)

	rec = doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+fresh)
	})
	if rec.Code != http.StatusOK {
		t.Errorf("fresh token status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSameSecondPasswordChangeIsStale(t *testing.T) {
	session, repo, tokens := newFixture(t)
	u := addUser(repo, 7, domain.RoleUser)

	raw, _ := tokens.Issue(7)
	claims, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	issuedAt := claims.IssuedAtTime()
	u.PasswordChangedAt = &issuedAt

	rec := doRequest(session.Require(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	})
	if code := responseCode(t, rec); code != "STALE_SESSION" {
		t.Errorf("code = %q, want STALE_SESSION for same-second change", code)
	}
}

func TestOptionalSwallowsAllFailures(t *testing.T) {
	session, repo, tokens := newFixture(t)
	addUser(repo, 7, domain.RoleUser)
	expired := token.NewService("test-secret", -time.Minute)
	expiredTok, _ := expired.Issue(7)
	forged, _ := token.NewService("other-secret", time.Hour).Issue(7)

	mutations := []func(*http.Request){
		nil, // no token at all
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expiredTok) },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) },
		func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieName, Value: "loggedout"}) },
	}
	for i, mutate := range mutations {
		rec := doRequest(session.Optional(echoUser()), mutate)
		if rec.Code != http.StatusOK {
			t.Errorf("case %d: status = %d, want 200", i, rec.Code)
		}
		if id := echoedID(t, rec); id != 0 {
			t.Errorf("case %d: user attached (%d), want anonymous", i, id)
		}
	}

	// Store failures must not block rendering either.
	repo.findErr = errors.New("store down")
	raw, _ := tokens.Issue(7)
	rec := doRequest(session.Optional(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	})
	if rec.Code != http.StatusOK {
		t.Errorf("store failure: status = %d, want 200", rec.Code)
	}

	// And a valid session attaches the user.
	repo.findErr = nil
	rec = doRequest(session.Optional(echoUser()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	})
	if id := echoedID(t, rec); id != 7 {
		t.Errorf("valid session: user id = %d, want 7", id)
	}
}

func TestRequireRolesEnforcesAllowedSet(t *testing.T) {
	session, repo, tokens := newFixture(t)
	addUser(repo, 1, domain.RoleUser)
	addUser(repo, 2, domain.RoleAdmin)

	h := session.Require(RequireRoles(domain.RoleAdmin)(echoUser()))

	userTok, _ := tokens.Issue(1)
	rec := doRequest(h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+userTok)
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("role user: status = %d, want 403", rec.Code)
	}
	if code := responseCode(t, rec); code != "FORBIDDEN" {
		t.Errorf("code = %q", code)
	}

	adminTok, _ := tokens.Issue(2)
	rec = doRequest(h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+adminTok)
	})
	if rec.Code != http.StatusOK {
		t.Errorf("role admin: status = %d, want 200", rec.Code)
	}
}

func TestRequireRolesWithoutSession(t *testing.T) {
	h := RequireRoles(domain.RoleAdmin)(echoUser())

	rec := doRequest(h, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRolesRejectsUnknownRoleAtRegistration(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown role")
		}
	}()
	RequireRoles("superuser")
}
