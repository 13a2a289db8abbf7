package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trailventures/tours-api/internal/domain"
)

type mockAuthService struct {
	signupFn         func(*domain.SignupRequest) (*domain.User, string, error)
	loginFn          func(*domain.LoginRequest) (*domain.User, string, error)
	requestResetFn   func(string) (string, error)
	resetPasswordFn  func(string, *domain.ResetPasswordRequest) (*domain.User, string, error)
	updatePasswordFn func(int64, *domain.UpdatePasswordRequest) (*domain.User, string, error)
}

func (m *mockAuthService) Signup(_ context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	return m.signupFn(req)
}

func (m *mockAuthService) Login(_ context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	return m.loginFn(req)
}

func (m *mockAuthService) RequestPasswordReset(_ context.Context, email string) (string, error) {
	return m.requestResetFn(email)
}

func (m *mockAuthService) ResetPassword(_ context.Context, plaintext string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	return m.resetPasswordFn(plaintext, req)
}

func (m *mockAuthService) UpdatePassword(_ context.Context, userID int64, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	return m.updatePasswordFn(userID, req)
}

func newAuthHandler(svc *mockAuthService) *AuthHandler {
	return NewAuthHandler(svc, "session", 24*time.Hour, false)
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSignupSetsCookieAndReturnsToken(t *testing.T) {
	svc := &mockAuthService{
		signupFn: func(req *domain.SignupRequest) (*domain.User, string, error) {
			if req.Email != "ada@example.com" {
				t.Errorf("email = %q", req.Email)
			}
			return &domain.User{ID: 1, Email: req.Email, Role: domain.RoleUser, Active: true}, "tok-123", nil
		},
	}
	h := newAuthHandler(svc)

	body := `{"name":"Ada","email":"ada@example.com","password":"password123","password_confirm":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	cookie := findCookie(t, rec, "session")
	if cookie.Value != "tok-123" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be http-only")
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token != "tok-123" {
		t.Errorf("token = %q", resp.Token)
	}
	if resp.User == nil || resp.User.ID != 1 {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestLoginFailureKeepsErrorOpaque(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(*domain.LoginRequest) (*domain.User, string, error) {
			return nil, "", domain.ErrInvalidCredentials
		},
	}
	h := newAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "INVALID_CREDENTIALS" {
		t.Errorf("code = %q", body.Code)
	}
	if !strings.Contains(strings.ToLower(body.Error), "invalid email or password") {
		t.Errorf("message should not single out a field: %q", body.Error)
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLogoutOverwritesSessionCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, "session", 24*time.Hour, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	cookie := findCookie(t, rec, "session")
	if cookie.Value != "loggedout" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.Expires.Before(time.Now().Add(time.Minute)) {
		t.Errorf("logout cookie should expire almost immediately, got %v", cookie.Expires)
	}
	// The overwrite must carry the same attributes as the session cookie,
	// or browsers treat it as a different cookie and keep the session.
	if !cookie.HttpOnly {
		t.Error("logout cookie must be http-only")
	}
	if !cookie.Secure {
		t.Error("logout cookie must be secure when sessions are")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("logout cookie SameSite = %v, want Lax", cookie.SameSite)
	}
}

func TestForgotPasswordIsUniformForUnknownEmails(t *testing.T) {
	var bodies []string
	run := func(err error) {
		svc := &mockAuthService{
			requestResetFn: func(string) (string, error) { return "plain", err },
		}
		h := newAuthHandler(svc)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password",
			strings.NewReader(`{"email":"who@example.com"}`))
		rec := httptest.NewRecorder()
		h.ForgotPassword(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d for err %v", rec.Code, err)
		}
		bodies = append(bodies, rec.Body.String())
	}

	run(nil)                // known account
	run(domain.ErrNotFound) // unknown account

	if bodies[0] != bodies[1] {
		t.Errorf("responses differ between known and unknown emails:\n%s\n%s", bodies[0], bodies[1])
	}
	if strings.Contains(bodies[0], "plain") {
		t.Error("response must not leak the reset token")
	}
}

func TestResetPasswordWithBadToken(t *testing.T) {
	svc := &mockAuthService{
		resetPasswordFn: func(string, *domain.ResetPasswordRequest) (*domain.User, string, error) {
			return nil, "", domain.ErrResetTokenInvalid
		},
	}
	h := newAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/auth/reset-password/bogus",
		strings.NewReader(`{"password":"password123","password_confirm":"password123"}`))
	rec := httptest.NewRecorder()
	h.ResetPassword(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != "RESET_TOKEN_INVALID" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestResetPasswordSuccessStartsNewSession(t *testing.T) {
	svc := &mockAuthService{
		resetPasswordFn: func(plaintext string, _ *domain.ResetPasswordRequest) (*domain.User, string, error) {
			return &domain.User{ID: 9, Role: domain.RoleUser, Active: true}, "fresh-token", nil
		},
	}
	h := newAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/auth/reset-password/sometoken",
		strings.NewReader(`{"password":"password123","password_confirm":"password123"}`))
	rec := httptest.NewRecorder()
	h.ResetPassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if findCookie(t, rec, "session").Value != "fresh-token" {
		t.Error("reset should install the fresh session cookie")
	}
}
