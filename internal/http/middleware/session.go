package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/http/response"
	"github.com/trailventures/tours-api/internal/platform/token"
	"github.com/trailventures/tours-api/internal/repo/postgres"
	"github.com/trailventures/tours-api/pkg/logger"
)

type ctxKey string

const ctxUser ctxKey = "user"

// Session authenticates requests from a bearer header or a session cookie.
type Session struct {
	Tokens     *token.Service
	Users      postgres.UsersRepo
	CookieName string
}

func NewSession(tokens *token.Service, users postgres.UsersRepo, cookieName string) *Session {
	return &Session{Tokens: tokens, Users: users, CookieName: cookieName}
}

// extractor pulls a raw token out of a request, or returns "".
type extractor func(*http.Request) string

// extractors are tried in order; the header wins over the cookie.
func (s *Session) extractors() []extractor {
	return []extractor{extractBearer, s.extractCookie}
}

func extractBearer(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authz, "Bearer ")
}

func (s *Session) extractCookie(r *http.Request) string {
	c, err := r.Cookie(s.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// authenticate resolves a request to a user or an operational error.
func (s *Session) authenticate(r *http.Request) (*domain.User, error) {
	var raw string
	for _, extract := range s.extractors() {
		if raw = extract(r); raw != "" {
			break
		}
	}
	if raw == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := s.Tokens.Verify(raw)
	if err != nil {
		// Expired, forged and garbled tokens all read as "not logged in".
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.Users.FindByID(r.Context(), claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("look up session user: %w", err)
	}
	if user == nil {
		// Account deleted or deactivated since the token was issued.
		return nil, domain.ErrUnauthenticated
	}

	if user.SessionStaleAt(claims.IssuedAtTime()) {
		return nil, domain.ErrStaleSession
	}
	return user, nil
}

// Require rejects requests without a valid, fresh session.
func (s *Session) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Optional attaches a user when a valid session is present and otherwise
// lets the request through untouched. Used by pages rendered for visitors;
// no authentication failure may block them.
func (s *Session) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil || user == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireRoles allows only principals whose role is in the given set. Must
// be composed after Require. The set is validated once, at route
// registration, so a typo fails startup instead of silently locking out or
// letting through.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		if !domain.IsValidRole(role) {
			panic(fmt.Sprintf("middleware: unknown role %q in route configuration", role))
		}
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				response.Error(w, r, domain.ErrUnauthenticated)
				return
			}
			if !allowed[user.Role] {
				response.Error(w, r, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withUser(ctx context.Context, user *domain.User) context.Context {
	ctx = context.WithValue(ctx, ctxUser, user)
	return context.WithValue(ctx, logger.UserIDKey, user.ID)
}

// CurrentUser returns the authenticated user attached to the request, or
// nil when the request is anonymous.
func CurrentUser(r *http.Request) *domain.User {
	v := r.Context().Value(ctxUser)
	if v == nil {
		return nil
	}
	return v.(*domain.User)
}
