// Package auth implements signup, login and the password lifecycle:
// direct change, reset request and single-use reset consumption.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/internal/platform/mailer"
	"github.com/trailventures/tours-api/internal/platform/token"
	"github.com/trailventures/tours-api/internal/repo/postgres"
	"github.com/trailventures/tours-api/pkg/config"
	"github.com/trailventures/tours-api/pkg/events"
	"github.com/trailventures/tours-api/pkg/logger"
)

type Service interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error)

	// RequestPasswordReset generates a single-use reset token, stores its
	// hash and mails the reset link. The plaintext is returned for the
	// caller's benefit in tests and dev tooling; HTTP handlers must not
	// reveal it. Returns domain.ErrNotFound for unknown emails so the
	// handler can decide how much to disclose.
	RequestPasswordReset(ctx context.Context, email string) (string, error)

	// ResetPassword consumes a reset token exactly once, installs the new
	// password and returns the user with a fresh session token.
	ResetPassword(ctx context.Context, plaintext string, req *domain.ResetPasswordRequest) (*domain.User, string, error)

	// UpdatePassword changes an authenticated user's password after
	// verifying the old one, and returns a fresh session token.
	UpdatePassword(ctx context.Context, userID int64, req *domain.UpdatePasswordRequest) (*domain.User, string, error)
}

type service struct {
	users  postgres.UsersRepo
	tokens *token.Service
	mail   mailer.Service
	bus    events.Publisher
	cfg    *config.Config
}

func NewService(users postgres.UsersRepo, tokens *token.Service, mail mailer.Service, bus events.Publisher, cfg *config.Config) Service {
	return &service{
		users:  users,
		tokens: tokens,
		mail:   mail,
		bus:    bus,
		cfg:    cfg,
	}
}

func (s *service) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", domain.ValidationError(err.Error())
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Name, req.Email, hash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, "", domain.ValidationError("an account with this email already exists")
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	if err := s.mail.SendWelcome(user.Email, user.Name, s.cfg.App.BaseURL+"/me"); err != nil {
		logger.WarnContext(ctx, "welcome email failed", "error", err, "user_id", user.ID)
	}
	if err := s.bus.Publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "publish user.registered failed", "error", err)
	}

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	return user, tok, nil
}

func (s *service) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", domain.ValidationError(err.Error())
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	// Unknown email and wrong password collapse into one answer so a
	// caller cannot probe which half failed.
	if user == nil {
		return nil, "", domain.ErrInvalidCredentials
	}
	ok, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, "", domain.ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	return user, tok, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return "", domain.ErrNotFound
	}

	plaintext, err := newResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	// Storing a fresh hash supersedes any earlier live token for this user.
	expiresAt := time.Now().Add(s.cfg.Auth.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, HashResetToken(plaintext), expiresAt); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	resetURL := s.cfg.App.BaseURL + "/reset-password/" + plaintext
	if err := s.mail.SendPasswordReset(user.Email, user.Name, resetURL); err != nil {
		// Without a delivered link the stored token is just a liability.
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			logger.ErrorContext(ctx, "clearing undeliverable reset token failed", "error", clearErr, "user_id", user.ID)
		}
		return "", fmt.Errorf("send reset email: %w", err)
	}

	return plaintext, nil
}

func (s *service) ResetPassword(ctx context.Context, plaintext string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", domain.ValidationError(err.Error())
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.ConsumeResetToken(ctx, HashResetToken(plaintext), hash, passwordChangeInstant())
	if err != nil {
		return nil, "", fmt.Errorf("consume reset token: %w", err)
	}
	if user == nil {
		return nil, "", domain.ErrResetTokenInvalid
	}

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	return user, tok, nil
}

func (s *service) UpdatePassword(ctx context.Context, userID int64, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", domain.ValidationError(err.Error())
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, "", domain.ErrUnauthenticated
	}

	ok, err := argon2id.ComparePasswordAndHash(req.OldPassword, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, "", domain.ErrInvalidCredentials
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	changedAt := passwordChangeInstant()
	if err := s.users.SetPassword(ctx, user.ID, hash, changedAt); err != nil {
		return nil, "", fmt.Errorf("set password: %w", err)
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	return user, tok, nil
}

// passwordChangeInstant is the timestamp recorded for a password change.
// Backdated one second: timestamps equal at second precision count as stale,
// and the session issued in the same call must survive its own change.
func passwordChangeInstant() time.Time {
	return time.Now().Add(-time.Second)
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashResetToken maps a plaintext reset token to the value stored in the
// credential store. One-way so a leaked users table cannot mint reset links.
func HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
