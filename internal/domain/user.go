package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID                int64      `json:"id"`
	Role              string     `json:"role"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Name              string     `json:"name"`
	Photo             string     `json:"photo"`
	Active            bool       `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Valid user roles
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleGuide:     true,
	RoleLeadGuide: true,
	RoleAdmin:     true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// SessionStaleAt reports whether a session issued at issuedAt predates the
// user's last password change. Both instants are truncated to seconds before
// comparing because token issue times only carry second precision; a change
// in the same second counts as stale.
func (u *User) SessionStaleAt(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	changed := u.PasswordChangedAt.Truncate(time.Second)
	return !changed.Before(issuedAt.Truncate(time.Second))
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type UpdatePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type UpdateMeRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

type AdminUpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *string `json:"role,omitempty"`
}

func (r *SignupRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
}

func (r *SignupRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if err := validatePassword(r.Password, r.PasswordConfirm); err != nil {
		return err
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

func (r *ResetPasswordRequest) Validate() error {
	return validatePassword(r.Password, r.PasswordConfirm)
}

func (r *UpdatePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return fmt.Errorf("old password is required")
	}
	return validatePassword(r.Password, r.PasswordConfirm)
}

func (r *UpdateMeRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if r.Email != nil && !isValidEmail(strings.ToLower(strings.TrimSpace(*r.Email))) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func (r *AdminUpdateUserRequest) Validate() error {
	if r.Role != nil && !validRoles[*r.Role] {
		return fmt.Errorf("invalid role: %s", *r.Role)
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if r.Email != nil && !isValidEmail(strings.ToLower(strings.TrimSpace(*r.Email))) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
