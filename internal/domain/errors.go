package domain

import "net/http"

// Error is an operational error: expected, safe to show, and carrying a
// stable code the HTTP layer maps onto a response. Anything that is not a
// *Error is treated as unexpected and reported as INTERNAL_ERROR.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrUnauthenticated = &Error{
		Code:    "UNAUTHENTICATED",
		Status:  http.StatusUnauthorized,
		Message: "you are not logged in",
	}
	ErrStaleSession = &Error{
		Code:    "STALE_SESSION",
		Status:  http.StatusUnauthorized,
		Message: "password was changed after this session was issued, please log in again",
	}
	// Login failures never reveal whether the email or the password was wrong.
	ErrInvalidCredentials = &Error{
		Code:    "INVALID_CREDENTIALS",
		Status:  http.StatusUnauthorized,
		Message: "invalid email or password",
	}
	ErrForbidden = &Error{
		Code:    "FORBIDDEN",
		Status:  http.StatusForbidden,
		Message: "you do not have permission to perform this action",
	}
	ErrResetTokenInvalid = &Error{
		Code:    "RESET_TOKEN_INVALID",
		Status:  http.StatusBadRequest,
		Message: "password reset link is invalid or has expired",
	}
	ErrNotFound = &Error{
		Code:    "NOT_FOUND",
		Status:  http.StatusNotFound,
		Message: "resource not found",
	}
	ErrInternal = &Error{
		Code:    "INTERNAL_ERROR",
		Status:  http.StatusInternalServerError,
		Message: "something went wrong",
	}
)

// ValidationError wraps a request-shape problem with the caller's message.
func ValidationError(msg string) *Error {
	return &Error{
		Code:    "VALIDATION_ERROR",
		Status:  http.StatusBadRequest,
		Message: msg,
	}
}
