package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trailventures/tours-api/internal/domain"
	"github.com/trailventures/tours-api/pkg/logger"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// devMode controls whether internal error details leak into responses.
// Set once at startup, never after.
var devMode bool

func SetDevMode(enabled bool) { devMode = enabled }

// JSON writes a success payload.
func JSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// Error maps an error onto the envelope. Operational (*domain.Error) values
// go out verbatim; anything else is logged and reported as INTERNAL_ERROR,
// with the underlying detail included only in dev mode.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		WriteError(w, derr.Status, derr.Message, derr.Code)
		return
	}

	logger.ErrorContext(r.Context(), "unexpected error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
	if devMode {
		WriteErrorWithDetails(w, http.StatusInternalServerError,
			domain.ErrInternal.Message, domain.ErrInternal.Code, err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, domain.ErrInternal.Message, domain.ErrInternal.Code)
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteErrorWithDetails writes a structured JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, message, code, details string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, "VALIDATION_ERROR")
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, domain.ErrNotFound.Code)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, "RATE_LIMIT_EXCEEDED")
}
