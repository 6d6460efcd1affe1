package response

import (
	"encoding/json"
	"net/http"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeEmailExists      = "EMAIL_EXISTS"
	CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	CodeOTPMismatch      = "OTP_MISMATCH"
	CodeOTPExpired       = "OTP_EXPIRED"
	CodeOTPNotFound      = "OTP_NOT_FOUND"
	CodeDeliveryFailed   = "DELIVERY_FAILED"
	CodeLocationDenied   = "LOCATION_PERMISSION_DENIED"
	CodeLocationUnavail  = "LOCATION_UNAVAILABLE"
	CodeLocationTimeout  = "LOCATION_TIMEOUT"
)

func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteErrorWithDetails writes a structured JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, message, code, details string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

// FromError maps an error kind to a status and code. Internal errors never
// leak their message to the client.
func FromError(w http.ResponseWriter, err error) {
	status, code := StatusFor(apperr.KindOf(err))
	if c := apperr.CodeOf(err); c != "" {
		code = c
	}
	msg := apperr.Message(err)
	if msg == "" || status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	WriteError(w, status, msg, code)
}

func StatusFor(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.InvalidArgument:
		return http.StatusBadRequest, CodeInvalidInput
	case apperr.NotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.Mismatch:
		return http.StatusBadRequest, CodeOTPMismatch
	case apperr.Expired:
		return http.StatusGone, CodeOTPExpired
	case apperr.DeliveryError:
		return http.StatusBadGateway, CodeDeliveryFailed
	case apperr.PermissionDenied:
		return http.StatusUnprocessableEntity, CodeLocationDenied
	case apperr.Unavailable:
		return http.StatusUnprocessableEntity, CodeLocationUnavail
	case apperr.Timeout:
		return http.StatusUnprocessableEntity, CodeLocationTimeout
	case apperr.Unauthorized:
		return http.StatusUnauthorized, CodeUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden, CodeForbidden
	case apperr.Conflict:
		return http.StatusConflict, CodeConflict
	case apperr.RateLimited:
		return http.StatusTooManyRequests, CodeRateLimit
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func Conflict(w http.ResponseWriter, message, code string) {
	WriteError(w, http.StatusConflict, message, code)
}
