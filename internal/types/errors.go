package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All components MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidLat       ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon       ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationThresholdRange   ErrorCode = "validation_threshold_out_of_range"
	ErrCodeValidationInvalidTime      ErrorCode = "validation_invalid_time_of_day"
	ErrCodeValidationMissingField     ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON      ErrorCode = "validation_invalid_json"

	// Location resolution
	ErrCodeLocationPermission ErrorCode = "location_permission_required"
	ErrCodeLocationManual     ErrorCode = "location_manual_setting_required"

	// Forecast fetch
	ErrCodeFetchNetwork ErrorCode = "fetch_network_failure"
	ErrCodeFetchAPI     ErrorCode = "fetch_api_failure"
	ErrCodeFetchUnknown ErrorCode = "fetch_unknown_failure"

	// Alarm scheduling
	ErrCodeScheduleInvalidTime ErrorCode = "schedule_invalid_time"
	ErrCodeScheduleSecurity    ErrorCode = "schedule_security_exception"
	ErrCodeScheduleExactDenied ErrorCode = "schedule_exact_permission_denied"
	ErrCodeScheduleUnknown     ErrorCode = "schedule_unknown_error"

	// Not Found (404)
	ErrCodeNotFoundSchedule ErrorCode = "not_found_schedule"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamWebhook     ErrorCode = "upstream_webhook_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "location_"):
		return http.StatusConflict // 409: resolvable by the user, not by retrying
	case strings.HasPrefix(s, "fetch_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "schedule_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// UserMessage returns a short human-readable description of the error code,
// suitable for the failure notification body.
func (c ErrorCode) UserMessage() string {
	switch c {
	case ErrCodeLocationPermission:
		return "location permission is required"
	case ErrCodeLocationManual:
		return "a manual location must be configured"
	case ErrCodeFetchNetwork:
		return "weather service is unreachable"
	case ErrCodeFetchAPI:
		return "weather service returned an error"
	case ErrCodeScheduleInvalidTime:
		return "notification time is invalid"
	case ErrCodeScheduleSecurity:
		return "wake-up scheduling permission was denied"
	case ErrCodeScheduleExactDenied:
		return "exact wake-up permission is required"
	case ErrCodeScheduleUnknown:
		return "wake-up scheduling failed"
	default:
		return "an unexpected error occurred"
	}
}

// AppError is the standard application error type used throughout the daemon.
// All domain errors are expressed as AppError to enable consistent error
// formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates an AppError carrying structured details
// that are safe to expose to clients (field names, expected formats).
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf extracts the ErrorCode from an error chain. Returns
// ErrCodeInternalUnexpected when the chain contains no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
