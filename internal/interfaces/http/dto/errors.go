package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeNotConfigured is used when an optional feature is switched off
	ErrCodeNotConfigured = "ERR_NOT_CONFIGURED"
	// ErrCodeShuttingDown is used once the server stopped accepting print work
	ErrCodeShuttingDown = "ERR_SHUTTING_DOWN"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Print pipeline error codes
const (
	ErrCodeRenderingFailed     = "ERR_RENDERING_FAILED"
	ErrCodeCaptureBlank        = "ERR_CAPTURE_BLANK"
	ErrCodeDeliveryUnsupported = "ERR_DELIVERY_UNSUPPORTED"
	ErrCodeDeliveryFailed      = "ERR_DELIVERY_FAILED"
	ErrCodeSessionCancelled    = "ERR_SESSION_CANCELLED"
	ErrCodeDocumentUnavailable = "ERR_DOCUMENT_UNAVAILABLE"
	ErrCodeInvalidOptions      = "ERR_INVALID_OPTIONS"
	ErrCodeInvalidDocument     = "ERR_INVALID_DOCUMENT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:       http.StatusInternalServerError,
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeNotConfigured: http.StatusNotImplemented,
	ErrCodeShuttingDown:  http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,

	// Print pipeline errors
	ErrCodeInvalidOptions:      http.StatusBadRequest,
	ErrCodeInvalidDocument:     http.StatusBadRequest,
	ErrCodeDocumentUnavailable: http.StatusNotFound,
	ErrCodeDeliveryUnsupported: http.StatusUnprocessableEntity,
	ErrCodeSessionCancelled:    http.StatusConflict,
	ErrCodeRenderingFailed:     http.StatusInternalServerError,
	ErrCodeCaptureBlank:        http.StatusInternalServerError,
	ErrCodeDeliveryFailed:      http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the API codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
	"NOT_CONFIGURED":       ErrCodeNotConfigured,
	"SHUTTING_DOWN":        ErrCodeShuttingDown,
	"INVALID_ARTIFACT":     ErrCodeInternal,

	"RENDERING_FAILED":     ErrCodeRenderingFailed,
	"CAPTURE_BLANK":        ErrCodeCaptureBlank,
	"DELIVERY_UNSUPPORTED": ErrCodeDeliveryUnsupported,
	"DELIVERY_FAILED":      ErrCodeDeliveryFailed,
	"SESSION_CANCELLED":    ErrCodeSessionCancelled,
	"DOCUMENT_UNAVAILABLE": ErrCodeDocumentUnavailable,
	"INVALID_OPTIONS":      ErrCodeInvalidOptions,
	"INVALID_DOCUMENT":     ErrCodeInvalidDocument,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
