package printing

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures
type ErrorCode string

const (
	// ErrCodeRenderingFailed means neither the template nor the fallback produced content
	ErrCodeRenderingFailed ErrorCode = "RENDERING_FAILED"
	// ErrCodeCaptureBlank means the captured artifact is below the minimum size floor
	ErrCodeCaptureBlank ErrorCode = "CAPTURE_BLANK"
	// ErrCodeDeliveryUnsupported means the share target is unavailable or rejected the file
	ErrCodeDeliveryUnsupported ErrorCode = "DELIVERY_UNSUPPORTED"
	// ErrCodeDeliveryFailed means the download target also failed
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"
	// ErrCodeSessionCancelled means the user dismissed the session
	ErrCodeSessionCancelled ErrorCode = "SESSION_CANCELLED"
	// ErrCodeDocumentUnavailable means the document payload could not be loaded
	ErrCodeDocumentUnavailable ErrorCode = "DOCUMENT_UNAVAILABLE"
	ErrCodeInvalidOptions      ErrorCode = "INVALID_OPTIONS"
	ErrCodeInvalidDocument     ErrorCode = "INVALID_DOCUMENT"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// String returns the string representation of ErrorCode
func (c ErrorCode) String() string {
	return string(c)
}

// PrintError is the error type surfaced by the print pipeline
type PrintError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *PrintError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *PrintError) Unwrap() error {
	return e.Cause
}

// Is matches any PrintError carrying the same code
func (e *PrintError) Is(target error) bool {
	t, ok := target.(*PrintError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewPrintError creates a new print error
func NewPrintError(code ErrorCode, message string, cause error) *PrintError {
	return &PrintError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinel errors usable with errors.Is
var (
	ErrRenderingFailed      = NewPrintError(ErrCodeRenderingFailed, "rendering produced no content", nil)
	ErrCaptureBlank         = NewPrintError(ErrCodeCaptureBlank, "captured artifact is blank", nil)
	ErrDeliveryUnsupported  = NewPrintError(ErrCodeDeliveryUnsupported, "share is not supported for this artifact", nil)
	ErrDeliveryFailed       = NewPrintError(ErrCodeDeliveryFailed, "artifact could not be delivered", nil)
	ErrSessionCancelled     = NewPrintError(ErrCodeSessionCancelled, "print session cancelled", nil)
	ErrDocumentUnavailable  = NewPrintError(ErrCodeDocumentUnavailable, "document is not available", nil)
	ErrInvalidRenderOptions = NewPrintError(ErrCodeInvalidOptions, "invalid render options", nil)
	ErrInvalidDocument      = NewPrintError(ErrCodeInvalidDocument, "invalid document", nil)
)

// AsPrintError converts any error into a PrintError.
// Context cancellation maps to SESSION_CANCELLED, anything unclassified to fallback.
func AsPrintError(err error, fallback ErrorCode) *PrintError {
	if err == nil {
		return nil
	}
	var pe *PrintError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) {
		return NewPrintError(ErrCodeSessionCancelled, "print session cancelled", err)
	}
	return NewPrintError(fallback, err.Error(), err)
}

// CodeOf returns the error code of err, or an empty code when err is not a PrintError
func CodeOf(err error) ErrorCode {
	var pe *PrintError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
