package dto

import (
	"net/http"

	"github.com/invoicepdf/backend/internal/domain/shared"
)

// Domain error codes surfaced to callers
const (
	ErrCodeInvalidRequest       = shared.CodeInvalidRequest
	ErrCodeNotFound             = shared.CodeNotFound
	ErrCodeUpstreamUnavailable  = shared.CodeUpstreamUnavailable
	ErrCodeStorageUnavailable   = shared.CodeStorageUnavailable
	ErrCodeRasterizationError   = shared.CodeRasterizationError
	ErrCodeTemplateBindingError = shared.CodeTemplateBindingError
)

// Transport error codes
const (
	// ErrCodeMethodNotAllowed is used for methods other than GET and POST
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	// ErrCodeForbidden is used when a download link is invalid or expired
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeRequestTooLarge is used when the request body exceeds the limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeInternal is used when the error type is unknown
	ErrCodeInternal = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInvalidRequest: http.StatusBadRequest,
	ErrCodeNotFound:       http.StatusNotFound,

	// Pipeline failures are all server-side
	ErrCodeUpstreamUnavailable:  http.StatusInternalServerError,
	ErrCodeStorageUnavailable:   http.StatusInternalServerError,
	ErrCodeRasterizationError:   http.StatusInternalServerError,
	ErrCodeTemplateBindingError: http.StatusInternalServerError,

	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// publicMessages are the only messages returned for server-side failures;
// causes stay in the logs
var publicMessages = map[string]string{
	ErrCodeUpstreamUnavailable:  "Order data service unavailable",
	ErrCodeStorageUnavailable:   "Invoice storage unavailable",
	ErrCodeRasterizationError:   "Error generating invoice PDF",
	ErrCodeTemplateBindingError: "Error generating invoice PDF",
	ErrCodeInternal:             "An unexpected error occurred",
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message a caller sees for code. Client errors
// keep the domain message; server errors always use the fixed text.
func PublicMessage(code, message string) string {
	if msg, ok := publicMessages[code]; ok {
		return msg
	}
	if GetHTTPStatus(code) >= http.StatusInternalServerError {
		return publicMessages[ErrCodeInternal]
	}
	return message
}
