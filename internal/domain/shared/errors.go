package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Cause is the underlying failure. It is logged, never returned to callers.
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, shared.ErrNotFound) matches any NOT_FOUND error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying an underlying cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeNotFound             = "NOT_FOUND"
	CodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeRasterizationError   = "RASTERIZATION_ERROR"
	CodeTemplateBindingError = "TEMPLATE_BINDING_ERROR"
)

// Common domain errors
var (
	ErrInvalidRequest      = NewDomainError(CodeInvalidRequest, "Invalid request")
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrUpstreamUnavailable = NewDomainError(CodeUpstreamUnavailable, "Order data service unavailable")
	ErrStorageUnavailable  = NewDomainError(CodeStorageUnavailable, "Artifact storage unavailable")
	ErrRasterization       = NewDomainError(CodeRasterizationError, "Failed to generate PDF")
	ErrTemplateBinding     = NewDomainError(CodeTemplateBindingError, "Failed to render invoice template")
)
