package printing

import (
	"context"

	"github.com/invoicepdf/backend/internal/domain/invoice"
)

// Engine opens rendering sessions against a headless browser.
// The engine owns the browser process; sessions are cheap per-document tabs.
type Engine interface {
	// NewSession opens an isolated rendering context. The caller must Close it.
	NewSession(ctx context.Context) (Session, error)
	// Close shuts down the browser process, if the engine launched one
	Close() error
}

// Session is a single rendering context (one browser tab)
type Session interface {
	// LoadContent replaces the document with the given markup
	LoadContent(ctx context.Context, html string) error
	// WaitQuiescent blocks until the document, its images and its fonts
	// have finished loading, or ctx is done.
	WaitQuiescent(ctx context.Context) error
	// PrintPDF exports the current document with the given page layout
	PrintPDF(ctx context.Context, layout invoice.PageLayout) ([]byte, error)
	// Close releases the rendering context. Close is idempotent.
	Close() error
}

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout  = "RENDER_TIMEOUT"
	ErrCodeRenderFailed   = "RENDER_FAILED"
	ErrCodeInvalidHTML    = "INVALID_HTML"
	ErrCodeBinaryNotFound = "BINARY_NOT_FOUND"
	ErrCodeInvalidLayout  = "INVALID_LAYOUT"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
