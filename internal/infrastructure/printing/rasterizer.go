package printing

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxConcurrent = 4
	pdfMagic             = "%PDF-"
)

// RasterizerConfig contains configuration for the rasterizer
type RasterizerConfig struct {
	// MaxConcurrent bounds the number of open rendering sessions
	MaxConcurrent int
	// Timeout bounds a single conversion; zero leaves it to the caller's context
	Timeout time.Duration
	Logger  *zap.Logger
}

// Rasterizer converts rendered markup into PDF artifacts.
// It borrows sessions from an Engine it does not own; at most MaxConcurrent
// sessions are open at once.
type Rasterizer struct {
	engine  Engine
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger
}

// NewRasterizer creates a rasterizer over the engine
func NewRasterizer(engine Engine, config RasterizerConfig) *Rasterizer {
	limit := config.MaxConcurrent
	if limit <= 0 {
		limit = defaultMaxConcurrent
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rasterizer{
		engine:  engine,
		sem:     semaphore.NewWeighted(int64(limit)),
		timeout: config.Timeout,
		logger:  logger,
	}
}

// ToPDF rasterizes a rendered document. The rendering session is released
// on every return path, including timeouts and panics in the engine.
// Failures are RASTERIZATION_ERROR wrapping a *RenderError.
func (r *Rasterizer) ToPDF(ctx context.Context, doc *invoice.RenderedDocument, layout invoice.PageLayout) (*invoice.PdfArtifact, error) {
	if doc == nil || strings.TrimSpace(doc.Markup) == "" {
		return nil, rasterizationError(NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil))
	}
	if err := layout.Validate(); err != nil {
		return nil, rasterizationError(NewRenderError(ErrCodeInvalidLayout, "invalid page layout", err))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, rasterizationError(NewRenderError(ErrCodeRenderTimeout, "timed out waiting for a rendering session", err))
	}
	defer r.sem.Release(1)

	startTime := time.Now()

	session, err := r.engine.NewSession(ctx)
	if err != nil {
		return nil, rasterizationError(classifyRenderError(ctx, err, "failed to open rendering session"))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.Warn("failed to close rendering session", zap.Error(cerr))
		}
	}()

	if err := session.LoadContent(ctx, doc.Markup); err != nil {
		return nil, rasterizationError(classifyRenderError(ctx, err, "failed to load document"))
	}
	if err := session.WaitQuiescent(ctx); err != nil {
		return nil, rasterizationError(classifyRenderError(ctx, err, "document did not settle"))
	}
	pdfData, err := session.PrintPDF(ctx, layout)
	if err != nil {
		return nil, rasterizationError(classifyRenderError(ctx, err, "failed to print PDF"))
	}

	if len(pdfData) == 0 {
		return nil, rasterizationError(NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil))
	}
	if !bytes.HasPrefix(pdfData, []byte(pdfMagic)) {
		return nil, rasterizationError(NewRenderError(ErrCodeRenderFailed, "engine output is not a PDF document", nil))
	}

	var orderID invoice.OrderID
	if doc.Data != nil {
		orderID = doc.Data.OrderID
	}
	artifact, err := invoice.NewPdfArtifact(orderID, pdfData, estimatePageCount(pdfData))
	if err != nil {
		return nil, err
	}

	r.logger.Debug("PDF rendered",
		zap.Int64("order_id", int64(orderID)),
		zap.Int("bytes", len(pdfData)),
		zap.Int("pages", artifact.PageCount),
		zap.Duration("duration", time.Since(startTime)))

	return artifact, nil
}

func rasterizationError(err *RenderError) error {
	return shared.WrapDomainError(shared.CodeRasterizationError, "Failed to generate PDF", err)
}

// estimatePageCount counts the page objects of a PDF
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	// "/Type /Page" also matches the parent "/Type /Pages" objects
	parentCount := bytes.Count(pdfData, []byte("/Type /Pages"))
	count = count - parentCount
	return max(count, 1)
}
