// Package invoice orchestrates the invoice pipeline: fetch the order
// projection, render it, rasterize it to PDF, store it and hand out links.
package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"github.com/invoicepdf/backend/internal/infrastructure/logger"
	"github.com/invoicepdf/backend/internal/infrastructure/printing"
	"github.com/invoicepdf/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 60 * time.Second

// Pipeline response modes
const (
	ModeDirect = "direct"
	ModeStore  = "store"
	ModeLink   = "link"
	ModeLookup = "lookup"
)

// DocumentRenderer binds order data to the invoice template
type DocumentRenderer interface {
	Render(ctx context.Context, data *invoice.OrderInvoiceData, opts printing.RenderOptions) (*invoice.RenderedDocument, error)
}

// DocumentRasterizer converts rendered markup to a PDF
type DocumentRasterizer interface {
	ToPDF(ctx context.Context, doc *invoice.RenderedDocument, layout invoice.PageLayout) (*invoice.PdfArtifact, error)
}

// ServiceConfig contains configuration for the invoice service
type ServiceConfig struct {
	Layout invoice.PageLayout
	// LogoURL is passed to the renderer for every request
	LogoURL string
	// RequestTimeout bounds a whole pipeline run
	RequestTimeout time.Duration
	Metrics        *telemetry.InvoiceMetrics
	Logger         *zap.Logger
}

// InvoiceService runs the invoice pipeline. Runs are independent of each
// other; two concurrent runs for the same order both store, and the last
// pointer write wins.
type InvoiceService struct {
	gateway    invoice.OrderDataGateway
	renderer   DocumentRenderer
	rasterizer DocumentRasterizer
	store      *ArtifactStore
	layout     invoice.PageLayout
	logoURL    string
	timeout    time.Duration
	metrics    *telemetry.InvoiceMetrics
	logger     *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	gateway invoice.OrderDataGateway,
	renderer DocumentRenderer,
	rasterizer DocumentRasterizer,
	store *ArtifactStore,
	config ServiceConfig,
) *InvoiceService {
	s := &InvoiceService{
		gateway:    gateway,
		renderer:   renderer,
		rasterizer: rasterizer,
		store:      store,
		layout:     config.Layout,
		logoURL:    config.LogoURL,
		timeout:    config.RequestTimeout,
		metrics:    config.Metrics,
		logger:     config.Logger,
	}
	if s.layout == (invoice.PageLayout{}) {
		s.layout = invoice.DefaultPageLayout()
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// GeneratePDF renders the order's invoice and returns the bytes without
// storing them
func (s *InvoiceService) GeneratePDF(ctx context.Context, id invoice.OrderID) (artifact *invoice.PdfArtifact, err error) {
	run, err := s.begin(ctx, "GeneratePDF", id, ModeDirect)
	if err != nil {
		return nil, err
	}
	defer func() { run.finish(err) }()

	artifact, err = s.produce(run)
	if err != nil {
		return nil, err
	}
	err = run.step(StageResponding, func(ctx context.Context) error {
		telemetry.SetAttributes(run.span,
			telemetry.SpanAttrPDFSize, artifact.Size(),
			telemetry.SpanAttrPageCount, artifact.PageCount)
		return nil
	})
	return artifact, err
}

// GenerateAndStore renders and stores the order's invoice and records the
// order's pointer to it
func (s *InvoiceService) GenerateAndStore(ctx context.Context, id invoice.OrderID) (result *StoredInvoice, err error) {
	run, err := s.begin(ctx, "GenerateAndStore", id, ModeStore)
	if err != nil {
		return nil, err
	}
	defer func() { run.finish(err) }()

	key, err := s.produceAndStore(run)
	if err != nil {
		return nil, err
	}
	err = run.step(StageResponding, func(ctx context.Context) error {
		result = &StoredInvoice{
			Message: "Invoice generated successfully",
			File:    key.String(),
		}
		return nil
	})
	return result, err
}

// GenerateLink renders, stores and records the order's invoice and issues a
// download link valid for ttl. A zero ttl uses the store's default.
func (s *InvoiceService) GenerateLink(ctx context.Context, id invoice.OrderID, ttl time.Duration) (grant *invoice.SignedAccessGrant, err error) {
	if ttl < 0 {
		return nil, s.reject(ctx, id, shared.NewDomainError(shared.CodeInvalidRequest, "Link lifetime must be positive"))
	}
	run, err := s.begin(ctx, "GenerateLink", id, ModeLink)
	if err != nil {
		return nil, err
	}
	defer func() { run.finish(err) }()

	key, err := s.produceAndStore(run)
	if err != nil {
		return nil, err
	}
	err = run.step(StageResponding, func(ctx context.Context) error {
		grant, err = s.store.SignedURL(ctx, key, s.resolveTTL(ttl))
		return err
	})
	return grant, err
}

// GetLink issues a download link for the invoice already recorded for the
// order. Nothing is rendered.
func (s *InvoiceService) GetLink(ctx context.Context, id invoice.OrderID, ttl time.Duration) (grant *invoice.SignedAccessGrant, err error) {
	if ttl < 0 {
		return nil, s.reject(ctx, id, shared.NewDomainError(shared.CodeInvalidRequest, "Link lifetime must be positive"))
	}
	run, err := s.begin(ctx, "GetLink", id, ModeLookup)
	if err != nil {
		return nil, err
	}
	defer func() { run.finish(err) }()

	var key invoice.StorageKey
	err = run.step(StageFetchingData, func(ctx context.Context) error {
		key, err = s.store.LookupPointer(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = run.step(StageResponding, func(ctx context.Context) error {
		grant, err = s.store.SignedURL(ctx, key, s.resolveTTL(ttl))
		return err
	})
	return grant, err
}

func (s *InvoiceService) resolveTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return s.store.DefaultTTL()
	}
	return ttl
}

// produce runs FetchingData, Rendering and Rasterizing
func (s *InvoiceService) produce(run *pipelineRun) (*invoice.PdfArtifact, error) {
	var (
		data     *invoice.OrderInvoiceData
		doc      *invoice.RenderedDocument
		artifact *invoice.PdfArtifact
		err      error
	)

	err = run.step(StageFetchingData, func(ctx context.Context) error {
		data, err = s.gateway.Fetch(ctx, run.orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = run.step(StageRendering, func(ctx context.Context) error {
		doc, err = s.renderer.Render(ctx, data, printing.RenderOptions{LogoURL: s.logoURL})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = run.step(StageRasterizing, func(ctx context.Context) error {
		started := time.Now()
		artifact, err = s.rasterizer.ToPDF(ctx, doc, s.layout)
		outcome := telemetry.OutcomeSuccess
		if err != nil {
			outcome = telemetry.OutcomeFailure
		}
		s.metrics.RecordRasterize(ctx, time.Since(started), outcome)
		if err != nil {
			return err
		}
		artifact.OrderID = run.orderID
		s.metrics.RecordPDFSize(ctx, artifact.Size())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// produceAndStore runs produce followed by Persisting
func (s *InvoiceService) produceAndStore(run *pipelineRun) (invoice.StorageKey, error) {
	artifact, err := s.produce(run)
	if err != nil {
		return "", err
	}

	var key invoice.StorageKey
	err = run.step(StagePersisting, func(ctx context.Context) error {
		key, err = s.store.Store(ctx, run.orderID, artifact)
		if err != nil {
			return err
		}
		telemetry.SetAttributes(run.span, telemetry.SpanAttrStorageKey, key.String())
		return s.store.RecordPointer(ctx, run.orderID, key)
	})
	return key, err
}

// reject fails a run before it starts
func (s *InvoiceService) reject(ctx context.Context, id invoice.OrderID, err error) error {
	s.log(ctx).Warn("invoice request rejected",
		zap.Int64("order_id", int64(id)),
		zap.Error(err))
	return &StageError{Stage: StageStart, OrderID: id, Err: err}
}

// pipelineRun tracks one request through the stages
type pipelineRun struct {
	svc     *InvoiceService
	ctx     context.Context
	cancel  context.CancelFunc
	span    trace.Span
	orderID invoice.OrderID
	mode    string
	stage   Stage
}

// begin validates the order id and opens the run's deadline and root span
func (s *InvoiceService) begin(ctx context.Context, operation string, id invoice.OrderID, mode string) (*pipelineRun, error) {
	if !id.Valid() {
		return nil, s.reject(ctx, id, shared.NewDomainError(shared.CodeInvalidRequest, "orderId must be a positive integer"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	ctx = logger.WithOrderID(ctx, id.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "InvoiceService", operation,
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, int64(id)),
		telemetry.WithAttribute(telemetry.SpanAttrMode, mode),
	)
	return &pipelineRun{
		svc:     s,
		ctx:     ctx,
		cancel:  cancel,
		span:    span,
		orderID: id,
		mode:    mode,
		stage:   StageStart,
	}, nil
}

// step runs fn as the next stage. A failure is logged here, once, and
// returned as a *StageError.
func (r *pipelineRun) step(stage Stage, fn func(ctx context.Context) error) error {
	r.stage = stage
	ctx, span := telemetry.StartSpan(r.ctx, "invoice."+string(stage),
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, int64(r.orderID)),
		telemetry.WithAttribute(telemetry.SpanAttrStage, string(stage)),
	)
	defer span.End()

	if err := fn(ctx); err != nil {
		if ctxErr := r.ctx.Err(); ctxErr != nil && !isDomainError(err) {
			err = shared.WrapDomainError(shared.CodeUpstreamUnavailable, "Invoice request timed out", err)
		}
		stageErr := &StageError{Stage: stage, OrderID: r.orderID, Err: err}

		code := stageErr.Code()
		telemetry.SetAttributes(span, telemetry.SpanAttrErrorCode, code)
		telemetry.RecordError(span, err)
		r.svc.metrics.RecordStageFailure(ctx, string(stage), code)
		r.svc.log(ctx).Error("invoice pipeline failed",
			zap.String("stage", string(stage)),
			zap.String("mode", r.mode),
			zap.String("error_code", code),
			zap.Error(err))

		r.stage = StageFailed
		return stageErr
	}
	telemetry.SetOK(span)
	return nil
}

// finish closes the run's span and deadline and records its outcome
func (r *pipelineRun) finish(err error) {
	defer r.cancel()
	defer r.span.End()

	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeFailure
		telemetry.RecordError(r.span, err)
	} else {
		telemetry.SetOK(r.span)
		r.svc.log(r.ctx).Info("invoice pipeline completed", zap.String("mode", r.mode))
	}
	r.svc.metrics.RecordGenerated(r.ctx, r.mode, outcome)
}

// log prefers the request logger carried by ctx
func (s *InvoiceService) log(ctx context.Context) *logger.ContextLogger {
	if _, ok := ctx.Value(logger.LoggerKey).(*zap.Logger); ok {
		return logger.L(ctx)
	}
	return logger.WithLogger(ctx, s.logger)
}

func isDomainError(err error) bool {
	var domainErr *shared.DomainError
	return errors.As(err, &domainErr)
}
