package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Invoice metric names
const (
	MetricInvoiceGenerated      = "invoice.generated"
	MetricRasterizeDuration     = "invoice.rasterize.duration"
	MetricPDFSize               = "invoice.pdf.size"
	MetricPipelineStageFailures = "invoice.stage.failures"
)

// Outcome attribute values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// InvoiceMetrics records the pipeline's business metrics.
// A nil *InvoiceMetrics is valid and records nothing.
type InvoiceMetrics struct {
	generated         *Counter
	stageFailures     *Counter
	rasterizeDuration *Histogram
	pdfSize           *Histogram
}

// NewInvoiceMetrics registers the invoice instruments on meter
func NewInvoiceMetrics(meter metric.Meter) (*InvoiceMetrics, error) {
	generated, err := NewCounter(meter, MetricInvoiceGenerated,
		"Invoice pipeline runs by mode and outcome", "{invoice}")
	if err != nil {
		return nil, err
	}
	stageFailures, err := NewCounter(meter, MetricPipelineStageFailures,
		"Invoice pipeline failures by stage and error code", "{failure}")
	if err != nil {
		return nil, err
	}
	rasterizeDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        MetricRasterizeDuration,
		Description: "Time spent turning markup into a PDF",
		Unit:        "s",
		Boundaries:  RasterizeDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	pdfSize, err := NewHistogram(meter, HistogramOpts{
		Name:        MetricPDFSize,
		Description: "Size of generated invoice PDFs",
		Unit:        "By",
		Boundaries:  PDFSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &InvoiceMetrics{
		generated:         generated,
		stageFailures:     stageFailures,
		rasterizeDuration: rasterizeDuration,
		pdfSize:           pdfSize,
	}, nil
}

// RecordGenerated counts one finished pipeline run
func (m *InvoiceMetrics) RecordGenerated(ctx context.Context, mode, outcome string) {
	if m == nil {
		return
	}
	m.generated.Inc(ctx, AttrMode.String(mode), AttrOutcome.String(outcome))
}

// RecordStageFailure counts a failed pipeline stage
func (m *InvoiceMetrics) RecordStageFailure(ctx context.Context, stage, code string) {
	if m == nil {
		return
	}
	m.stageFailures.Inc(ctx, AttrStage.String(stage), AttrErrorCode.String(code))
}

// RecordRasterize records the duration of one rasterization
func (m *InvoiceMetrics) RecordRasterize(ctx context.Context, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.rasterizeDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordPDFSize records the size of a generated PDF
func (m *InvoiceMetrics) RecordPDFSize(ctx context.Context, bytes int64) {
	if m == nil {
		return
	}
	m.pdfSize.Record(ctx, float64(bytes))
}
