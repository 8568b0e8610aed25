package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/invoicepdf/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

func newRecordingProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := telemetry.NewTracerProviderWithExporter(telemetry.Config{
		ServiceName:   "invoice-pdf-test",
		SamplingRatio: 1.0,
	}, exporter, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_NilLogger(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{}, nil)
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestStartSpan_RecordsAttributesAndErrors(t *testing.T) {
	exporter := newRecordingProvider(t)

	ctx, span := telemetry.StartSpan(context.Background(), "invoice.rendering",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, int64(42)),
		telemetry.WithSpanKind(trace.SpanKindInternal),
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	telemetry.SetAttributes(span, telemetry.SpanAttrPDFSize, 2048, "ignored")
	telemetry.AddEvent(span, "template.bound", "items", 2)
	telemetry.RecordError(span, errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "invoice.rendering", got.Name)
	assert.Equal(t, codes.Error, got.Status.Code)
	assert.Equal(t, "boom", got.Status.Description)

	attrs := attrMap(got.Attributes)
	assert.Equal(t, int64(42), attrs[telemetry.SpanAttrOrderID].AsInt64())
	assert.Equal(t, int64(2048), attrs[telemetry.SpanAttrPDFSize].AsInt64())
	_, hasIgnored := attrs["ignored"]
	assert.False(t, hasIgnored)

	var eventNames []string
	for _, e := range got.Events {
		eventNames = append(eventNames, e.Name)
	}
	assert.Contains(t, eventNames, "template.bound")
	assert.Contains(t, eventNames, "exception")
}

func TestStartServiceSpan_NestsUnderParent(t *testing.T) {
	exporter := newRecordingProvider(t)

	ctx, parent := telemetry.StartServiceSpan(context.Background(), "invoice", "generate_link")
	_, child := telemetry.StartSpan(ctx, "invoice.persisting")
	telemetry.SetOK(child)
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "invoice.persisting", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, "invoice.generate_link", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestHelpers_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}
