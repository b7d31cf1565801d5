package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/packfang/pkg/observability"
)

var (
	errCheckoutUnreadable = errors.New("checkout unreadable")
	errBadManifest        = errors.New("bad manifest")
)

func TestRecordSpanError_SetsAttributes(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("test")
	_, span := tracer.Start(context.Background(), "test.op")

	observability.RecordSpanError(span, errCheckoutUnreadable,
		observability.ErrTypeDependencyUnavailable, observability.ErrSourceDependency)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	recorded := spans[0]

	assert.Equal(t, codes.Error, recorded.Status.Code)
	assert.Equal(t, "checkout unreadable", recorded.Status.Description)

	assertAttribute(t, recorded.Attributes, "error.type", observability.ErrTypeDependencyUnavailable)
	assertAttribute(t, recorded.Attributes, "error.source", observability.ErrSourceDependency)
}

func TestRecordSpanError_EmptySource(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("test")
	_, span := tracer.Start(context.Background(), "test.op")

	observability.RecordSpanError(span, errBadManifest, observability.ErrTypeValidation, "")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	recorded := spans[0]

	assertAttribute(t, recorded.Attributes, "error.type", observability.ErrTypeValidation)

	for _, attr := range recorded.Attributes {
		assert.NotEqual(t, "error.source", string(attr.Key), "error.source should not be set when empty")
	}
}

func TestRecordSpanError_NilErrorIsIgnored(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("test")
	_, span := tracer.Start(context.Background(), "test.op")

	observability.RecordSpanError(span, nil, observability.ErrTypeInternal, observability.ErrSourceServer)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func assertAttribute(t *testing.T, attrs []attribute.KeyValue, key, wantValue string) {
	t.Helper()

	for _, attr := range attrs {
		if string(attr.Key) == key {
			assert.Equal(t, wantValue, attr.Value.AsString())

			return
		}
	}

	t.Errorf("attribute %q not found", key)
}
