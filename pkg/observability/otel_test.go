package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TestInitOTel_Disabled tests that InitOTel returns nil when disabled
func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, providers)
}

func TestShutdownOTel_NilProviders(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))
}

func TestShutdownOTel_WithProviders(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}
	require.NoError(t, ShutdownOTel(context.Background(), providers, logger))
	assert.Contains(t, buf.String(), "OpenTelemetry shutdown complete")
}

func TestTracer_NoopByDefault(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestUpdateLoggerWithTraceContext_NoSpan(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	assert.Same(t, logger, UpdateLoggerWithTraceContext(context.Background(), logger))
}

func TestUpdateLoggerWithTraceContext_WithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "populate")
	defer span.End()

	var buf bytes.Buffer
	UpdateLoggerWithTraceContext(ctx, NewLogger(InfoLevel, &buf)).Info("traced")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}
