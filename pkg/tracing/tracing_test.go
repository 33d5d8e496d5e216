package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerProvider_None(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracerProvider(ctx, "cartd", ExporterNone)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	_, span := otel.Tracer("test").Start(ctx, "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
}

func TestInitTracerProvider_Unknown(t *testing.T) {
	_, err := InitTracerProvider(context.Background(), "cartd", "jaeger")
	assert.ErrorContains(t, err, "unknown trace exporter")
}
