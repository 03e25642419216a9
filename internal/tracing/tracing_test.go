package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetJaegerTracing(t *testing.T) {
	stop, err := SetJaegerTracing("stansub-test")("http://127.0.0.1:1/api/traces", 1)
	require.NoError(t, err)
	require.NotNil(t, stop)
	defer stop()

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "uber-trace-id")
	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
