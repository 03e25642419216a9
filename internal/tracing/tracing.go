package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"k8s.io/klog/v2"
)

const flushTimeout = 5 * time.Second

// SetTracing registers tp and propagator as the process wide defaults.
func SetTracing(tp *tracesdk.TracerProvider, propagator propagation.TextMapPropagator) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)
}

// FlushTracer exports buffered spans and shuts tp down.
func FlushTracer(tp *tracesdk.TracerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := tp.ForceFlush(ctx); err != nil {
		klog.ErrorS(err, "Error flushing spans")
	}
	if err := tp.Shutdown(ctx); err != nil {
		klog.ErrorS(err, "Error shutting down tracer provider")
	}
}
