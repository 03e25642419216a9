package tracing

import (
	"os"

	jaeger_propagators "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"stanclient/internal/version"
)

// jaegerTracerProvider returns a TracerProvider exporting to the Jaeger
// collector at url, sampling ratio of the root spans.
func jaegerTracerProvider(url string, ratio float64, serviceName string) (*tracesdk.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
	if err != nil {
		return nil, err
	}
	hostName, _ := os.Hostname()

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version.Version()),
			semconv.HostNameKey.String(hostName),
		)),
		tracesdk.WithBatcher(exporter),
	)
	return tp, nil
}

// SetJaegerTracing installs a Jaeger backed tracer provider with the Jaeger
// propagator. The returned func flushes and stops it.
func SetJaegerTracing(serviceName string) func(url string, ratio float64) (func(), error) {
	return func(url string, ratio float64) (func(), error) {
		tp, err := jaegerTracerProvider(url, ratio, serviceName)
		if err != nil {
			return nil, err
		}
		SetTracing(tp, jaeger_propagators.Jaeger{})

		return func() {
			FlushTracer(tp)
		}, nil
	}
}
