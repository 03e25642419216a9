package metrics

import (
	"context"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/sdk/metric/aggregator/histogram"
	controller "go.opentelemetry.io/otel/sdk/metric/controller/basic"
	"go.opentelemetry.io/otel/sdk/metric/export/aggregation"
	processor "go.opentelemetry.io/otel/sdk/metric/processor/basic"
	selector "go.opentelemetry.io/otel/sdk/metric/selector/simple"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"k8s.io/klog/v2"

	"stanclient/internal/version"
)

// processingBoundaries are the histogram buckets, in milliseconds.
var processingBoundaries = []float64{10, 100, 1000, 5000, 10000, 20000, 100000}

func newPrometheusExporter(appId string) (*prometheus.Exporter, error) {
	r, err := resource.New(context.Background(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(appId),
			semconv.ServiceVersionKey.String(version.Version())))
	if err != nil {
		return nil, err
	}

	config := prometheus.Config{DefaultHistogramBoundaries: processingBoundaries}
	c := controller.New(
		processor.NewFactory(
			selector.NewWithHistogramDistribution(
				histogram.WithExplicitBoundaries(config.DefaultHistogramBoundaries),
			),
			aggregation.CumulativeTemporalitySelector(),
			processor.WithMemory(true),
		),
		controller.WithResource(r),
		// collect on every scrape
		controller.WithCollectPeriod(0),
	)
	return prometheus.New(config, c)
}

// SetupPrometheusMetrics installs a Prometheus backed global meter provider.
// The exporter serves the scrape endpoint.
func SetupPrometheusMetrics(appId string) (*prometheus.Exporter, error) {
	exporter, err := newPrometheusExporter(appId)
	if err != nil {
		klog.ErrorS(err, "failed to initialize prometheus exporter")
		return nil, err
	}
	global.SetMeterProvider(exporter.MeterProvider())
	return exporter, nil
}
