package diagnostics

import (
	"net/http"

	"k8s.io/klog/v2"

	"stanclient/internal/metrics"
	"stanclient/pkg/configuration"
)

// TracerFunc installs a tracer exporting to url and returns its stopper.
type TracerFunc func(url string, ratio float64) (func(), error)

// Setup applies the telemetry part of cfg. It returns the Prometheus scrape
// handler, nil when metrics are disabled, and a func flushing what was
// started, which is never nil.
func Setup(cfg configuration.Spec, appId string, tracerFunc TracerFunc) (func(), http.Handler, error) {
	var metricsHandler http.Handler
	if cfg.MetricSpec.Enabled {
		exporter, err := metrics.SetupPrometheusMetrics(appId)
		if err != nil {
			return func() {}, nil, err
		}
		metricsHandler = exporter
	} else {
		metrics.SetNoopMeterProvider()
	}

	endpoint := cfg.TracingSpec.Jaeger.CollectorEndpoint
	if endpoint == "" || tracerFunc == nil {
		return func() {}, metricsHandler, nil
	}
	ratio, err := cfg.TracingSpec.SamplingRatio()
	if err != nil {
		return func() {}, metricsHandler, err
	}
	stop, err := tracerFunc(endpoint, ratio)
	if err != nil {
		klog.ErrorS(err, "Error creating tracer", "endpoint", endpoint)
		return func() {}, metricsHandler, err
	}
	klog.InfoS("Tracing enabled", "endpoint", endpoint, "samplingRatio", ratio)
	return stop, metricsHandler, nil
}
