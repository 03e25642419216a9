package configuration

type Configuration struct {
	Spec Spec `json:"spec" yaml:"spec"`
}

type Spec struct {
	SubscriberPipelineSpec PipelineSpec  `json:"subscriberPipeline,omitempty" yaml:"subscriberPipeline,omitempty"`
	TracingSpec            TracingSpec   `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	MetricSpec             MetricSpec    `json:"metric,omitempty" yaml:"metric,omitempty"`
	Features               []FeatureSpec `json:"features,omitempty" yaml:"features,omitempty"`
}

// PipelineSpec lists the middlewares wrapped around every subscription
// handler, outermost first.
type PipelineSpec struct {
	Handlers []HandlerSpec `json:"handlers" yaml:"handlers"`
}

// HandlerSpec names a middleware component. Type is the registered name such
// as middleware.pubsub.logging.
type HandlerSpec struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

type TracingSpec struct {
	// SamplingRate is a ratio between 0 and 1, empty meaning always sample.
	SamplingRate string     `json:"samplingRate" yaml:"samplingRate"`
	Jaeger       JaegerSpec `json:"jaeger" yaml:"jaeger"`
}

type JaegerSpec struct {
	// CollectorEndpoint is the HTTP collector url. Tracing is off when empty.
	CollectorEndpoint string `json:"collectorEndpoint" yaml:"collectorEndpoint"`
}

type MetricSpec struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type Feature string

type FeatureSpec struct {
	Name    Feature `json:"name" yaml:"name"`
	Enabled bool    `json:"enabled" yaml:"enabled"`
}
