package runtime

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	envPrefix            = "stansub"
	defaultAppID         = "stansub"
	defaultHealthzPort   = 8080
	defaultMetricsPort   = 9090
	defaultEnableMetrics = true
)

type ConfigBuilder struct {
	componentsPath string
	config         string
	appID          string
	healthzPort    int
	metricsPort    int
	enableMetrics  bool
}

type Config struct {
	ComponentsPath string
	Config         string
	AppID          string
	// HealthzPort is where /healthz is served, 0 disables it.
	HealthzPort int
	// MetricsPort is where /metrics is served, 0 disables it.
	MetricsPort   int
	EnableMetrics bool
}

// envOverrides are read from STANSUB_* variables and win over flags.
type envOverrides struct {
	ComponentsPath string `envconfig:"COMPONENTS_PATH"`
	Config         string `envconfig:"CONFIG"`
	AppID          string `envconfig:"APP_ID"`
	HealthzPort    *int   `envconfig:"HEALTHZ_PORT"`
	MetricsPort    *int   `envconfig:"METRICS_PORT"`
	EnableMetrics  *bool  `envconfig:"ENABLE_METRICS"`
}

func NewRuntimeConfigBuilder() ConfigBuilder {
	return ConfigBuilder{
		appID:         defaultAppID,
		healthzPort:   defaultHealthzPort,
		metricsPort:   defaultMetricsPort,
		enableMetrics: defaultEnableMetrics,
	}
}

func (c *ConfigBuilder) AttachCmdFlags(
	stringVar func(p *string, name string, value string, usage string),
	boolVar func(p *bool, name string, value bool, usage string),
	intVar func(p *int, name string, value int, usage string)) {

	stringVar(&c.componentsPath, "components-path", "", "Path for the components and subscriptions directory")
	stringVar(&c.config, "config", "", "Path to a configuration file. Defaults apply when empty")
	stringVar(&c.appID, "app-id", defaultAppID, "A unique ID for this client, used as default queue group and durable base")
	intVar(&c.healthzPort, "healthz-port", defaultHealthzPort, "Sets the HTTP port for the healthz server, 0 disables it")
	intVar(&c.metricsPort, "metrics-port", defaultMetricsPort, "Sets the HTTP port for the prometheus metrics endpoint, 0 disables it")
	boolVar(&c.enableMetrics, "enable-metrics", defaultEnableMetrics, "Enable prometheus metrics endpoint")
}

func (c *ConfigBuilder) Build() (Config, error) {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return Config{}, errors.Wrap(err, "reading environment")
	}
	c.apply(env)

	if err := c.validate(); err != nil {
		return Config{}, err
	}

	return Config{
		ComponentsPath: c.componentsPath,
		Config:         c.config,
		AppID:          c.appID,
		HealthzPort:    c.healthzPort,
		MetricsPort:    c.metricsPort,
		EnableMetrics:  c.enableMetrics,
	}, nil
}

func (c *ConfigBuilder) apply(env envOverrides) {
	if env.ComponentsPath != "" {
		c.componentsPath = env.ComponentsPath
	}
	if env.Config != "" {
		c.config = env.Config
	}
	if env.AppID != "" {
		c.appID = env.AppID
	}
	if env.HealthzPort != nil {
		c.healthzPort = *env.HealthzPort
	}
	if env.MetricsPort != nil {
		c.metricsPort = *env.MetricsPort
	}
	if env.EnableMetrics != nil {
		c.enableMetrics = *env.EnableMetrics
	}
}

func (c *ConfigBuilder) validate() error {
	if c.appID == "" {
		return errors.New("app-id parameter cannot be empty")
	}
	if c.componentsPath == "" {
		return errors.New("components-path parameter cannot be empty")
	}
	if c.healthzPort < 0 || c.healthzPort > 65535 {
		return errors.Errorf("invalid healthz-port %d", c.healthzPort)
	}
	if c.metricsPort < 0 || c.metricsPort > 65535 {
		return errors.Errorf("invalid metrics-port %d", c.metricsPort)
	}
	return nil
}
