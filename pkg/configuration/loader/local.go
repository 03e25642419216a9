package loader

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"stanclient/pkg/configuration"
)

// LoadDefaultConfiguration returns the configuration used without a config
// file: metrics on, tracing off, no extra middlewares.
func LoadDefaultConfiguration() configuration.Spec {
	return configuration.Spec{
		MetricSpec: configuration.MetricSpec{
			Enabled: true,
		},
	}
}

// LoadStandaloneConfiguration reads a yaml configuration file, expanding
// environment variables first. An empty path gives the default configuration.
func LoadStandaloneConfiguration(path string) (configuration.Spec, error) {
	spec := LoadDefaultConfiguration()
	if path == "" {
		return spec, nil
	}

	b, err := ioutil.ReadFile(path)
	if err != nil {
		return spec, errors.Wrap(err, "reading configuration")
	}
	b = []byte(os.ExpandEnv(string(b)))

	cfg := configuration.Configuration{Spec: spec}
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return spec, errors.Wrapf(err, "parsing configuration %s", path)
	}
	if _, err = cfg.Spec.TracingSpec.SamplingRatio(); err != nil {
		return spec, err
	}
	return cfg.Spec, nil
}
