package runtime

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) ConfigBuilder {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := NewRuntimeConfigBuilder()
	c.AttachCmdFlags(fs.StringVar, fs.BoolVar, fs.IntVar)
	require.NoError(t, fs.Parse(args))
	return c
}

func TestConfigBuilder_Build(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := parseFlags(t, "-components-path", "./components")
		cfg, err := c.Build()
		require.NoError(t, err)
		assert.Equal(t, Config{
			ComponentsPath: "./components",
			AppID:          defaultAppID,
			HealthzPort:    defaultHealthzPort,
			MetricsPort:    defaultMetricsPort,
			EnableMetrics:  true,
		}, cfg)
	})

	t.Run("flags", func(t *testing.T) {
		c := parseFlags(t, "-components-path", "c", "-config", "cfg.yaml", "-app-id", "orders",
			"-healthz-port", "0", "-metrics-port", "9100", "-enable-metrics=false")
		cfg, err := c.Build()
		require.NoError(t, err)
		assert.Equal(t, "cfg.yaml", cfg.Config)
		assert.Equal(t, "orders", cfg.AppID)
		assert.Equal(t, 0, cfg.HealthzPort)
		assert.Equal(t, 9100, cfg.MetricsPort)
		assert.False(t, cfg.EnableMetrics)
	})

	t.Run("environment wins over flags", func(t *testing.T) {
		t.Setenv("STANSUB_COMPONENTS_PATH", "/etc/stansub")
		t.Setenv("STANSUB_APP_ID", "billing")
		t.Setenv("STANSUB_HEALTHZ_PORT", "9090")
		t.Setenv("STANSUB_METRICS_PORT", "0")
		t.Setenv("STANSUB_ENABLE_METRICS", "false")
		c := parseFlags(t, "-components-path", "c", "-app-id", "orders")
		cfg, err := c.Build()
		require.NoError(t, err)
		assert.Equal(t, "/etc/stansub", cfg.ComponentsPath)
		assert.Equal(t, "billing", cfg.AppID)
		assert.Equal(t, 9090, cfg.HealthzPort)
		assert.Equal(t, 0, cfg.MetricsPort)
		assert.False(t, cfg.EnableMetrics)
	})

	t.Run("invalid environment", func(t *testing.T) {
		t.Setenv("STANSUB_HEALTHZ_PORT", "http")
		c := parseFlags(t, "-components-path", "c")
		_, err := c.Build()
		assert.Error(t, err)
	})

	tests := []struct {
		name string
		args []string
	}{
		{"missing components path", nil},
		{"empty app id", []string{"-components-path", "c", "-app-id", ""}},
		{"negative port", []string{"-components-path", "c", "-healthz-port", "-1"}},
		{"metrics port out of range", []string{"-components-path", "c", "-metrics-port", "70000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := parseFlags(t, tt.args...)
			_, err := c.Build()
			assert.Error(t, err)
		})
	}
}
