package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"stanclient/internal/diagnostics"
	"stanclient/internal/tracing"
	"stanclient/internal/version"
	components_loader "stanclient/pkg/components/loader"
	"stanclient/pkg/configuration"
	configuration_loader "stanclient/pkg/configuration/loader"
	"stanclient/pkg/runtime"
)

func main() {
	//https://github.com/kubernetes/community/blob/master/contributors/devel/sig-instrumentation/logging.md
	klog.InitFlags(nil)
	defer klog.Flush()

	cfgBuilder := runtime.NewRuntimeConfigBuilder()
	cfgBuilder.AttachCmdFlags(flag.StringVar, flag.BoolVar, flag.IntVar)
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(&cfgBuilder); err != nil {
		klog.ErrorS(err, "stansub stopped with error")
		klog.Flush()
		os.Exit(1)
	}
}

func run(cfgBuilder *runtime.ConfigBuilder) error {
	cfg, err := cfgBuilder.Build()
	if err != nil {
		return err
	}

	spec, err := configuration_loader.LoadStandaloneConfiguration(cfg.Config)
	if err != nil {
		return err
	}
	if !cfg.EnableMetrics {
		spec.MetricSpec.Enabled = false
	}

	shutdown, metricsHandler, err := diagnostics.Setup(spec, cfg.AppID, tracing.SetJaegerTracing(cfg.AppID))
	if err != nil {
		return err
	}
	defer shutdown()

	printPayload := configuration.IsFeatureEnabled(spec.Features, configuration.PrintPayload)
	manager, err := runtime.NewComponentsManager(cfg.AppID,
		components_loader.LoadLocalComponents(cfg.ComponentsPath),
		RegisterComponentFactories(printPayload)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	klog.InfoS("stansub is starting", "version", version.String(), "app id", cfg.AppID,
		"components path", cfg.ComponentsPath, "healthz port", cfg.HealthzPort, "metrics port", cfg.MetricsPort)
	rt := runtime.NewRuntime(cfg, manager, spec)

	g, ctx := errgroup.WithContext(ctx)
	if metricsHandler != nil && cfg.MetricsPort > 0 {
		g.Go(func() error {
			return diagnostics.Run(ctx, cfg.MetricsPort, metricsHandler)
		})
	}
	g.Go(func() error {
		return rt.Run(ctx, newPrinter(os.Stdout).Handle)
	})
	return g.Wait()
}
