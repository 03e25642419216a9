package runtime

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"stanclient/pkg/configuration"
	"stanclient/pkg/healthcheck"
	"stanclient/pkg/messaging"
	"stanclient/pkg/runtime/service"
)

// DefaultSubscriberPipeline is used when the configuration names no handlers.
var DefaultSubscriberPipeline = []configuration.HandlerSpec{
	{Name: "logging", Type: "middleware.pubsub.logging"},
	{Name: "tracing", Type: "middleware.pubsub.tracing"},
	{Name: "metrics", Type: "middleware.pubsub.metrics"},
}

type runtime struct {
	config        Config
	configuration configuration.Spec
	manager       *ComponentsManager

	subscriptions []messaging.Subscription
}

func NewRuntime(config Config, manager *ComponentsManager, configuration configuration.Spec) *runtime {
	return &runtime{
		config:        config,
		configuration: configuration,
		manager:       manager,
	}
}

// Run starts every subscription of the manifest and serves /healthz until ctx
// is done, then closes subscriptions and components.
func (rt *runtime) Run(ctx context.Context, handler messaging.Handler) error {
	pipeline, err := rt.buildPipeline()
	if err != nil {
		_ = rt.manager.Close()
		return err
	}
	if err := rt.subscribe(pipeline, handler); err != nil {
		rt.close()
		return err
	}
	klog.InfoS("Runtime started", "app id", rt.config.AppID, "subscriptions", len(rt.subscriptions))

	g, ctx := errgroup.WithContext(ctx)
	if rt.config.HealthzPort > 0 {
		g.Go(func() error {
			return healthcheck.Run(ctx, rt.config.HealthzPort,
				healthcheck.WithChecker("components", rt.manager),
				healthcheck.WithCheckers(rt.manager.HealthCheckers()))
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		rt.close()
		return nil
	})
	return g.Wait()
}

func (rt *runtime) buildPipeline() (messaging.Pipeline, error) {
	handlers := rt.configuration.SubscriberPipelineSpec.Handlers
	if len(handlers) == 0 {
		handlers = DefaultSubscriberPipeline
	}
	pipeline := messaging.Pipeline{}
	for _, h := range handlers {
		mw, err := rt.manager.GetMiddleware(h)
		if err != nil {
			return pipeline, errors.Wrapf(err, "building subscriber pipeline")
		}
		klog.V(4).InfoS("Subscriber middleware added", "name", h.Name, "type", h.Type)
		pipeline.UseMiddleware(mw)
	}
	return pipeline, nil
}

func (rt *runtime) subscribe(pipeline messaging.Pipeline, handler messaging.Handler) error {
	for _, spec := range rt.manager.Subscriptions() {
		ps, ok := rt.manager.GetPubSub(spec.PubsubName)
		if !ok {
			return errors.Errorf("cannot find pubsub named %s", spec.PubsubName)
		}
		component, _ := rt.manager.GetPubSubSpec(spec.PubsubName)
		srv := service.NewSubscriberService(ps, pipeline, component.Metadata)
		sub, err := srv.StartSubscribing(spec, handler)
		if err != nil {
			return err
		}
		rt.subscriptions = append(rt.subscriptions, sub)
	}
	return nil
}

func (rt *runtime) close() {
	for _, sub := range rt.subscriptions {
		if err := sub.Close(); err != nil && err != messaging.ErrBadSubscription {
			klog.ErrorS(err, "Error closing subscription", "subject", sub.Subject())
		}
	}
	rt.subscriptions = nil
	if err := rt.manager.Close(); err != nil {
		klog.ErrorS(err, "Error closing components")
	}
	klog.Info("Runtime stopped")
}
