package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"stanclient/pkg/components"
	components_loader "stanclient/pkg/components/loader"
	components_middleware "stanclient/pkg/components/middleware"
	"stanclient/pkg/components/pubsub"
	"stanclient/pkg/configuration"
	"stanclient/pkg/healthcheck"
	"stanclient/pkg/messaging"
)

const consumerIDKey = "consumerID"

type ComponentsManager struct {
	appId           string
	pubSubInstances map[string]messaging.PubSub
	components      map[string]components.Spec
	subscriptions   []components.SubscriptionSpec
	mux             sync.RWMutex

	pubSubRegistry     pubsub.Registry
	middlewareRegistry components_middleware.Registry
}

// NewComponentsManager loads the manifest and initializes every pub-sub
// component in it. It fails on the first component that cannot be created.
func NewComponentsManager(appId string, componentsLoader components_loader.ComponentsLoader,
	opts ...Option) (*ComponentsManager, error) {

	var runtimeOpts runtimeOpts
	for _, opt := range opts {
		opt(&runtimeOpts)
	}

	manager := &ComponentsManager{
		appId:              appId,
		components:         map[string]components.Spec{},
		pubSubInstances:    map[string]messaging.PubSub{},
		pubSubRegistry:     pubsub.NewRegistry(),
		middlewareRegistry: components_middleware.NewRegistry(),
	}
	manager.pubSubRegistry.Register(runtimeOpts.pubsubs...)
	manager.middlewareRegistry.Register(runtimeOpts.pubsubMiddleware...)
	klog.V(4).InfoS("Components added to registry", "pubsubs", manager.pubSubRegistry.Names())

	manifest, err := componentsLoader()
	if err != nil {
		klog.ErrorS(err, "error loading components")
		return nil, err
	}
	for _, spec := range manifest.Components {
		if err := manager.addComponent(spec); err != nil {
			_ = manager.Close()
			return nil, errors.Wrapf(err, "component %s", spec.Name)
		}
	}
	for _, sub := range manifest.Subscriptions {
		if _, ok := manager.GetPubSub(sub.PubsubName); !ok {
			_ = manager.Close()
			return nil, errors.Errorf("subscription %s refers to unknown pubsub %s", sub.Name, sub.PubsubName)
		}
	}
	manager.subscriptions = manifest.Subscriptions
	return manager, nil
}

func (m *ComponentsManager) addComponent(spec components.Spec) error {
	klog.V(4).InfoS("adding component", "name", spec.Name, "type", spec.Type, "version", spec.Version)
	if _, exists := m.getComponent(spec.Type, spec.Name); exists {
		return errors.Errorf("duplicate component %s of type %s", spec.Name, spec.Type)
	}

	switch spec.Category() {
	case components.PubsubComponent:
		if err := m.initPubSub(spec); err != nil {
			return err
		}
	case components.MiddlewareComponent:
	default:
		return errors.Errorf("invalid category for component %s of type %s", spec.Name, spec.Type)
	}
	m.storeComponent(spec)
	return nil
}

func (m *ComponentsManager) initPubSub(spec components.Spec) error {
	pubSub, err := m.pubSubRegistry.Create(spec.Type, spec.Version)
	if err != nil {
		klog.Warningf("error creating pub sub %s (%s/%s): %s", spec.Name, spec.Type, spec.Version, err)
		return err
	}

	metadata := cloneMetadata(spec.Metadata)
	if _, ok := metadata[consumerIDKey]; !ok {
		metadata[consumerIDKey] = m.appId
	}
	if err = pubSub.Init(metadata); err != nil {
		klog.Warningf("error initializing pub sub %s/%s: %s", spec.Type, spec.Version, err)
		return err
	}

	m.mux.Lock()
	defer m.mux.Unlock()
	m.pubSubInstances[spec.Name] = pubSub
	return nil
}

func (m *ComponentsManager) getComponent(componentType string, name string) (components.Spec, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	c, ok := m.components[getComponentKey(componentType, name)]
	return c, ok
}

// GetPubSubSpec returns the component spec of a pub-sub by name.
func (m *ComponentsManager) GetPubSubSpec(name string) (components.Spec, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	for _, c := range m.components {
		if c.Name == name && c.Category() == components.PubsubComponent {
			return c, true
		}
	}
	return components.Spec{}, false
}

// GetMiddleware creates the middleware of a pipeline handler. A middleware
// component of the same name and type supplies its metadata; without one the
// middleware gets no properties.
func (m *ComponentsManager) GetMiddleware(middlewareSpec configuration.HandlerSpec) (messaging.Middleware, error) {
	var properties map[string]string
	if component, exists := m.getComponent(middlewareSpec.Type, middlewareSpec.Name); exists {
		properties = component.Metadata
	}
	return m.middlewareRegistry.Create(middlewareSpec.Type, middlewareSpec.Version, properties)
}

func (m *ComponentsManager) GetPubSub(pubsubName string) (messaging.PubSub, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	ps, ok := m.pubSubInstances[pubsubName]
	return ps, ok
}

func (m *ComponentsManager) Subscriptions() []components.SubscriptionSpec {
	return m.subscriptions
}

func (m *ComponentsManager) storeComponent(spec components.Spec) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.components[getComponentKey(spec.Type, spec.Name)] = spec
}

// HealthCheckers returns one checker per pub-sub instance that has one.
func (m *ComponentsManager) HealthCheckers() map[string]healthcheck.HealthChecker {
	m.mux.RLock()
	defer m.mux.RUnlock()
	checkers := map[string]healthcheck.HealthChecker{}
	for name, ps := range m.pubSubInstances {
		if hc, ok := ps.(healthcheck.HealthChecker); ok {
			checkers["pubsub/"+name] = hc
		}
	}
	return checkers
}

func (m *ComponentsManager) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	m.mux.RLock()
	empty := len(m.pubSubInstances) == 0
	m.mux.RUnlock()
	if empty {
		return healthcheck.HealthResult{
			Status:      healthcheck.Unhealthy,
			Description: "no pubsub instance created yet",
		}
	}

	var results []healthcheck.HealthResult
	for _, hc := range m.HealthCheckers() {
		results = append(results, hc.IsHealthy(ctx))
	}
	return healthcheck.Worst(results...)
}

// Close closes every pub-sub instance, which closes their subscriptions.
func (m *ComponentsManager) Close() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	var firstErr error
	for name, ps := range m.pubSubInstances {
		if err := ps.Close(); err != nil {
			klog.ErrorS(err, "Error closing pubsub", "name", name)
			if firstErr == nil {
				firstErr = err
			}
		}
		delete(m.pubSubInstances, name)
	}
	return firstErr
}

func cloneMetadata(metadata map[string]string) map[string]string {
	clone := make(map[string]string, len(metadata))
	for k, v := range metadata {
		clone[k] = v
	}
	return clone
}

func getComponentKey(ctype, name string) string {
	return fmt.Sprintf("%s-%s", ctype, name)
}
