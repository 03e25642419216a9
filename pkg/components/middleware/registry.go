package middleware

import (
	"strings"

	"github.com/pkg/errors"

	"stanclient/pkg/components"
	"stanclient/pkg/messaging"
)

type (
	// Middleware is a subscriber middleware component definition.
	Middleware struct {
		Name          string
		FactoryMethod func(properties map[string]string) messaging.Middleware
	}

	Registry interface {
		Register(components ...Middleware)
		Create(name, version string, properties map[string]string) (messaging.Middleware, error)
	}

	pubsubMiddlewareRegistry struct {
		middleware map[string]func(properties map[string]string) messaging.Middleware
	}
)

func New(name string, factoryMethod func(properties map[string]string) messaging.Middleware) Middleware {
	return Middleware{
		Name:          name,
		FactoryMethod: factoryMethod,
	}
}

func NewRegistry() Registry {
	return &pubsubMiddlewareRegistry{
		middleware: map[string]func(properties map[string]string) messaging.Middleware{},
	}
}

// Register registers middlewares under middleware.pubsub.<name>.
func (p *pubsubMiddlewareRegistry) Register(components ...Middleware) {
	for _, component := range components {
		p.middleware[createFullName(component.Name)] = component.FactoryMethod
	}
}

func (p *pubsubMiddlewareRegistry) Create(name, version string, properties map[string]string) (messaging.Middleware, error) {
	if method, ok := p.getMiddleware(name, version); ok {
		return method(properties), nil
	}
	return nil, errors.Errorf("pubsub middleware %s/%s has not been registered", name, version)
}

func (p *pubsubMiddlewareRegistry) getMiddleware(name, version string) (func(properties map[string]string) messaging.Middleware, bool) {
	nameLower := strings.ToLower(name)
	versionLower := strings.ToLower(version)
	if fn, ok := p.middleware[nameLower+"/"+versionLower]; ok {
		return fn, true
	}
	if components.IsInitialVersion(versionLower) {
		fn, ok := p.middleware[nameLower]
		return fn, ok
	}
	return nil, false
}

func createFullName(name string) string {
	return strings.ToLower("middleware.pubsub." + name)
}
