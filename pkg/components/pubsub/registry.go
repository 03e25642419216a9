package pubsub

import (
	"strings"

	"github.com/pkg/errors"

	"stanclient/pkg/components"
	"stanclient/pkg/messaging"
)

type (
	// PubSubDefinition is a pub/sub component definition.
	PubSubDefinition struct {
		Name          string
		FactoryMethod func() messaging.PubSub
	}

	Registry interface {
		Register(components ...PubSubDefinition)
		Create(name, version string) (messaging.PubSub, error)
		Names() []string
	}

	pubSubRegistry struct {
		messageBuses map[string]func() messaging.PubSub
	}
)

func New(name string, factoryMethod func() messaging.PubSub) PubSubDefinition {
	return PubSubDefinition{
		Name:          name,
		FactoryMethod: factoryMethod,
	}
}

func NewRegistry() Registry {
	return &pubSubRegistry{
		messageBuses: map[string]func() messaging.PubSub{},
	}
}

// Register registers message buses under pubsub.<name>, optionally suffixed
// with /<version>.
func (p *pubSubRegistry) Register(components ...PubSubDefinition) {
	for _, component := range components {
		p.messageBuses[createFullName(component.Name)] = component.FactoryMethod
	}
}

// Create instantiates the pub/sub registered for a component type such as
// pubsub.natsstreaming.
func (p *pubSubRegistry) Create(name, version string) (messaging.PubSub, error) {
	if method, ok := p.getPubSub(name, version); ok {
		return method(), nil
	}
	return nil, errors.Errorf("couldn't find message bus %s/%s", name, version)
}

func (p *pubSubRegistry) Names() []string {
	names := make([]string, 0, len(p.messageBuses))
	for name := range p.messageBuses {
		names = append(names, name)
	}
	return names
}

func (p *pubSubRegistry) getPubSub(name, version string) (func() messaging.PubSub, bool) {
	nameLower := strings.ToLower(name)
	versionLower := strings.ToLower(version)
	if fn, ok := p.messageBuses[nameLower+"/"+versionLower]; ok {
		return fn, true
	}
	if components.IsInitialVersion(versionLower) {
		fn, ok := p.messageBuses[nameLower]
		return fn, ok
	}
	return nil, false
}

func createFullName(name string) string {
	return strings.ToLower("pubsub." + name)
}
