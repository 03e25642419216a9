package runtime

import (
	components_middleware "stanclient/pkg/components/middleware"
	"stanclient/pkg/components/pubsub"
)

type (
	// runtimeOpts encapsulates the components to include in the runtime.
	runtimeOpts struct {
		pubsubs          []pubsub.PubSubDefinition
		pubsubMiddleware []components_middleware.Middleware
	}

	// Option is a function that customizes the runtime.
	Option func(o *runtimeOpts)
)

// WithPubSubs adds pubsub components to the runtime.
func WithPubSubs(pubsubs ...pubsub.PubSubDefinition) Option {
	return func(o *runtimeOpts) {
		o.pubsubs = append(o.pubsubs, pubsubs...)
	}
}

// WithPubsubMiddleware adds subscriber middleware components to the runtime.
func WithPubsubMiddleware(middleware ...components_middleware.Middleware) Option {
	return func(o *runtimeOpts) {
		o.pubsubMiddleware = append(o.pubsubMiddleware, middleware...)
	}
}
