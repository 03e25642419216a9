package main

import (
	"stanclient/pkg/components/pubsub"
	"stanclient/pkg/messaging"
	"stanclient/pkg/messaging/jetstream"
	natsstreaming "stanclient/pkg/messaging/nats"
	"stanclient/pkg/middleware"
	"stanclient/pkg/runtime"
)

func RegisterComponentFactories(printPayload bool) (result []runtime.Option) {
	result = append(result,
		runtime.WithPubSubs(
			pubsub.New("natsstreaming", natsstreaming.NewNATSStreamingPubSub),
			pubsub.New("jetstream", jetstream.NewJetStreamPubSub),
			pubsub.New("inmemory", func() messaging.PubSub {
				return messaging.NewInMemoryBus()
			}),
		),
		runtime.WithPubsubMiddleware(middleware.Definitions(printPayload)...),
	)
	return
}
