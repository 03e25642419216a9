package service

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"stanclient/internal/metrics"
	"stanclient/pkg/components"
	"stanclient/pkg/messaging"
)

type subscriberService struct {
	subscriber messaging.Subscriber
	pipeline   messaging.Pipeline
	// defaults are the pub-sub component metadata subscription keys fall
	// back to.
	defaults map[string]string
}

func NewSubscriberService(subscriber messaging.Subscriber, pipeline messaging.Pipeline, defaults map[string]string) *subscriberService {
	return &subscriberService{subscriber, pipeline, defaults}
}

// StartSubscribing subscribes handler to spec.Topic through the pipeline.
// In manual ack mode a message is acknowledged once the pipeline returns
// without error; failed messages are left to redelivery.
func (srv *subscriberService) StartSubscribing(spec components.SubscriptionSpec, handler messaging.Handler) (messaging.Subscription, error) {
	opts, err := srv.options(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "subscription %s", spec.Name)
	}

	pipe := srv.pipeline.Build(handler)
	manual := opts != nil && opts.ManualAcks()
	wrapped := func(ctx context.Context, msg *messaging.Msg) error {
		err := pipe(ctx, msg)
		if err != nil {
			return err
		}
		if manual || isManual(msg) {
			ackErr := msg.Ack()
			metrics.DefaultSubscriberMetrics().RecordAck(ctx, msg.Subject(), ackErr == nil)
			if ackErr != nil {
				klog.ErrorS(ackErr, "Error acknowledging message", "subject", msg.Subject(), "sequence", msg.Sequence())
				return ackErr
			}
		}
		return nil
	}

	if spec.Queue != "" {
		qs, ok := srv.subscriber.(messaging.QueueSubscriber)
		if !ok {
			return nil, errors.Errorf("subscription %s: pubsub %s does not support queue groups", spec.Name, spec.PubsubName)
		}
		return qs.QueueSubscribe(spec.Topic, spec.Queue, wrapped, opts)
	}
	return srv.subscriber.Subscribe(spec.Topic, wrapped, opts)
}

// options merges the subscription metadata over the component defaults. Nil
// means the transport keeps its component level options.
func (srv *subscriberService) options(spec components.SubscriptionSpec) (*messaging.SubscriptionOptions, error) {
	if len(spec.Metadata) == 0 {
		return nil, nil
	}
	merged := make(map[string]string, len(srv.defaults)+len(spec.Metadata))
	for k, v := range srv.defaults {
		merged[k] = v
	}
	for k, v := range spec.Metadata {
		merged[k] = v
	}
	opts, err := messaging.SubscriptionOptionsFromMetadata(merged)
	if err != nil {
		return nil, err
	}
	return &opts, nil
}

// isManual asks the owning subscription, for component level options.
func isManual(msg *messaging.Msg) bool {
	sub, ok := msg.Subscription()
	if !ok {
		return false
	}
	opts := sub.Options()
	return opts.ManualAcks()
}
