package messaging

import (
	"context"
)

type topicKey struct{}

type Handler func(ctx context.Context, msg *Msg) error

// Subscription is a live subscription as seen by its messages and its owner.
type Subscription interface {
	Subject() string
	// Options returns the copy frozen at subscribe time.
	Options() SubscriptionOptions
	// Ack transmits the acknowledgment for msg when the subscription is in
	// manual ack mode and does nothing otherwise.
	Ack(msg *Msg) error
	// Unsubscribe removes the interest, durable state included.
	Unsubscribe() error
	// Close closes the subscription when LeaveOpen is set, so a durable
	// subscription can be resumed, and unsubscribes otherwise.
	Close() error
	IsValid() bool
}

type Publisher interface {
	Publish(subject string, data []byte) error
}

type Subscriber interface {
	Subscribe(subject string, handler Handler, options *SubscriptionOptions) (Subscription, error)
}

// QueueSubscriber is implemented by transports that support queue groups.
type QueueSubscriber interface {
	QueueSubscribe(subject, queue string, handler Handler, options *SubscriptionOptions) (Subscription, error)
}

type PubSub interface {
	Publisher
	Subscriber
	Init(properties map[string]string) error
	Close() error
}

// WithTopic stores the subject a handler runs for in ctx.
func WithTopic(ctx context.Context, topic string) context.Context {
	return context.WithValue(ctx, topicKey{}, topic)
}

func TopicFromContext(ctx context.Context) string {
	topic, _ := ctx.Value(topicKey{}).(string)
	return topic
}
