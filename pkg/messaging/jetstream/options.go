package jetstream

import (
	"time"

	"stanclient/pkg/messaging"
)

type options struct {
	natsURL      string
	connectWait  time.Duration
	consumerID   string
	subscription messaging.SubscriptionOptions
}

// subscriptionOptions freezes the options of one subscription, the component
// ones when the caller passes none. The consumer id stays the default durable
// name either way.
func (o options) subscriptionOptions(caller *messaging.SubscriptionOptions) messaging.SubscriptionOptions {
	if caller == nil {
		return o.subscription.Copy()
	}
	opts := messaging.CopyOf(caller)
	if !opts.IsDurable() && o.consumerID != "" {
		_ = opts.SetDurableName(o.consumerID)
	}
	return opts
}
