package middleware

import (
	"context"
	"time"

	"k8s.io/klog/v2"
	utilstrings "k8s.io/utils/strings"

	"stanclient/pkg/messaging"
)

// SubscriberLoggingMiddleware logs each delivery and handler failures. With
// printPayload the shortened payload is part of the entry.
func SubscriberLoggingMiddleware(printPayload bool) messaging.Middleware {
	return func(next messaging.Handler) messaging.Handler {
		return func(ctx context.Context, msg *messaging.Msg) error {
			kv := []interface{}{
				"topic", messaging.TopicFromContext(ctx),
				"subject", msg.Subject(),
				"sequence", msg.Sequence(),
				"redelivered", msg.Redelivered(),
				"timestamp", msg.Time().Format(time.RFC3339Nano),
			}
			if printPayload {
				kv = append(kv, "payload", utilstrings.ShortenString(string(msg.Data()), maxPayloadSize))
			}
			klog.InfoS("Message received", kv...)

			err := next(ctx, msg)
			if err != nil {
				klog.ErrorS(err, "Error handling message", "subject", msg.Subject(), "sequence", msg.Sequence())
			}
			return err
		}
	}
}
