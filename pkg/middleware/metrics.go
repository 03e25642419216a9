package middleware

import (
	"context"
	"time"

	"stanclient/internal/metrics"
	"stanclient/pkg/messaging"
)

func SubscriberMetricsMiddleware() messaging.Middleware {
	return func(next messaging.Handler) messaging.Handler {
		return func(ctx context.Context, msg *messaging.Msg) error {
			m := metrics.DefaultSubscriberMetrics()
			subject := subjectOf(ctx, msg)
			m.RecordReceived(ctx, subject, msg.Redelivered())

			start := time.Now()
			err := next(ctx, msg)
			m.RecordProcessingTime(ctx, subject, err == nil, time.Since(start))
			return err
		}
	}
}

// subjectOf prefers the subject the broker reported over the subscribed one,
// they differ for wildcard subscriptions.
func subjectOf(ctx context.Context, msg *messaging.Msg) string {
	if s := msg.Subject(); s != "" {
		return s
	}
	return messaging.TopicFromContext(ctx)
}
