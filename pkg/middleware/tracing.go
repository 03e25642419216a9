package middleware

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
	utilstrings "k8s.io/utils/strings"

	"stanclient/pkg/messaging"
)

const (
	tracerName     = "tracing-middleware"
	maxPayloadSize = 500
)

func SubscriberTracingMiddleware() messaging.Middleware {
	tr := otel.Tracer(tracerName)

	return func(next messaging.Handler) messaging.Handler {
		return func(ctx context.Context, msg *messaging.Msg) error {
			topic := messaging.TopicFromContext(ctx)

			// https://github.com/open-telemetry/opentelemetry-specification/blob/main/specification/trace/semantic_conventions/messaging.md
			ctx, span := tr.Start(ctx,
				fmt.Sprintf("%s receive", topic),
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(
					attribute.String("component", "stanclient"),
					semconv.MessagingDestinationKey.String(subjectOf(ctx, msg)),
					semconv.MessagingDestinationKindTopic,
					semconv.MessagingOperationReceive,
					semconv.MessagingMessageIDKey.String(strconv.FormatUint(msg.Sequence(), 10)),
					attribute.Int("messaging.message_payload_size_bytes", len(msg.Data())),
					attribute.Bool("messaging.redelivered", msg.Redelivered())))
			defer span.End()

			if len(msg.Data()) > 0 {
				span.SetAttributes(attribute.Key("messaging.message_payload").
					String(utilstrings.ShortenString(string(msg.Data()), maxPayloadSize)))
			}

			klog.V(4).InfoS("subscriber tracing middleware", "topic", topic, "sequence", msg.Sequence())
			err := next(ctx, msg)

			if err == nil {
				span.SetStatus(codes.Ok, "")
			} else {
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
			}
			return err
		}
	}
}
