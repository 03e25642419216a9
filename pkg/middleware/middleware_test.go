package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"stanclient/internal/metrics"
	components_middleware "stanclient/pkg/components/middleware"
	"stanclient/pkg/messaging"
)

func testMsg() *messaging.Msg {
	return messaging.NewDetachedMsg(messaging.Record{
		Sequence:    7,
		Subject:     "orders.created",
		Data:        []byte(`{"id":1}`),
		Timestamp:   time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano(),
		Redelivered: true,
	})
}

func attrs(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestSubscriberTracingMiddleware(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	ctx := messaging.WithTopic(context.Background(), "orders.*")

	tests := []struct {
		name     string
		err      error
		wantCode codes.Code
	}{
		{"success", nil, codes.Ok},
		{"handler error", errors.New("boom"), codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inner context.Context
			h := SubscriberTracingMiddleware()(func(ctx context.Context, msg *messaging.Msg) error {
				inner = ctx
				return tt.err
			})
			err := h(ctx, testMsg())
			assert.Equal(t, tt.err, err)

			spans := sr.Ended()
			require.NotEmpty(t, spans)
			span := spans[len(spans)-1]
			assert.Equal(t, "orders.* receive", span.Name())
			assert.Equal(t, tt.wantCode, span.Status().Code)
			assert.Equal(t, span.SpanContext().SpanID(), traceSpanID(inner))

			a := attrs(span.Attributes())
			assert.Equal(t, "orders.created", a["messaging.destination"].AsString())
			assert.Equal(t, "7", a["messaging.message_id"].AsString())
			assert.Equal(t, `{"id":1}`, a["messaging.message_payload"].AsString())
			assert.True(t, a["messaging.redelivered"].AsBool())
			assert.Equal(t, "orders.*", messaging.TopicFromContext(inner))
		})
	}
}

func TestSubscriberMetricsMiddleware(t *testing.T) {
	metrics.SetNoopMeterProvider()
	boom := errors.New("boom")
	h := SubscriberMetricsMiddleware()(func(ctx context.Context, msg *messaging.Msg) error {
		return boom
	})
	assert.Equal(t, boom, h(context.Background(), testMsg()))
}

func TestSubscriberLoggingMiddleware(t *testing.T) {
	for _, printPayload := range []bool{false, true} {
		called := false
		h := SubscriberLoggingMiddleware(printPayload)(func(ctx context.Context, msg *messaging.Msg) error {
			called = true
			return nil
		})
		assert.NoError(t, h(context.Background(), testMsg()))
		assert.True(t, called)
	}
}

func TestSubjectOf(t *testing.T) {
	ctx := messaging.WithTopic(context.Background(), "orders.*")
	assert.Equal(t, "orders.created", subjectOf(ctx, testMsg()))
	assert.Equal(t, "orders.*", subjectOf(ctx, messaging.NewDetachedMsg(messaging.Record{})))
}

func traceSpanID(ctx context.Context) trace.SpanID {
	return trace.SpanContextFromContext(ctx).SpanID()
}

func TestDefinitions(t *testing.T) {
	registry := components_middleware.NewRegistry()
	registry.Register(Definitions(false)...)

	for _, name := range []string{"logging", "tracing", "metrics"} {
		mw, err := registry.Create("middleware.pubsub."+name, "", map[string]string{printPayloadKey: "true"})
		require.NoError(t, err, name)
		assert.NotNil(t, mw)
	}
}
