package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/unit"
)

const meterName = "stanclient/subscriber"

type subscriberMetrics struct {
	meter              metric.Meter
	receivedCount      metric.Int64Counter
	ackCount           metric.Int64Counter
	processingDuration metric.Int64Histogram
}

var (
	initOnce sync.Once
	s        *subscriberMetrics
)

// DefaultSubscriberMetrics returns the instruments bound to the global meter
// provider at first use.
func DefaultSubscriberMetrics() *subscriberMetrics {
	initOnce.Do(func() {
		s = newSubscriberMetrics(global.Meter(meterName))
	})
	return s
}

func newSubscriberMetrics(meter metric.Meter) *subscriberMetrics {
	m := metric.Must(meter)
	return &subscriberMetrics{
		meter: meter,
		receivedCount: m.NewInt64Counter("subscriber.received.count",
			metric.WithDescription("The number of delivered messages")),
		ackCount: m.NewInt64Counter("subscriber.ack.count",
			metric.WithDescription("The number of manual acknowledgments sent")),
		processingDuration: m.NewInt64Histogram("subscriber.processing.duration",
			metric.WithDescription("The duration of a message execution"),
			metric.WithUnit(unit.Milliseconds)),
	}
}

func (s *subscriberMetrics) RecordReceived(ctx context.Context, subject string, redelivered bool) {
	s.meter.RecordBatch(
		ctx,
		[]attribute.KeyValue{
			attribute.String("subject", subject),
			attribute.Bool("redelivered", redelivered),
		},
		s.receivedCount.Measurement(1))
}

func (s *subscriberMetrics) RecordProcessingTime(ctx context.Context, subject string, success bool, elapsed time.Duration) {
	s.meter.RecordBatch(
		ctx,
		[]attribute.KeyValue{
			attribute.String("subject", subject),
			attribute.Bool("success", success),
		},
		s.processingDuration.Measurement(elapsed.Milliseconds()))
}

func (s *subscriberMetrics) RecordAck(ctx context.Context, subject string, success bool) {
	s.meter.RecordBatch(
		ctx,
		[]attribute.KeyValue{
			attribute.String("subject", subject),
			attribute.Bool("success", success),
		},
		s.ackCount.Measurement(1))
}

func SetNoopMeterProvider() {
	global.SetMeterProvider(metric.NewNoopMeterProvider())
}
