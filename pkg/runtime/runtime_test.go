package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stanclient/pkg/components"
	"stanclient/pkg/configuration"
	"stanclient/pkg/messaging"
	"stanclient/pkg/middleware"
)

func newTestManager(t *testing.T, subscriptions ...components.SubscriptionSpec) *ComponentsManager {
	t.Helper()
	m, err := NewComponentsManager("app", staticLoader(components.Manifest{
		Components:    []components.Spec{{Name: "bus", Type: "pubsub.inmemory"}},
		Subscriptions: subscriptions,
	}, nil), inMemoryOption(), WithPubsubMiddleware(middleware.Definitions(false)...))
	require.NoError(t, err)
	return m
}

func TestRuntime_Run(t *testing.T) {
	m := newTestManager(t, components.SubscriptionSpec{
		Name:       "orders",
		PubsubName: "bus",
		Topic:      "orders",
		Metadata: map[string]string{
			messaging.DeliverAllKey:  "true",
			messaging.ManualAckKey:   "true",
			messaging.AckWaitTimeKey: "1s",
		},
	})
	bus, _ := m.GetPubSub("bus")
	require.NoError(t, bus.Publish("orders", []byte("a")))
	require.NoError(t, bus.Publish("orders", []byte("b")))

	type delivery struct {
		topic       string
		sequence    uint64
		redelivered bool
	}
	deliveries := make(chan delivery, 10)
	failed := false
	handler := func(ctx context.Context, msg *messaging.Msg) error {
		deliveries <- delivery{messaging.TopicFromContext(ctx), msg.Sequence(), msg.Redelivered()}
		if msg.Sequence() == 1 && !failed {
			failed = true
			return errors.New("retry me")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := NewRuntime(Config{AppID: "app", HealthzPort: 0}, m, configuration.Spec{})
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx, handler) }()

	var got []delivery
	for len(got) < 3 {
		select {
		case d := <-deliveries:
			got = append(got, d)
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout: got %v", got)
		}
	}
	assert.Equal(t, []delivery{
		{"orders", 1, false},
		{"orders", 2, false},
		{"orders", 1, true},
	}, got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runtime did not stop")
	}
	_, ok := m.GetPubSub("bus")
	assert.False(t, ok)
}

func TestRuntime_Run_unknownMiddleware(t *testing.T) {
	m := newTestManager(t)
	rt := NewRuntime(Config{AppID: "app"}, m, configuration.Spec{
		SubscriberPipelineSpec: configuration.PipelineSpec{
			Handlers: []configuration.HandlerSpec{{Name: "upper", Type: "middleware.pubsub.uppercase"}},
		},
	})
	err := rt.Run(context.Background(), func(context.Context, *messaging.Msg) error { return nil })
	assert.Error(t, err)
	_, ok := m.GetPubSub("bus")
	assert.False(t, ok)
}

func TestRuntime_Run_invalidSubscription(t *testing.T) {
	m := newTestManager(t, components.SubscriptionSpec{
		Name:       "orders",
		PubsubName: "bus",
		Topic:      "orders",
		Metadata:   map[string]string{messaging.MaxInFlightKey: "zero"},
	})
	rt := NewRuntime(Config{AppID: "app"}, m, configuration.Spec{})
	err := rt.Run(context.Background(), func(context.Context, *messaging.Msg) error { return nil })
	assert.True(t, errors.Is(err, messaging.ErrInvalidOption))
}
