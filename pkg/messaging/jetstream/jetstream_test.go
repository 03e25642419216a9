package jetstream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stanclient/pkg/messaging"
)

func runBasicJetStreamServer(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("jetstream server not ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func newTestPubSub(t *testing.T, subjects ...string) *jetStreamPubSub {
	srv := runBasicJetStreamServer(t)
	natsConn, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	sut := &jetStreamPubSub{
		options:  options{subscription: messaging.DefaultSubscriptionOptions()},
		registry: messaging.NewRegistry(),
	}
	require.NoError(t, sut.attach(natsConn))
	_, err = sut.js.AddStream(&nats.StreamConfig{Name: "ORDERS", Subjects: subjects})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sut.Close() })
	return sut
}

func Test_jetStreamPubSub_parseMetadata(t *testing.T) {
	durable := messaging.DefaultSubscriptionOptions()
	_ = durable.SetDurableName("consumerID")

	tests := []struct {
		name       string
		properties map[string]string
		want       options
		wantErr    bool
	}{
		{
			"missing url",
			map[string]string{},
			options{},
			true,
		},
		{
			"consumer id becomes the default durable name",
			map[string]string{
				natsURL:    "nats://foo.bar:4222",
				consumerID: "consumerID",
			},
			options{natsURL: "nats://foo.bar:4222", connectWait: nats.DefaultTimeout, consumerID: "consumerID", subscription: durable},
			false,
		},
		{
			"should parse ok without consumer id",
			map[string]string{
				natsURL:     "nats://foo.bar:4222",
				connectWait: "5s",
			},
			options{natsURL: "nats://foo.bar:4222", connectWait: 5 * time.Second, subscription: messaging.DefaultSubscriptionOptions()},
			false,
		},
		{
			"invalid ack wait",
			map[string]string{
				natsURL:                  "nats://foo.bar:4222",
				messaging.AckWaitTimeKey: "10ms",
			},
			options{},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMetadata(tt.properties)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_options_subscriptionOptions(t *testing.T) {
	component := options{consumerID: "app", subscription: messaging.DefaultSubscriptionOptions()}
	_ = component.subscription.SetDurableName("app")

	named := messaging.DefaultSubscriptionOptions()
	_ = named.SetDurableName("worker")
	manual := messaging.DefaultSubscriptionOptions()
	manual.SetManualAckMode(true)

	tests := []struct {
		name        string
		component   options
		caller      *messaging.SubscriptionOptions
		wantDurable string
		wantManual  bool
	}{
		{"component options without caller ones", component, nil, "app", false},
		{"caller options keep the consumer id durable", component, &manual, "app", true},
		{"caller durable name wins", component, &named, "worker", false},
		{"no consumer id", options{subscription: messaging.DefaultSubscriptionOptions()}, &manual, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.component.subscriptionOptions(tt.caller)
			assert.Equal(t, tt.wantDurable, got.DurableName())
			assert.Equal(t, tt.wantManual, got.ManualAcks())
		})
	}
	assert.Equal(t, "", manual.DurableName())
}

func Test_jetStreamSubOptions(t *testing.T) {
	t.Run("durable manual ack", func(t *testing.T) {
		o := messaging.DefaultSubscriptionOptions()
		require.NoError(t, o.SetDurableName("worker"))
		o.SetManualAckMode(true)
		opts, err := jetStreamSubOptions(o, "orders.created", time.Now())
		assert.NoError(t, err)
		// durable, start, manual ack, ack policy, ack wait, max ack pending
		assert.Len(t, opts, 6)
	})

	t.Run("defaults", func(t *testing.T) {
		opts, err := jetStreamSubOptions(messaging.DefaultSubscriptionOptions(), "orders.created", time.Now())
		assert.NoError(t, err)
		assert.Len(t, opts, 4)
	})
}

func Test_durableName(t *testing.T) {
	assert.Equal(t, "worker__orders_created", durableName("worker", "orders.created"))
}

func collect(t *testing.T, n int) (messaging.Handler, func() []*messaging.Msg) {
	var mu sync.Mutex
	var got []*messaging.Msg
	done := make(chan struct{})
	handler := func(ctx context.Context, msg *messaging.Msg) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
		if len(got) == n {
			close(done)
		}
		return nil
	}
	wait := func() []*messaging.Msg {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for %d messages", n)
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]*messaging.Msg(nil), got...)
	}
	return handler, wait
}

func Test_jetStreamPubSub_Subscribe_deliver_all_with_manual_acks(t *testing.T) {
	sut := newTestPubSub(t, "orders.*")
	subject := "orders.created"
	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, sut.Publish(subject, []byte(p)))
	}

	o := messaging.DefaultSubscriptionOptions()
	o.DeliverAllAvailable()
	o.SetManualAckMode(true)
	handler, wait := collect(t, 3)

	sub, err := sut.Subscribe(subject, handler, &o)
	require.NoError(t, err)

	msgs := wait()
	for i, msg := range msgs {
		assert.Equal(t, uint64(i+1), msg.Sequence())
		assert.Equal(t, subject, msg.Subject())
		assert.False(t, msg.Redelivered())
		assert.NoError(t, msg.Ack())
	}
	assert.Equal(t, "one", string(msgs[0].Data()))

	assert.NoError(t, sub.Unsubscribe())
	assert.Equal(t, messaging.ErrNoSubscription, msgs[0].Ack())
}

func Test_jetStreamPubSub_Subscribe_start_at_sequence(t *testing.T) {
	sut := newTestPubSub(t, "orders.*")
	subject := "orders.created"
	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, sut.Publish(subject, []byte(p)))
	}

	o := messaging.DefaultSubscriptionOptions()
	o.StartAtSequence(2)
	handler, wait := collect(t, 2)

	sub, err := sut.Subscribe(subject, handler, &o)
	require.NoError(t, err)
	defer sub.Close()

	msgs := wait()
	assert.Equal(t, uint64(2), msgs[0].Sequence())
	assert.Equal(t, "two", string(msgs[0].Data()))
	assert.Equal(t, uint64(3), msgs[1].Sequence())
}
