package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscription struct {
	subject string
	acked   []uint64
	ackErr  error
}

func (f *fakeSubscription) Subject() string              { return f.subject }
func (f *fakeSubscription) Options() SubscriptionOptions { return DefaultSubscriptionOptions() }
func (f *fakeSubscription) Unsubscribe() error           { return nil }
func (f *fakeSubscription) Close() error                 { return nil }
func (f *fakeSubscription) IsValid() bool                { return true }

func (f *fakeSubscription) Ack(msg *Msg) error {
	f.acked = append(f.acked, msg.Sequence())
	return f.ackErr
}

func TestMsg_Accessors(t *testing.T) {
	ts := time.Date(2022, 3, 4, 5, 6, 7, 891, time.UTC)
	msg := NewDetachedMsg(Record{
		Sequence:    12,
		Subject:     "orders",
		Data:        []byte("payload"),
		Timestamp:   ts.UnixNano(),
		Redelivered: true,
	})

	assert.Equal(t, uint64(12), msg.Sequence())
	assert.Equal(t, "orders", msg.Subject())
	assert.Equal(t, []byte("payload"), msg.Data())
	assert.True(t, msg.Redelivered())
	assert.Equal(t, ts.UnixNano(), msg.Timestamp())
	assert.Equal(t, ts, msg.Time())
}

func TestMsg_Time(t *testing.T) {
	tests := []struct {
		name string
		ts   int64
		want time.Time
	}{
		{"epoch", 0, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"one second", int64(time.Second), time.Date(1970, 1, 1, 0, 0, 1, 0, time.UTC)},
		{"sub tick precision", 150, time.Date(1970, 1, 1, 0, 0, 0, 150, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDetachedMsg(Record{Timestamp: tt.ts}).Time()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestMsg_Data_empty(t *testing.T) {
	msg := NewDetachedMsg(Record{})
	assert.NotNil(t, msg.Data())
	assert.Len(t, msg.Data(), 0)
}

func TestMsg_Ack(t *testing.T) {
	t.Run("detached message", func(t *testing.T) {
		msg := NewDetachedMsg(Record{Sequence: 1})
		_, ok := msg.Subscription()
		assert.False(t, ok)
		assert.Equal(t, ErrNoSubscription, msg.Ack())
	})

	t.Run("routes to the owning subscription", func(t *testing.T) {
		registry := NewRegistry()
		sub := &fakeSubscription{subject: "orders"}
		msg := NewMsg(Record{Sequence: 4}, registry.Register(sub))

		owner, ok := msg.Subscription()
		require.True(t, ok)
		assert.Equal(t, Subscription(sub), owner)
		assert.NoError(t, msg.Ack())
		assert.Equal(t, []uint64{4}, sub.acked)
	})

	t.Run("ack error is returned", func(t *testing.T) {
		registry := NewRegistry()
		boom := errors.New("boom")
		msg := NewMsg(Record{Sequence: 1}, registry.Register(&fakeSubscription{ackErr: boom}))
		assert.Equal(t, boom, msg.Ack())
	})

	t.Run("subscription gone", func(t *testing.T) {
		registry := NewRegistry()
		sub := &fakeSubscription{}
		handle := registry.Register(sub)
		msg := NewMsg(Record{Sequence: 1}, handle)
		require.True(t, registry.Unregister(handle))

		assert.Equal(t, ErrNoSubscription, msg.Ack())
		assert.Empty(t, sub.acked)
	})
}
