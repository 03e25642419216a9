package messaging

import (
	"time"
)

// Record is a delivered message as the transport decoded it.
type Record struct {
	Sequence    uint64
	Subject     string
	Data        []byte
	Timestamp   int64 // nanoseconds since the Unix epoch
	Redelivered bool
}

// Msg is one message received on a subscription. It is an immutable snapshot;
// the only behaviour it has is routing Ack back to the subscription it came from.
type Msg struct {
	rec Record
	sub SubscriptionHandle
}

var emptyPayload = []byte{}

func NewMsg(rec Record, sub SubscriptionHandle) *Msg {
	return &Msg{rec: rec, sub: sub}
}

// NewDetachedMsg builds a message that belongs to no subscription.
func NewDetachedMsg(rec Record) *Msg {
	return &Msg{rec: rec}
}

func (m *Msg) Sequence() uint64  { return m.rec.Sequence }
func (m *Msg) Subject() string   { return m.rec.Subject }
func (m *Msg) Redelivered() bool { return m.rec.Redelivered }
func (m *Msg) Timestamp() int64  { return m.rec.Timestamp }

// Time is the broker timestamp as a UTC time, exact to the nanosecond, which
// is finer than the 100ns tick resolution some clients convert through.
func (m *Msg) Time() time.Time {
	return time.Unix(0, m.rec.Timestamp).UTC()
}

// Data returns the payload, an empty slice when none was set.
func (m *Msg) Data() []byte {
	if m.rec.Data == nil {
		return emptyPayload
	}
	return m.rec.Data
}

// Subscription returns the owning subscription while it is still registered.
func (m *Msg) Subscription() (Subscription, bool) {
	return m.sub.Subscription()
}

// Ack acknowledges the message on its subscription. Whether anything goes on
// the wire is up to the subscription: with auto acks it is a no-op.
func (m *Msg) Ack() error {
	sub, ok := m.sub.Subscription()
	if !ok {
		return ErrNoSubscription
	}
	return sub.Ack(m)
}
