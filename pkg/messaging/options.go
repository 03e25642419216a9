package messaging

import (
	"time"

	stan "github.com/nats-io/stan.go"

	"stanclient/pkg/messaging/serdes"
)

const (
	DefaultMaxInFlight = stan.DefaultMaxInflight
	DefaultAckWait     = stan.DefaultAckWait

	// MinAckWait is the shortest ack wait a broker accepts.
	MinAckWait = time.Second
)

// SubscriptionOptions is the validated set of parameters for one subscription.
// Callers mutate it through setters; Subscribe freezes a private copy, so the
// caller's value may be changed or reused afterwards.
type SubscriptionOptions struct {
	durableName string
	maxInFlight int
	ackWait     time.Duration
	start       StartPosition
	manualAcks  bool
	leaveOpen   bool
}

// DefaultSubscriptionOptions returns options for a non durable, auto ack
// subscription that delivers only new messages.
func DefaultSubscriptionOptions() SubscriptionOptions {
	return SubscriptionOptions{
		maxInFlight: DefaultMaxInFlight,
		ackWait:     DefaultAckWait,
		start:       NewOnlyStart{},
	}
}

// SubscriptionOption configures SubscriptionOptions, stan.go style.
type SubscriptionOption func(*SubscriptionOptions) error

func NewSubscriptionOptions(opts ...SubscriptionOption) (SubscriptionOptions, error) {
	o := DefaultSubscriptionOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return SubscriptionOptions{}, err
		}
	}
	return o, nil
}

func (o *SubscriptionOptions) DurableName() string    { return o.durableName }
func (o *SubscriptionOptions) IsDurable() bool        { return o.durableName != "" }
func (o *SubscriptionOptions) MaxInFlight() int       { return o.maxInFlight }
func (o *SubscriptionOptions) AckWait() time.Duration { return o.ackWait }
func (o *SubscriptionOptions) ManualAcks() bool       { return o.manualAcks }
func (o *SubscriptionOptions) LeaveOpen() bool        { return o.leaveOpen }
func (o *SubscriptionOptions) StartMode() StartMode   { return o.StartPosition().Mode() }

// StartPosition returns the selected start variant, NewOnlyStart when none was
// selected.
func (o *SubscriptionOptions) StartPosition() StartPosition {
	if o.start == nil {
		return NewOnlyStart{}
	}
	return o.start
}

// StartSequence is meaningful only when StartMode is SequenceStart.
func (o *SubscriptionOptions) StartSequence() uint64 {
	if s, ok := o.start.(AtSequence); ok {
		return s.Sequence
	}
	return 0
}

// StartTime is meaningful only when UsesExplicitTime is true.
func (o *SubscriptionOptions) StartTime() time.Time {
	if s, ok := o.start.(AtTime); ok {
		return s.Time
	}
	return time.Time{}
}

// StartTimeDelta is meaningful only when StartMode is TimeDeltaStart and
// UsesExplicitTime is false.
func (o *SubscriptionOptions) StartTimeDelta() time.Duration {
	if s, ok := o.start.(AtTimeDelta); ok {
		return s.Delta
	}
	return 0
}

// UsesExplicitTime reports whether the time based start was given as an
// absolute instant rather than a delta.
func (o *SubscriptionOptions) UsesExplicitTime() bool {
	_, ok := o.start.(AtTime)
	return ok
}

func (o *SubscriptionOptions) SetDurableName(name string) error {
	if name == "" {
		return invalidOption("durableName", "must not be empty")
	}
	o.durableName = name
	return nil
}

func (o *SubscriptionOptions) SetMaxInFlight(n int) error {
	if n < 1 {
		return &RangeError{Field: "maxInFlight", Value: n, Bound: 1}
	}
	o.maxInFlight = n
	return nil
}

func (o *SubscriptionOptions) SetAckWait(d time.Duration) error {
	if d < MinAckWait {
		return &RangeError{Field: "ackWait", Value: d, Bound: MinAckWait}
	}
	o.ackWait = d
	return nil
}

func (o *SubscriptionOptions) SetManualAckMode(manual bool) { o.manualAcks = manual }
func (o *SubscriptionOptions) SetLeaveOpen(leaveOpen bool)  { o.leaveOpen = leaveOpen }

func (o *SubscriptionOptions) StartAtSequence(seq uint64) { o.start = AtSequence{Sequence: seq} }

// StartAtTime stores t in UTC.
func (o *SubscriptionOptions) StartAtTime(t time.Time) { o.start = AtTime{Time: t.UTC()} }

func (o *SubscriptionOptions) StartAtTimeDelta(d time.Duration) { o.start = AtTimeDelta{Delta: d} }
func (o *SubscriptionOptions) StartWithLastReceived()           { o.start = LastReceivedStart{} }
func (o *SubscriptionOptions) DeliverAllAvailable()             { o.start = FirstStart{} }
func (o *SubscriptionOptions) DeliverNewOnly()                  { o.start = NewOnlyStart{} }

// Copy returns an independent value. All fields are values, so a plain copy
// shares nothing with the receiver.
func (o *SubscriptionOptions) Copy() SubscriptionOptions {
	c := *o
	return c
}

// CopyOf copies src, or returns DefaultSubscriptionOptions when src is nil.
func CopyOf(src *SubscriptionOptions) SubscriptionOptions {
	if src == nil {
		return DefaultSubscriptionOptions()
	}
	return src.Copy()
}

// Validate checks the invariants the setters enforce. It rejects the zero value.
func (o *SubscriptionOptions) Validate() error {
	if o.maxInFlight < 1 {
		return &RangeError{Field: "maxInFlight", Value: o.maxInFlight, Bound: 1}
	}
	if o.ackWait < MinAckWait {
		return &RangeError{Field: "ackWait", Value: o.ackWait, Bound: MinAckWait}
	}
	return nil
}

type optionsView struct {
	DurableName string        `json:"durableName,omitempty"`
	MaxInFlight int           `json:"maxInFlight"`
	AckWait     string        `json:"ackWait"`
	StartMode   string        `json:"startMode"`
	Sequence    uint64        `json:"startSequence,omitempty"`
	Time        *time.Time    `json:"startTime,omitempty"`
	Delta       time.Duration `json:"startTimeDelta,omitempty"`
	ManualAcks  bool          `json:"manualAcks"`
	LeaveOpen   bool          `json:"leaveOpen"`
}

func (o SubscriptionOptions) String() string {
	v := optionsView{
		DurableName: o.durableName,
		MaxInFlight: o.maxInFlight,
		AckWait:     o.ackWait.String(),
		StartMode:   o.StartMode().String(),
		Sequence:    o.StartSequence(),
		Delta:       o.StartTimeDelta(),
		ManualAcks:  o.manualAcks,
		LeaveOpen:   o.leaveOpen,
	}
	if o.UsesExplicitTime() {
		t := o.StartTime()
		v.Time = &t
	}
	s, err := serdes.MarshalToString(v)
	if err != nil {
		return "{}"
	}
	return s
}

func DurableName(name string) SubscriptionOption {
	return func(o *SubscriptionOptions) error { return o.SetDurableName(name) }
}

func MaxInflight(n int) SubscriptionOption {
	return func(o *SubscriptionOptions) error { return o.SetMaxInFlight(n) }
}

func AckWait(d time.Duration) SubscriptionOption {
	return func(o *SubscriptionOptions) error { return o.SetAckWait(d) }
}

func SetManualAckMode() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.SetManualAckMode(true)
		return nil
	}
}

func LeaveOpen() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.SetLeaveOpen(true)
		return nil
	}
}

func StartAtSequence(seq uint64) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAtSequence(seq)
		return nil
	}
}

func StartAtTime(t time.Time) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAtTime(t)
		return nil
	}
}

func StartAtTimeDelta(d time.Duration) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAtTimeDelta(d)
		return nil
	}
}

func StartWithLastReceived() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartWithLastReceived()
		return nil
	}
}

func DeliverAllAvailable() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.DeliverAllAvailable()
		return nil
	}
}
