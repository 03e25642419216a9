package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"stanclient/pkg/healthcheck"
)

var errBusClosed = errors.New("in-memory bus is closed")

// inMemoryBus is an in-process broker keeping a sequenced log per subject.
// It honours start positions, durable cursors, in-flight limits and ack wait
// redelivery for manual ack subscriptions.
type inMemoryBus struct {
	mu       sync.Mutex
	logs     map[string][]Record
	subs     map[string][]*memSubscription
	durables map[string]uint64
	registry *Registry
	closed   bool
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func NewInMemoryBus() *inMemoryBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &inMemoryBus{
		logs:     map[string][]Record{},
		subs:     map[string][]*memSubscription{},
		durables: map[string]uint64{},
		registry: NewRegistry(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (*inMemoryBus) Init(properties map[string]string) error {
	return nil
}

func (c *inMemoryBus) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errBusClosed
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	log := c.logs[subject]
	c.logs[subject] = append(log, Record{
		Sequence:  uint64(len(log) + 1),
		Subject:   subject,
		Data:      payload,
		Timestamp: c.now().UnixNano(),
	})
	for _, s := range c.subs[subject] {
		s.wake()
	}
	return nil
}

func (c *inMemoryBus) Subscribe(subject string, handler Handler, options *SubscriptionOptions) (Subscription, error) {
	opts := CopyOf(options)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errBusClosed
	}

	s := &memSubscription{
		bus:     c,
		subject: subject,
		opts:    opts,
		handler: handler,
		pending: map[uint64]*pendingRecord{},
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.nextSeq = c.startSequence(subject, &opts)
	s.handle = c.registry.Register(s)
	c.subs[subject] = append(c.subs[subject], s)

	klog.InfoS("in-memory: subscribed to", "subject", subject, "options", opts)
	go s.run(WithTopic(c.ctx, subject))
	return s, nil
}

// startSequence resolves the first sequence to deliver. A known durable
// resumes where it left off and the start position is ignored.
func (c *inMemoryBus) startSequence(subject string, opts *SubscriptionOptions) uint64 {
	log := c.logs[subject]
	last := uint64(len(log))

	if opts.IsDurable() {
		if seq, ok := c.durables[durableKey(subject, opts.DurableName())]; ok {
			return seq
		}
	}

	switch p := opts.StartPosition().(type) {
	case FirstStart:
		return 1
	case LastReceivedStart:
		if last == 0 {
			return 1
		}
		return last
	case AtSequence:
		if p.Sequence == 0 {
			return 1
		}
		return p.Sequence
	case AtTime, AtTimeDelta:
		t, _ := StartTime(p, c.now())
		for _, rec := range log {
			if rec.Timestamp >= t.UnixNano() {
				return rec.Sequence
			}
		}
	}
	return last + 1
}

func (c *inMemoryBus) removeSubscription(s *memSubscription, keepDurable bool) {
	list := c.subs[s.subject]
	for i, item := range list {
		if item == s {
			c.subs[s.subject] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if s.opts.IsDurable() {
		key := durableKey(s.subject, s.opts.DurableName())
		if keepDurable {
			c.durables[key] = s.resumeSequence()
		} else {
			delete(c.durables, key)
		}
	}
	c.registry.Unregister(s.handle)
}

func (c *inMemoryBus) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, list := range c.subs {
		for _, s := range list {
			c.removeSubscription(s, true)
			s.closeLocked()
		}
	}
	c.cancel()
	return nil
}

func (c *inMemoryBus) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return healthcheck.HealthResult{
			Status:      healthcheck.Unhealthy,
			Description: "in-memory bus is closed",
		}
	}
	return healthcheck.HealthyResult
}

func durableKey(subject, durable string) string {
	return subject + "/" + durable
}

type pendingRecord struct {
	rec      Record
	deadline time.Time
}

// memSubscription state is guarded by bus.mu.
type memSubscription struct {
	bus     *inMemoryBus
	subject string
	opts    SubscriptionOptions
	handler Handler
	handle  SubscriptionHandle

	nextSeq uint64
	pending map[uint64]*pendingRecord
	closed  bool

	notify chan struct{}
	done   chan struct{}
}

func (s *memSubscription) Subject() string              { return s.subject }
func (s *memSubscription) Options() SubscriptionOptions { return s.opts.Copy() }

func (s *memSubscription) IsValid() bool {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return !s.closed
}

func (s *memSubscription) Ack(msg *Msg) error {
	if msg.sub.registry != s.bus.registry || msg.sub.id != s.handle.id {
		return ErrBadSubscription
	}
	if !s.opts.ManualAcks() {
		klog.V(4).InfoS("in-memory: ack ignored for auto ack subscription", "subject", s.subject, "sequence", msg.Sequence())
		return nil
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return ErrBadSubscription
	}
	delete(s.pending, msg.Sequence())
	s.wake()
	return nil
}

func (s *memSubscription) Unsubscribe() error {
	return s.close(false)
}

func (s *memSubscription) Close() error {
	return s.close(s.opts.LeaveOpen())
}

func (s *memSubscription) close(keepDurable bool) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return ErrBadSubscription
	}
	s.bus.removeSubscription(s, keepDurable)
	s.closeLocked()
	klog.InfoS("in-memory: unsubscribed from", "subject", s.subject, "keepDurable", keepDurable)
	return nil
}

func (s *memSubscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// resumeSequence is the first sequence a resumed durable must see: the oldest
// unacknowledged one, or the next undelivered one.
func (s *memSubscription) resumeSequence() uint64 {
	seq := s.nextSeq
	for p := range s.pending {
		if p < seq {
			seq = p
		}
	}
	return seq
}

func (s *memSubscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// next picks the record to deliver. When there is none it returns how long
// until the earliest redelivery is due, zero meaning wait for a wake up.
func (s *memSubscription) next() (rec Record, ok bool, wait time.Duration) {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return Record{}, false, 0
	}

	now := s.bus.now()
	var earliest time.Time
	for _, p := range s.pending {
		if !p.deadline.After(now) {
			p.deadline = now.Add(s.opts.AckWait())
			rec = p.rec
			rec.Redelivered = true
			return rec, true, 0
		}
		if earliest.IsZero() || p.deadline.Before(earliest) {
			earliest = p.deadline
		}
	}

	log := s.bus.logs[s.subject]
	manual := s.opts.ManualAcks()
	if s.nextSeq <= uint64(len(log)) && (!manual || len(s.pending) < s.opts.MaxInFlight()) {
		rec = log[s.nextSeq-1]
		s.nextSeq++
		if manual {
			s.pending[rec.Sequence] = &pendingRecord{rec: rec, deadline: now.Add(s.opts.AckWait())}
		}
		return rec, true, 0
	}
	if !earliest.IsZero() {
		wait = earliest.Sub(now)
	}
	return Record{}, false, wait
}

func (s *memSubscription) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		rec, ok, wait := s.next()
		if ok {
			s.deliver(ctx, rec)
			continue
		}

		var timer *time.Timer
		var timeout <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			timeout = timer.C
		}
		select {
		case <-s.notify:
		case <-timeout:
		case <-s.done:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *memSubscription) deliver(ctx context.Context, rec Record) {
	// the log is shared by every subscription and redelivery
	rec.Data = append([]byte(nil), rec.Data...)
	msg := NewMsg(rec, s.handle)
	klog.V(4).InfoS("in-memory: delivering message", "subject", rec.Subject, "sequence", rec.Sequence, "redelivered", rec.Redelivered)
	if err := s.handler(ctx, msg); err != nil {
		klog.ErrorS(err, "Error running subscriber handler", "subject", rec.Subject, "sequence", rec.Sequence)
	}
}
