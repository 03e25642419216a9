package jetstream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"stanclient/pkg/healthcheck"
	"stanclient/pkg/messaging"
)

// compulsory options
const (
	natsURL = "natsURL"
)

const (
	connectWait = "connectWait"
	consumerID  = "consumerID" // durable name base for durable subscriptions
)

type jetStreamPubSub struct {
	options  options
	natsConn *nats.Conn
	js       nats.JetStreamContext
	registry *messaging.Registry
	mu       sync.RWMutex
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewJetStreamPubSub returns a new NATS JetStream pub-sub implementation
func NewJetStreamPubSub() messaging.PubSub {
	return &jetStreamPubSub{registry: messaging.NewRegistry()}
}

func parseMetadata(properties map[string]string) (options, error) {
	m := options{}
	m.connectWait = nats.DefaultTimeout

	if val, ok := properties[natsURL]; ok && val != "" {
		m.natsURL = val
	} else {
		return m, errors.New("jetStream error: missing nats URL")
	}

	if val, ok := properties[connectWait]; ok && val != "" {
		wait, err := time.ParseDuration(val)
		if err != nil {
			return m, fmt.Errorf("jetStream error %w", err)
		}
		m.connectWait = wait
	}

	sub, err := messaging.SubscriptionOptionsFromMetadata(properties)
	if err != nil {
		return m, errors.Wrap(err, "jetStream error")
	}
	if val, ok := properties[consumerID]; ok && val != "" {
		m.consumerID = val
		if !sub.IsDurable() {
			_ = sub.SetDurableName(val)
		}
	}
	m.subscription = sub
	return m, nil
}

func (n *jetStreamPubSub) Init(properties map[string]string) error {
	m, err := parseMetadata(properties)
	if err != nil {
		return err
	}
	n.options = m

	natsConn, err := nats.Connect(m.natsURL, nats.Timeout(n.options.connectWait))
	if err != nil {
		return fmt.Errorf("jetStream: error connecting to nats server %s: %w", m.natsURL, err)
	}
	klog.Infof("connected to jetStream at %s", m.natsURL)

	natsConn.SetReconnectHandler(func(conn *nats.Conn) {
		klog.Info("jetStream is reconnecting ...")
	})
	natsConn.SetClosedHandler(func(conn *nats.Conn) {
		klog.Info("jetStream connection is closed")
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()
	})
	natsConn.SetDisconnectErrHandler(func(conn *nats.Conn, err error) {
		klog.ErrorS(err, "jetStream is disconnected")
	})

	return n.attach(natsConn)
}

// attach binds an established connection.
func (n *jetStreamPubSub) attach(natsConn *nats.Conn) error {
	js, err := natsConn.JetStream()
	if err != nil {
		return fmt.Errorf("jetStream: error creating context: %w", err)
	}
	n.natsConn = natsConn
	n.js = js
	n.ctx, n.cancel = context.WithCancel(context.Background())
	return nil
}

func (n *jetStreamPubSub) Publish(topic string, data []byte) error {
	ack, err := n.js.Publish(topic, data)
	if err != nil {
		return fmt.Errorf("jetStream: error from publish: %w", err)
	}
	klog.V(4).InfoS("Published message to JetStream", "topic", topic, "stream", ack.Stream, "sequence", ack.Sequence)
	return nil
}

func (n *jetStreamPubSub) Subscribe(topic string, handler messaging.Handler, options *messaging.SubscriptionOptions) (messaging.Subscription, error) {
	return n.subscribe(topic, "", handler, options)
}

func (n *jetStreamPubSub) QueueSubscribe(topic, queue string, handler messaging.Handler, options *messaging.SubscriptionOptions) (messaging.Subscription, error) {
	if queue == "" {
		return nil, errors.New("jetStream error: missing queue group name")
	}
	return n.subscribe(topic, queue, handler, options)
}

func (n *jetStreamPubSub) subscribe(topic, queue string, handler messaging.Handler, options *messaging.SubscriptionOptions) (messaging.Subscription, error) {
	opts := n.options.subscriptionOptions(options)
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "jetStream: error getting subscription options")
	}
	subOpts, err := jetStreamSubOptions(opts, topic, time.Now())
	if err != nil {
		return nil, err
	}

	s := &jsSubscription{
		subject:  topic,
		opts:     opts,
		registry: n.registry,
		pending:  map[uint64]*nats.Msg{},
	}
	s.handle = n.registry.Register(s)

	ctx := messaging.WithTopic(n.ctx, topic)
	natsMsgHandler := func(natsMsg *nats.Msg) {
		meta, err := natsMsg.Metadata()
		if err != nil {
			klog.ErrorS(err, "jetStream: message without metadata", "topic", natsMsg.Subject)
			return
		}
		rec := recordFromMetadata(natsMsg.Subject, natsMsg.Data, meta)
		if opts.ManualAcks() {
			s.track(rec.Sequence, natsMsg)
		}
		klog.V(4).InfoS("Received message", "topic", rec.Subject, "sequence", rec.Sequence, "redelivered", rec.Redelivered)

		if err := handler(ctx, messaging.NewMsg(rec, s.handle)); err != nil {
			klog.ErrorS(err, "Error running subscriber pipeline", "topic", rec.Subject, "sequence", rec.Sequence)
		}
	}

	var sub *nats.Subscription
	if queue == "" {
		sub, err = n.js.Subscribe(topic, natsMsgHandler, subOpts...)
	} else {
		sub, err = n.js.QueueSubscribe(topic, queue, natsMsgHandler, subOpts...)
	}
	if err != nil {
		n.registry.Unregister(s.handle)
		klog.ErrorS(err, "jetStream: subscribe error", "topic", topic)
		return nil, fmt.Errorf("jetStream: subscribe error %w", err)
	}
	s.setSubscription(sub)
	klog.InfoS("jetStream: subscribed to", "topic", topic, "queue", queue, "options", opts)
	return s, nil
}

func recordFromMetadata(subject string, data []byte, meta *nats.MsgMetadata) messaging.Record {
	return messaging.Record{
		Sequence:    meta.Sequence.Stream,
		Subject:     subject,
		Data:        data,
		Timestamp:   meta.Timestamp.UnixNano(),
		Redelivered: meta.NumDelivered > 1,
	}
}

// durableName derives a consumer name; JetStream rejects '.' in it.
func durableName(name, topic string) string {
	return strings.ReplaceAll(name+"__"+topic, ".", "_")
}

// jetStreamSubOptions maps frozen options to push consumer options. JetStream
// has no relative start, so a time delta is resolved against now.
func jetStreamSubOptions(opts messaging.SubscriptionOptions, topic string, now time.Time) ([]nats.SubOpt, error) {
	var subOpts []nats.SubOpt

	if opts.IsDurable() {
		subOpts = append(subOpts, nats.Durable(durableName(opts.DurableName(), topic)))
	}

	switch p := opts.StartPosition().(type) {
	case messaging.NewOnlyStart:
		subOpts = append(subOpts, nats.DeliverNew())
	case messaging.LastReceivedStart:
		subOpts = append(subOpts, nats.DeliverLast())
	case messaging.FirstStart:
		subOpts = append(subOpts, nats.DeliverAll())
	case messaging.AtSequence:
		subOpts = append(subOpts, nats.StartSequence(p.Sequence))
	case messaging.AtTime, messaging.AtTimeDelta:
		t, _ := messaging.StartTime(p, now)
		subOpts = append(subOpts, nats.StartTime(t))
	default:
		return nil, errors.Errorf("jetStream: unsupported start position %T", p)
	}

	if opts.ManualAcks() {
		subOpts = append(subOpts, nats.ManualAck())
	}
	subOpts = append(subOpts,
		nats.AckExplicit(),
		nats.AckWait(opts.AckWait()),
		nats.MaxAckPending(opts.MaxInFlight()))

	return subOpts, nil
}

func (n *jetStreamPubSub) Close() error {
	for _, sub := range n.registry.Subscriptions() {
		if err := sub.Close(); err != nil {
			klog.ErrorS(err, "jetStream: error closing subscription", "subject", sub.Subject())
		}
	}
	if n.cancel != nil {
		n.cancel()
	}
	if n.natsConn != nil {
		n.natsConn.Close()
	}
	return nil
}

func (n *jetStreamPubSub) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed ||
		n.natsConn == nil ||
		n.natsConn.Status() != nats.CONNECTED {
		return healthcheck.HealthResult{
			Status:      healthcheck.Unhealthy,
			Description: "jetStream pubsub connection is closed",
		}
	}
	return healthcheck.HealthyResult
}

type jsSubscription struct {
	subject  string
	opts     messaging.SubscriptionOptions
	registry *messaging.Registry
	handle   messaging.SubscriptionHandle

	mu      sync.Mutex
	sub     *nats.Subscription
	pending map[uint64]*nats.Msg
	closed  bool
}

func (s *jsSubscription) Subject() string                        { return s.subject }
func (s *jsSubscription) Options() messaging.SubscriptionOptions { return s.opts.Copy() }

func (s *jsSubscription) setSubscription(sub *nats.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = sub
}

func (s *jsSubscription) track(seq uint64, m *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.pending[seq] = m
	}
}

func (s *jsSubscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.sub != nil && s.sub.IsValid()
}

func (s *jsSubscription) Ack(msg *messaging.Msg) error {
	if owner, ok := msg.Subscription(); !ok || owner != messaging.Subscription(s) {
		return messaging.ErrBadSubscription
	}
	if !s.opts.ManualAcks() {
		return nil
	}
	s.mu.Lock()
	natsMsg, ok := s.pending[msg.Sequence()]
	delete(s.pending, msg.Sequence())
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := natsMsg.Ack(); err != nil {
		return errors.Wrapf(err, "jetStream: ack of sequence %d failed", msg.Sequence())
	}
	klog.V(4).InfoS("Manual ack", "topic", s.subject, "sequence", msg.Sequence())
	return nil
}

func (s *jsSubscription) Unsubscribe() error {
	return s.close(false)
}

func (s *jsSubscription) Close() error {
	return s.close(s.opts.LeaveOpen())
}

// close drains when leaveOpen is set so in flight messages finish, and
// unsubscribes right away otherwise.
func (s *jsSubscription) close(leaveOpen bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return messaging.ErrBadSubscription
	}
	s.closed = true
	s.pending = map[uint64]*nats.Msg{}
	sub := s.sub
	s.mu.Unlock()

	s.registry.Unregister(s.handle)
	if sub == nil {
		return nil
	}
	klog.Infof("jetStream: unsubscribed from topic %s", s.subject)
	if leaveOpen {
		return sub.Drain()
	}
	return sub.Unsubscribe()
}
