package natsstreaming

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	stan "github.com/nats-io/stan.go"
	"github.com/nats-io/stan.go/pb"

	"stanclient/pkg/healthcheck"
	"stanclient/pkg/messaging"
)

// compulsory options
const (
	natsURL                = "natsURL"
	natsStreamingClusterID = "natsStreamingClusterID"
)

// connection options (optional)
const (
	clientID    = "clientID"
	connectWait = "connectWait"
)

// valid values for subscription options
const (
	subscriptionTypeQueueGroup = "queue"
	subscriptionTypeTopic      = "topic"
)

const (
	consumerID       = "consumerID" // queue group name
	subscriptionType = "subscriptionType"
)

type options struct {
	natsURL                string
	natsStreamingClusterID string
	clientID               string
	connectWait            time.Duration
	subscriptionType       string
	natsQueueGroupName     string
	subscription           messaging.SubscriptionOptions
}

type natsStreamingPubSub struct {
	options          options
	natStreamingConn stan.Conn
	registry         *messaging.Registry
	mu               sync.RWMutex
	closed           bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewNATSStreamingPubSub returns a new NATS Streaming pub-sub implementation
func NewNATSStreamingPubSub() messaging.PubSub {
	return &natsStreamingPubSub{registry: messaging.NewRegistry()}
}

func parseNATSStreamingMetadata(properties map[string]string) (options, error) {
	m := options{
		connectWait:      stan.DefaultConnectWait,
		subscriptionType: subscriptionTypeTopic,
	}
	if val, ok := properties[natsURL]; ok && val != "" {
		m.natsURL = val
	} else {
		return m, errors.New("nats-streaming error: missing nats URL")
	}
	if val, ok := properties[natsStreamingClusterID]; ok && val != "" {
		m.natsStreamingClusterID = val
	} else {
		return m, errors.New("nats-streaming error: missing nats streaming cluster ID")
	}

	if val, ok := properties[subscriptionType]; ok {
		if val == subscriptionTypeTopic || val == subscriptionTypeQueueGroup {
			m.subscriptionType = val
		} else {
			return m, errors.New("nats-streaming error: valid value for subscriptionType is topic or queue")
		}
	}

	if val, ok := properties[consumerID]; ok && val != "" {
		m.natsQueueGroupName = val
	} else if m.subscriptionType == subscriptionTypeQueueGroup {
		return m, errors.New("nats-streaming error: missing queue group name")
	}

	if val, ok := properties[clientID]; ok && val != "" {
		m.clientID = val
	} else {
		m.clientID = newClientID()
	}

	if val, ok := properties[connectWait]; ok && val != "" {
		wait, err := time.ParseDuration(val)
		if err != nil {
			return m, errors.Wrap(err, "nats-streaming error in parsemetadata for connectWait")
		}
		m.connectWait = wait
	}

	sub, err := messaging.SubscriptionOptionsFromMetadata(properties)
	if err != nil {
		return m, errors.Wrap(err, "nats-streaming error")
	}
	m.subscription = sub

	return m, nil
}

// newClientID returns a random client id; stan only accepts alphanumerics,
// '-' and '_'.
func newClientID() string {
	return "stanclient-" + uuid.New().String()
}

func (n *natsStreamingPubSub) Init(properties map[string]string) error {
	m, err := parseNATSStreamingMetadata(properties)
	if err != nil {
		return err
	}
	n.options = m

	natStreamingConn, err := stan.Connect(m.natsStreamingClusterID, m.clientID,
		stan.NatsURL(m.natsURL),
		stan.ConnectWait(m.connectWait),
		stan.SetConnectionLostHandler(func(conn stan.Conn, err error) {
			klog.ErrorS(err, "connection lost")
			n.setClosed()
		}))
	if err != nil {
		return fmt.Errorf("nats-streaming: error connecting to nats streaming server %s: %w", m.natsStreamingClusterID, err)
	}
	klog.InfoS("connected to natsstreaming", "url", m.natsURL, "clientID", m.clientID)

	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.natStreamingConn = natStreamingConn

	n.natStreamingConn.NatsConn().SetReconnectHandler(func(conn *nats.Conn) {
		klog.Info("nats is reconnecting ...")
	})
	n.natStreamingConn.NatsConn().SetClosedHandler(func(conn *nats.Conn) {
		klog.Info("nats connection is closed")
		n.setClosed()
	})
	n.natStreamingConn.NatsConn().SetDisconnectErrHandler(func(conn *nats.Conn, err error) {
		klog.ErrorS(err, "nats is disconnected")
	})

	return nil
}

func (n *natsStreamingPubSub) setClosed() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

func (n *natsStreamingPubSub) Publish(topic string, data []byte) error {
	klog.V(4).InfoS("Publishing message to NATS", "topic", topic)
	if err := n.natStreamingConn.Publish(topic, data); err != nil {
		return fmt.Errorf("nats-streaming: error from publish: %w", err)
	}
	klog.V(4).InfoS("Published message to NATS", "topic", topic, "size", len(data))
	return nil
}

// Subscribe subscribes with options, or with the component defaults when
// options is nil. A queue subscription is made when the component was set up
// with subscriptionType queue.
func (n *natsStreamingPubSub) Subscribe(topic string, handler messaging.Handler, options *messaging.SubscriptionOptions) (messaging.Subscription, error) {
	queue := ""
	if n.options.subscriptionType == subscriptionTypeQueueGroup {
		queue = n.options.natsQueueGroupName
	}
	return n.subscribe(topic, queue, handler, options)
}

func (n *natsStreamingPubSub) QueueSubscribe(topic, queue string, handler messaging.Handler, options *messaging.SubscriptionOptions) (messaging.Subscription, error) {
	if queue == "" {
		return nil, errors.New("nats-streaming error: missing queue group name")
	}
	return n.subscribe(topic, queue, handler, options)
}

func (n *natsStreamingPubSub) subscribe(topic, queue string, handler messaging.Handler, options *messaging.SubscriptionOptions) (messaging.Subscription, error) {
	opts := n.options.subscription.Copy()
	if options != nil {
		opts = messaging.CopyOf(options)
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "nats-streaming: error getting subscription options")
	}
	stanOptions, err := stanSubscriptionOptions(opts)
	if err != nil {
		return nil, errors.Wrap(err, "nats-streaming: error getting stan subscription options")
	}

	s := &natsSubscription{
		subject:  topic,
		queue:    queue,
		opts:     opts,
		registry: n.registry,
		pending:  map[uint64]*stan.Msg{},
	}
	s.handle = n.registry.Register(s)

	ctx := messaging.WithTopic(n.ctx, topic)
	natsMsgHandler := func(natsMsg *stan.Msg) {
		if opts.ManualAcks() {
			s.track(natsMsg)
		}
		msg := messaging.NewMsg(messaging.Record{
			Sequence:    natsMsg.Sequence,
			Subject:     natsMsg.Subject,
			Data:        natsMsg.Data,
			Timestamp:   natsMsg.Timestamp,
			Redelivered: natsMsg.Redelivered,
		}, s.handle)
		klog.V(4).InfoS("Received message", "topic", natsMsg.Subject, "sequence", natsMsg.Sequence, "redelivered", natsMsg.Redelivered)

		if err := handler(ctx, msg); err != nil {
			klog.ErrorS(err, "Error running subscriber pipeline", "topic", natsMsg.Subject, "sequence", natsMsg.Sequence)
		}
	}

	var subs stan.Subscription
	if queue == "" {
		subs, err = n.natStreamingConn.Subscribe(topic, natsMsgHandler, stanOptions...)
	} else {
		subs, err = n.natStreamingConn.QueueSubscribe(topic, queue, natsMsgHandler, stanOptions...)
	}
	if err != nil || subs == nil {
		n.registry.Unregister(s.handle)
		return nil, fmt.Errorf("nats-streaming: subscribe error %w", err)
	}
	s.setSubscription(subs)

	logSubscribe(stanOptions, queue, topic)
	return s, nil
}

func logSubscribe(stanOptions []stan.SubscriptionOption, queueGroupName, topic string) {
	opts := stan.SubscriptionOptions{}
	for _, option := range stanOptions {
		_ = option(&opts)
	}

	if queueGroupName == "" {
		klog.InfoS("nats: subscribed to", "subject", topic, "options", opts)
	} else {
		klog.InfoS("nats: subscribed to", "topic", topic,
			"queue group", queueGroupName, "options", opts)
	}
}

// stanSubscriptionOptions translates frozen options into stan options.
func stanSubscriptionOptions(opts messaging.SubscriptionOptions) ([]stan.SubscriptionOption, error) {
	var options []stan.SubscriptionOption

	if opts.IsDurable() {
		options = append(options, stan.DurableName(opts.DurableName()))
	}

	switch p := opts.StartPosition().(type) {
	case messaging.NewOnlyStart:
		options = append(options, stan.StartAt(pb.StartPosition_NewOnly))
	case messaging.LastReceivedStart:
		options = append(options, stan.StartWithLastReceived())
	case messaging.FirstStart:
		options = append(options, stan.DeliverAllAvailable())
	case messaging.AtSequence:
		options = append(options, stan.StartAtSequence(p.Sequence))
	case messaging.AtTime:
		options = append(options, stan.StartAtTime(p.Time))
	case messaging.AtTimeDelta:
		options = append(options, stan.StartAtTimeDelta(p.Delta))
	default:
		return nil, errors.Errorf("nats-streaming: unsupported start position %T", p)
	}

	if opts.ManualAcks() {
		options = append(options, stan.SetManualAckMode())
	}
	options = append(options, stan.AckWait(opts.AckWait()), stan.MaxInflight(opts.MaxInFlight()))

	return options, nil
}

func (n *natsStreamingPubSub) Close() error {
	for _, sub := range n.registry.Subscriptions() {
		if err := sub.Close(); err != nil {
			klog.ErrorS(err, "nats: error closing subscription", "subject", sub.Subject())
		}
	}
	if n.cancel != nil {
		n.cancel()
	}
	if n.natStreamingConn == nil {
		return nil
	}
	return n.natStreamingConn.Close()
}

func (n *natsStreamingPubSub) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed ||
		n.natStreamingConn == nil ||
		n.natStreamingConn.NatsConn() == nil ||
		n.natStreamingConn.NatsConn().Status() != nats.CONNECTED {
		return healthcheck.HealthResult{
			Status:      healthcheck.Unhealthy,
			Description: "nats pubsub connection is closed",
		}
	}
	return healthcheck.HealthyResult
}

// natsSubscription keeps the stan messages of manual ack subscriptions until
// they are acknowledged, keyed by sequence.
type natsSubscription struct {
	subject  string
	queue    string
	opts     messaging.SubscriptionOptions
	registry *messaging.Registry
	handle   messaging.SubscriptionHandle

	mu      sync.Mutex
	sub     stan.Subscription
	pending map[uint64]*stan.Msg
	closed  bool
}

func (s *natsSubscription) Subject() string                        { return s.subject }
func (s *natsSubscription) Options() messaging.SubscriptionOptions { return s.opts.Copy() }

func (s *natsSubscription) setSubscription(sub stan.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = sub
}

func (s *natsSubscription) track(m *stan.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.pending[m.Sequence] = m
	}
}

func (s *natsSubscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.sub != nil && s.sub.IsValid()
}

func (s *natsSubscription) Ack(msg *messaging.Msg) error {
	if owner, ok := msg.Subscription(); !ok || owner != messaging.Subscription(s) {
		return messaging.ErrBadSubscription
	}
	if !s.opts.ManualAcks() {
		klog.V(4).InfoS("nats: ack ignored for auto ack subscription", "subject", s.subject, "sequence", msg.Sequence())
		return nil
	}

	s.mu.Lock()
	natsMsg, ok := s.pending[msg.Sequence()]
	delete(s.pending, msg.Sequence())
	s.mu.Unlock()
	if !ok {
		klog.V(4).InfoS("nats: message already acknowledged", "subject", s.subject, "sequence", msg.Sequence())
		return nil
	}

	if err := natsMsg.Ack(); err != nil {
		return errors.Wrapf(err, "nats-streaming: ack of sequence %d failed", msg.Sequence())
	}
	klog.V(4).InfoS("Manual ack", "topic", s.subject, "sequence", msg.Sequence())
	return nil
}

func (s *natsSubscription) Unsubscribe() error {
	return s.close(false)
}

func (s *natsSubscription) Close() error {
	return s.close(s.opts.LeaveOpen())
}

func (s *natsSubscription) close(leaveOpen bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return messaging.ErrBadSubscription
	}
	s.closed = true
	s.pending = map[uint64]*stan.Msg{}
	sub := s.sub
	s.mu.Unlock()

	s.registry.Unregister(s.handle)
	if sub == nil {
		return nil
	}
	if leaveOpen {
		klog.Infof("nats: closed subscription to topic %s", s.subject)
		return sub.Close()
	}
	klog.Infof("nats: unsubscribed from topic %s", s.subject)
	return sub.Unsubscribe()
}
