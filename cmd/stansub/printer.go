package main

import (
	"context"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"stanclient/pkg/messaging"
	"stanclient/pkg/messaging/serdes"
)

type delivery struct {
	Topic       string              `json:"topic"`
	Subject     string              `json:"subject"`
	Sequence    uint64              `json:"sequence"`
	Redelivered bool                `json:"redelivered"`
	Timestamp   time.Time           `json:"timestamp"`
	Data        jsoniter.RawMessage `json:"data"`
}

// printer writes one JSON line per delivery. Handlers of different
// subscriptions run concurrently.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Handle(ctx context.Context, msg *messaging.Msg) error {
	line, err := serdes.Marshal(delivery{
		Topic:       messaging.TopicFromContext(ctx),
		Subject:     msg.Subject(),
		Sequence:    msg.Sequence(),
		Redelivered: msg.Redelivered(),
		Timestamp:   msg.Time(),
		Data:        serdes.RawPayload(msg.Data()),
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.w.Write(append(line, '\n'))
	return err
}
