// Package events publishes authentication audit events to the configured
// message broker.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rolegate/rolegate/internal/mq"
	"github.com/rolegate/rolegate/types"
	"github.com/sirupsen/logrus"
)

const (
	publishTimeout = 3 * time.Second
	queueSize      = 256
)

// Publisher encodes AuthEvents as JSON and sends them on one channel from
// a background worker. Publish never waits on the broker; broker failures
// and overflow are logged and swallowed.
type Publisher struct {
	backend mq.Backend
	channel string
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	queue  chan types.AuthEvent
	done   chan struct{}
}

// NewPublisher starts the send worker. A nil backend yields a publisher
// that drops everything.
func NewPublisher(backend mq.Backend, channel string, log logrus.FieldLogger) *Publisher {
	p := &Publisher{backend: backend, channel: channel, log: log}
	if backend != nil {
		p.queue = make(chan types.AuthEvent, queueSize)
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

// Publish queues event for delivery. It drops the event when the queue is
// full or the publisher is closed.
func (p *Publisher) Publish(_ context.Context, event types.AuthEvent) {
	if p == nil || p.queue == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		p.log.WithField("event", event.Type).Warn("event queue full, dropping auth event")
	}
}

// Close stops accepting events and waits until queued ones are sent or ctx
// is done.
func (p *Publisher) Close(ctx context.Context) error {
	if p == nil || p.queue == nil {
		return nil
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		p.send(event)
	}
}

func (p *Publisher) send(event types.AuthEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Warn("failed to encode auth event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	attrs := map[string]string{"type": string(event.Type)}
	if _, err := p.backend.Publish(ctx, p.channel, data, attrs); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"event":    event.Type,
			"username": event.Username,
		}).Warn("failed to publish auth event")
	}
}

// Decode parses a message produced by Publisher.
func Decode(msg mq.Message) (types.AuthEvent, error) {
	var event types.AuthEvent
	err := json.Unmarshal(msg.Data, &event)
	return event, err
}

// Tail subscribes to channel and logs every event until ctx is done.
func Tail(ctx context.Context, backend mq.Backend, channel string, log logrus.FieldLogger) error {
	return backend.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		event, err := Decode(msg)
		if err != nil {
			// Malformed payloads are dropped rather than redelivered forever.
			log.WithError(err).WithField("message_id", msg.ID).Warn("skipping undecodable event")
			return nil
		}
		log.WithFields(logrus.Fields{
			"type":     event.Type,
			"username": event.Username,
			"role":     event.Role,
			"at":       event.At.Format(time.RFC3339),
		}).Info("auth event")
		return nil
	})
}
