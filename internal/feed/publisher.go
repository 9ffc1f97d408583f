package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/corkboard/internal/logging"
	"github.com/sirupsen/logrus"
)

// publishTimeout bounds each Redis PUBLISH issued by the background loop
const publishTimeout = 2 * time.Second

// publishFunc is the subset of Client used by Publisher.
type publishFunc func(ctx context.Context, e *Event) error

// Publisher decouples sessions from Redis latency: Emit queues an event and
// returns immediately, and a single goroutine drains the queue in order.
type Publisher struct {
	publish publishFunc
	queue   chan *Event
	done    chan struct{}
	log     *logrus.Entry

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewPublisher starts a publisher with a queue of the given size (minimum 1).
func NewPublisher(client *Client, buffer int) *Publisher {
	p := newPublisher(client.Publish, buffer)
	p.log = p.log.WithField("instance", client.InstanceName())
	return p
}

func newPublisher(publish publishFunc, buffer int) *Publisher {
	if buffer < 1 {
		buffer = 1
	}

	p := &Publisher{
		publish: publish,
		queue:   make(chan *Event, buffer),
		done:    make(chan struct{}),
		log:     logging.Component("feed"),
	}
	go p.run()
	return p
}

// Emit queues an event for publishing. If the queue is full or the publisher is
// closed the event is dropped and counted.
func (p *Publisher) Emit(e *Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return
	}

	select {
	case p.queue <- e:
	default:
		p.dropped.Add(1)
		p.log.WithField("event_type", e.Type).Warn("Feed queue full, dropping event")
	}
}

// Dropped returns how many events were discarded without being published.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events, publishes whatever is already queued, and waits
// for the background loop to exit. Safe to call multiple times.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)

	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.publish(ctx, e)
		cancel()

		if err != nil {
			p.log.WithError(err).WithField("event_type", e.Type).Warn("Failed to publish board event")
		}
	}
}
