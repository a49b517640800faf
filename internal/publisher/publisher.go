package publisher

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/library-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/library-core/internal/library"
)

const defaultQueueSize = 256

// Bus is the subset of the MQTT client the publisher needs.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures New.
type Options struct {
	Topics   mqtt.Topics
	QoS      byte
	BaseURL  string
	Interval time.Duration // announcement period, 0 disables it
	Queue    int
	Logger   Logger
}

// Stats counts what happened to queued changes.
type Stats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

// Publisher implements library.Notifier on top of a Bus.
type Publisher struct {
	bus    Bus
	opts   Options
	queue  chan library.Change
	logger Logger

	latestMu sync.Mutex
	latest   *Event

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// New creates a publisher. Call Run to start delivering.
func New(bus Bus, opts Options) *Publisher {
	if opts.Queue <= 0 {
		opts.Queue = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{
		bus:    bus,
		opts:   opts,
		queue:  make(chan library.Change, opts.Queue),
		logger: logger,
	}
}

// Notify queues a change without blocking. Changes that do not fit are dropped.
func (p *Publisher) Notify(c library.Change) {
	select {
	case p.queue <- c:
	default:
		p.dropped.Add(1)
		p.logger.Warn("publisher queue full, dropping change",
			"kind", c.Kind,
			"action", c.Action,
			"id", c.ID,
		)
	}
}

// Run publishes queued changes and the periodic announcement until ctx is
// cancelled. Changes still queued at that point are published before it returns.
func (p *Publisher) Run(ctx context.Context) {
	var tick <-chan time.Time
	if p.opts.Interval > 0 {
		ticker := time.NewTicker(p.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case c := <-p.queue:
			p.publishChange(c)
		case <-tick:
			p.announce()
		case <-ctx.Done():
			for {
				select {
				case c := <-p.queue:
					p.publishChange(c)
				default:
					return
				}
			}
		}
	}
}

// Stats returns the delivery counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Publisher) publishChange(c library.Change) {
	event := newEvent(p.opts.BaseURL, c)
	p.send(p.opts.Topics.Change(c.Kind, string(c.Action)), event)

	if b, ok := borrowingFor(c); ok {
		p.send(p.opts.Topics.Borrow(), b)
	}

	p.latestMu.Lock()
	p.latest = &event
	p.latestMu.Unlock()
}

// announce re-publishes the latest change. Nothing is sent before the first change.
func (p *Publisher) announce() {
	p.latestMu.Lock()
	event := p.latest
	p.latestMu.Unlock()

	if event != nil {
		p.send(p.opts.Topics.Announce(), *event)
	}
}

func (p *Publisher) send(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("encoding bus message failed", "topic", topic, "error", err)
		return
	}

	if err := p.bus.Publish(topic, payload, p.opts.QoS, false); err != nil {
		p.failed.Add(1)
		p.logger.Warn("publishing to bus failed", "topic", topic, "error", err)
		return
	}

	p.published.Add(1)
	p.logger.Debug("published to bus", "topic", topic)
}
