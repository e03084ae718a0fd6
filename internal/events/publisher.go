package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/timecard/internal/clock"
	"github.com/felixgeelhaar/timecard/internal/session"
)

// AMQPPublisher publishes envelopes to the topic exchange.
type AMQPPublisher struct {
	conn *Connection
}

// NewAMQPPublisher creates a publisher on conn.
func NewAMQPPublisher(conn *Connection) *AMQPPublisher {
	return &AMQPPublisher{conn: conn}
}

// Publish sends env under its routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, env Envelope) error {
	if err := p.conn.PublishJSON(ctx, env.RoutingKey(), env); err != nil {
		return fmt.Errorf("failed to publish %s: %w", env.Type, err)
	}
	return nil
}

// SessionSource is what the bridge needs from the session service.
type SessionSource interface {
	Subscribe(fn func(session.Event)) func()
}

// ClockSource is what the bridge needs from the clock engine.
type ClockSource interface {
	Subscribe(fn func(clock.Event)) func()
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Buffer is how many events may wait for the broker before new ones
	// are dropped.
	Buffer         int
	PublishTimeout time.Duration
	Logger         *slog.Logger
}

// Bridge forwards transitions to a Publisher on a background worker so
// a slow broker never stalls the clock or the session.
type Bridge struct {
	pub     Publisher
	queue   chan Envelope
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	detach  []func()
	wg      sync.WaitGroup
	dropped int
}

// NewBridge starts the publishing worker.
func NewBridge(pub Publisher, cfg BridgeConfig) *Bridge {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Bridge{
		pub:     pub,
		queue:   make(chan Envelope, cfg.Buffer),
		timeout: cfg.PublishTimeout,
		now:     time.Now,
		logger:  cfg.Logger,
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// AttachSession forwards session transitions.
func (b *Bridge) AttachSession(src SessionSource) {
	unsub := src.Subscribe(func(ev session.Event) {
		b.enqueue(FromSession(ev))
	})
	b.mu.Lock()
	b.detach = append(b.detach, unsub)
	b.mu.Unlock()
}

// AttachClock forwards timer transitions, skipping ticks.
func (b *Bridge) AttachClock(src ClockSource) {
	unsub := src.Subscribe(func(ev clock.Event) {
		if env, ok := FromClock(ev, b.now()); ok {
			b.enqueue(env)
		}
	})
	b.mu.Lock()
	b.detach = append(b.detach, unsub)
	b.mu.Unlock()
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (b *Bridge) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close detaches from all sources and waits until queued events were
// handed to the publisher.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	detach := b.detach
	b.detach = nil
	close(b.queue)
	b.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	b.wg.Wait()
	return nil
}

func (b *Bridge) enqueue(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- env:
	default:
		b.dropped++
		b.logger.Warn("event buffer full, dropping event", "type", env.Type)
	}
}

func (b *Bridge) run() {
	defer b.wg.Done()
	for env := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		if err := b.pub.Publish(ctx, env); err != nil {
			b.logger.Warn("publish event", "type", env.Type, "error", err)
		}
		cancel()
	}
}
