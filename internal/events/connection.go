package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is a broker connection that redials after an unexpected drop.
type Connection struct {
	url        string
	exchange   string
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection dials the broker and declares the topic exchange.
func NewConnection(amqpURL, exchange string, logger *slog.Logger) (*Connection, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{url: amqpURL, exchange: exchange, logger: logger}

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// maxReconnects bounds how long a lost broker is retried before publishing
// stays disabled for the rest of the process.
const maxReconnects = 10

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", sanitizeURL(c.url), err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	// durable topic exchange, consumers bind with patterns like "timer.*"
	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %q: %w", c.exchange, err)
	}

	c.conn, c.channel = conn, ch
	go c.watch(conn)

	c.logger.Debug("event broker connected", "url", sanitizeURL(c.url), "exchange", c.exchange)
	return nil
}

// watch waits for conn to drop and redials with capped exponential backoff.
func (c *Connection) watch(conn *amqp.Connection) {
	amqpErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || amqpErr == nil || c.isClosed() {
		return
	}
	c.logger.Warn("event broker connection lost", "error", amqpErr)

	for attempt := 0; attempt < maxReconnects; attempt++ {
		time.Sleep(reconnectDelay(attempt))
		if c.isClosed() {
			return
		}

		c.mu.Lock()
		c.reconnects++
		c.mu.Unlock()

		if err := c.connect(); err != nil {
			c.logger.Warn("event broker redial failed", "error", err, "attempt", attempt+1)
			continue
		}
		c.logger.Info("event broker reconnected", "attempts", attempt+1)
		return
	}
	c.logger.Error("event publishing disabled, broker unreachable", "attempts", maxReconnects)
}

func reconnectDelay(attempt int) time.Duration {
	d := time.Second << attempt
	if d <= 0 || d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func (c *Connection) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Exchange returns the name of the declared exchange.
func (c *Connection) Exchange() string {
	return c.exchange
}

// Channel returns the current channel (thread-safe)
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes data as JSON under routingKey. Messages are
// transient; a subscriber that is not bound when they are sent misses them.
func (c *Connection) PublishJSON(ctx context.Context, routingKey string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	c.mu.RLock()
	ch, closed := c.channel, c.closed
	c.mu.RUnlock()
	if closed || ch == nil {
		return ErrNotConnected
	}

	return ch.PublishWithContext(ctx, c.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// sanitizeURL removes the password from an AMQP URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if len(raw) > 20 {
			return raw[:20] + "..."
		}
		return raw
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}
