package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler receives envelopes read from the exchange.
type Handler func(env Envelope)

// Consumer follows the exchange through an exclusive, auto-deleted queue.
type Consumer struct {
	conn       *Connection
	handler    Handler
	pattern    string
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewConsumer creates a consumer for routing keys matching pattern, for
// example "timer.*" or "#".
func NewConsumer(conn *Connection, pattern string, handler Handler) *Consumer {
	if pattern == "" {
		pattern = "#"
	}
	return &Consumer{conn: conn, handler: handler, pattern: pattern}
}

// Start binds the queue and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	ch := c.conn.Channel()

	q, err := ch.QueueDeclare(
		"",    // server generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, c.pattern, c.conn.Exchange(), false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",    // consumer tag (auto-generated)
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	ctx, c.cancelFunc = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.consume(ctx, msgs)
	return nil
}

func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal(msg.Body, &env); err != nil {
				c.conn.logger.Error("failed to unmarshal event", "error", err)
				continue
			}
			c.handler(env)
		}
	}
}

// Stop stops consuming and waits for the handler to return.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}
