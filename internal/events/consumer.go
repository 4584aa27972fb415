package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fittrack/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	prefetchCount = 50
	maxBackoff    = 30 * time.Second
)

// Handler processes one decoded event. A returned error rejects the message
// without requeueing it.
type Handler interface {
	HandleBookingEvent(ctx context.Context, ev BookingEvent) error
}

type Consumer struct {
	url     string
	handler Handler
}

func NewConsumer(url string, handler Handler) *Consumer {
	return &Consumer{url: url, handler: handler}
}

// Run consumes every booking queue until ctx is done, redialing with
// exponential backoff when the broker goes away.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			logger.Warn("event consumer dial failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			logger.Info("event consumer stopped")
			return
		}
		logger.Warn("event consumer loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		logger.Warn("event consumer qos failed", "error", err)
	}
	if err := declareQueues(ch); err != nil {
		return err
	}

	deliveries := make(chan amqp.Delivery)
	for _, q := range Queues {
		msgs, err := ch.Consume(string(q), "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", q, err)
		}
		go func() {
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d := <-deliveries:
			if err := c.handle(ctx, d.Body); err != nil {
				logger.Error("event handling failed", "routing_key", d.RoutingKey, "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	return c.handler.HandleBookingEvent(ctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
