package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fittrack/internal/logger"
	"fittrack/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher keeps one connection open and redials lazily after it drops.
type AMQPPublisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueues(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	for _, q := range Queues {
		if _, err := ch.QueueDeclare(string(q), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev BookingEvent) error {
	msg, err := newPublishing(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			metrics.RecordEventPublished(string(ev.Type), "failed")
			return err
		}
	}

	if err := p.ch.PublishWithContext(ctx, "", string(ev.Type), false, false, msg); err != nil {
		metrics.RecordEventPublished(string(ev.Type), "failed")
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	metrics.RecordEventPublished(string(ev.Type), "success")
	logger.Debug("event published", "type", ev.Type, "booking_id", ev.BookingID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func newPublishing(ev BookingEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}, nil
}
