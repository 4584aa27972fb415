// Package events carries booking state changes to RabbitMQ after commit.
package events

import (
	"context"
	"time"
)

type Type string

const (
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
	BookingAttended  Type = "booking.attended"
)

// Queues lists every queue the publisher and consumer declare.
var Queues = []Type{BookingConfirmed, BookingCancelled, BookingAttended}

type BookingEvent struct {
	Type       Type      `json:"type"`
	BookingID  int       `json:"booking_id"`
	UserID     int       `json:"user_id"`
	ScheduleID int       `json:"schedule_id"`
	ClassName  string    `json:"class_name"`
	GymName    string    `json:"gym_name"`
	StartTime  time.Time `json:"start_time"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error {
	return nil
}
