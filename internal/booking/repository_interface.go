package booking

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository writes run on the caller's transaction; listings read the pool.
type Repository interface {
	Create(ctx context.Context, q sqlx.QueryerContext, b *Booking) error
	GetForUpdate(ctx context.Context, q sqlx.QueryerContext, id int) (*Booking, error)
	HasConfirmed(ctx context.Context, q sqlx.QueryerContext, userID, scheduleID int) (bool, error)
	Cancel(ctx context.Context, q sqlx.ExecerContext, id int, reason *string, at time.Time) error
	MarkAttended(ctx context.Context, q sqlx.ExecerContext, id int, at time.Time) error

	MarkScheduleCancelled(ctx context.Context, q sqlx.ExecerContext, scheduleID int) error
	// CancelAllForSchedule cancels every confirmed booking of the schedule and returns them.
	CancelAllForSchedule(ctx context.Context, q sqlx.QueryerContext, scheduleID int, reason string, at time.Time) ([]Booking, error)

	ListByUser(ctx context.Context, userID int) ([]Details, error)
	ListBySchedule(ctx context.Context, scheduleID int) ([]Details, error)
	ListByGym(ctx context.Context, gymID int) ([]Details, error)

	// StatsByDay buckets the gym's bookings by the UTC day they were taken.
	StatsByDay(ctx context.Context, gymID int, from, to time.Time) ([]DailyStats, error)
}
