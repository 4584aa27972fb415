package capacity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SeatState is the occupancy of one schedule against its class limit.
type SeatState struct {
	ScheduleID      int  `db:"id"`
	CurrentBookings int  `db:"current_bookings"`
	MaxCapacity     *int `db:"max_capacity"`
	IsCancelled     bool `db:"is_cancelled"`
}

// ErrNoSchedule is returned by GetSeatState when the schedule does not exist.
var ErrNoSchedule = errors.New("schedule row not found")

// Store holds the counter writes. Every method runs on the caller's q.
type Store interface {
	// IncrementIfAvailable bumps current_bookings when the schedule is open and
	// below capacity and reports whether a row changed.
	IncrementIfAvailable(ctx context.Context, q sqlx.ExtContext, scheduleID int) (bool, error)
	GetSeatState(ctx context.Context, q sqlx.QueryerContext, scheduleID int) (*SeatState, error)
	Decrement(ctx context.Context, q sqlx.ExtContext, scheduleID int) error
	Reset(ctx context.Context, q sqlx.ExtContext, scheduleID int) error
}

type sqlStore struct{}

func NewStore() Store {
	return sqlStore{}
}

func (sqlStore) IncrementIfAvailable(ctx context.Context, q sqlx.ExtContext, scheduleID int) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE class_schedules cs
		SET current_bookings = cs.current_bookings + 1
		FROM gym_classes gc
		WHERE cs.id = $1
		  AND gc.id = cs.class_id
		  AND NOT cs.is_cancelled
		  AND (gc.max_capacity IS NULL OR cs.current_bookings < gc.max_capacity)`,
		scheduleID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (sqlStore) GetSeatState(ctx context.Context, q sqlx.QueryerContext, scheduleID int) (*SeatState, error) {
	var st SeatState
	err := sqlx.GetContext(ctx, q, &st, `
		SELECT cs.id, cs.current_bookings, gc.max_capacity, cs.is_cancelled
		FROM class_schedules cs
		JOIN gym_classes gc ON gc.id = cs.class_id
		WHERE cs.id = $1`,
		scheduleID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSchedule
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (sqlStore) Decrement(ctx context.Context, q sqlx.ExtContext, scheduleID int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE class_schedules
		SET current_bookings = GREATEST(current_bookings - 1, 0)
		WHERE id = $1`,
		scheduleID,
	)
	return err
}

func (sqlStore) Reset(ctx context.Context, q sqlx.ExtContext, scheduleID int) error {
	_, err := q.ExecContext(ctx, `UPDATE class_schedules SET current_bookings = 0 WHERE id = $1`, scheduleID)
	return err
}
