// Package capacity tracks how many seats of a class schedule are taken.
package capacity

import (
	"context"
	"errors"

	"fittrack/internal/apperr"

	"github.com/jmoiron/sqlx"
)

var (
	ErrFull              = apperr.New(apperr.KindFull, "class_full", "class is full")
	ErrScheduleCancelled = apperr.New(apperr.KindScheduleCancelled, "schedule_cancelled", "schedule is cancelled")
	ErrScheduleNotFound  = apperr.NotFound("schedule_not_found", "schedule not found")
)

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// TryReserveSeat takes one seat with a single conditional update. When nothing
// changed the schedule is re-read to report why.
func (l *Ledger) TryReserveSeat(ctx context.Context, q sqlx.ExtContext, scheduleID int) error {
	ok, err := l.store.IncrementIfAvailable(ctx, q, scheduleID)
	if err != nil {
		return apperr.Persistence("reserve seat", err)
	}
	if ok {
		return nil
	}

	st, err := l.store.GetSeatState(ctx, q, scheduleID)
	if err != nil {
		if errors.Is(err, ErrNoSchedule) {
			return ErrScheduleNotFound
		}
		return apperr.Persistence("read seat state", err)
	}
	if st.IsCancelled {
		return ErrScheduleCancelled
	}
	return ErrFull
}

// ReleaseSeat gives one seat back; the counter never goes below zero.
func (l *Ledger) ReleaseSeat(ctx context.Context, q sqlx.ExtContext, scheduleID int) error {
	return apperr.Persistence("release seat", l.store.Decrement(ctx, q, scheduleID))
}

// ResetSeats clears the counter of a schedule whose bookings were all cancelled.
func (l *Ledger) ResetSeats(ctx context.Context, q sqlx.ExtContext, scheduleID int) error {
	return apperr.Persistence("reset seats", l.store.Reset(ctx, q, scheduleID))
}
