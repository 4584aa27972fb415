package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fittrack/internal/db"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicate is returned when the user already holds a confirmed booking
	// on the schedule (uq_user_bookings_confirmed).
	ErrDuplicate = errors.New("duplicate confirmed booking")
)

const uniqueViolation = "23505"

const bookingColumns = `id, user_id, membership_id, schedule_id, booking_time, booking_status,
	cancellation_reason, attended, updated_at`

const detailsQuery = `
	SELECT b.id, b.user_id, b.membership_id, b.schedule_id, b.booking_time, b.booking_status,
		b.cancellation_reason, b.attended, b.updated_at,
		cs.start_time, cs.end_time,
		gc.name AS class_name,
		g.id AS gym_id, g.name AS gym_name,
		u.name AS user_name, u.email AS user_email
	FROM user_bookings b
	JOIN class_schedules cs ON cs.id = b.schedule_id
	JOIN gym_classes gc ON gc.id = cs.class_id
	JOIN gyms g ON g.id = gc.gym_id
	JOIN users u ON u.id = b.user_id`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, q sqlx.QueryerContext, b *Booking) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO user_bookings (user_id, membership_id, schedule_id, booking_time, booking_status, attended, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $4)
		RETURNING `+bookingColumns,
		b.UserID, b.MembershipID, b.ScheduleID, b.BookingTime, b.Status,
	).StructScan(b)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *repository) GetForUpdate(ctx context.Context, q sqlx.QueryerContext, id int) (*Booking, error) {
	var b Booking
	err := sqlx.GetContext(ctx, q, &b, `SELECT `+bookingColumns+` FROM user_bookings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) HasConfirmed(ctx context.Context, q sqlx.QueryerContext, userID, scheduleID int) (bool, error) {
	return db.Exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM user_bookings WHERE user_id = $1 AND schedule_id = $2 AND booking_status = 'confirmed')`,
		userID, scheduleID,
	)
}

func (r *repository) Cancel(ctx context.Context, q sqlx.ExecerContext, id int, reason *string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE user_bookings
		SET booking_status = 'cancelled', cancellation_reason = $2, updated_at = $3
		WHERE id = $1`,
		id, reason, at,
	)
	return err
}

func (r *repository) MarkAttended(ctx context.Context, q sqlx.ExecerContext, id int, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE user_bookings
		SET booking_status = 'attended', attended = TRUE, updated_at = $2
		WHERE id = $1`,
		id, at,
	)
	return err
}

func (r *repository) MarkScheduleCancelled(ctx context.Context, q sqlx.ExecerContext, scheduleID int) error {
	_, err := q.ExecContext(ctx, `UPDATE class_schedules SET is_cancelled = TRUE WHERE id = $1`, scheduleID)
	return err
}

func (r *repository) CancelAllForSchedule(ctx context.Context, q sqlx.QueryerContext, scheduleID int, reason string, at time.Time) ([]Booking, error) {
	out := []Booking{}
	err := sqlx.SelectContext(ctx, q, &out, `
		UPDATE user_bookings
		SET booking_status = 'cancelled', cancellation_reason = $2, updated_at = $3
		WHERE schedule_id = $1 AND booking_status = 'confirmed'
		RETURNING `+bookingColumns,
		scheduleID, reason, at,
	)
	return out, err
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Details, error) {
	return r.list(ctx, ` WHERE b.user_id = $1 ORDER BY cs.start_time DESC, b.id DESC`, userID)
}

func (r *repository) ListBySchedule(ctx context.Context, scheduleID int) ([]Details, error) {
	return r.list(ctx, ` WHERE b.schedule_id = $1 ORDER BY b.booking_time ASC, b.id ASC`, scheduleID)
}

func (r *repository) ListByGym(ctx context.Context, gymID int) ([]Details, error) {
	return r.list(ctx, ` WHERE g.id = $1 ORDER BY cs.start_time DESC, b.id DESC`, gymID)
}

func (r *repository) StatsByDay(ctx context.Context, gymID int, from, to time.Time) ([]DailyStats, error) {
	out := []DailyStats{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT to_char(b.booking_time AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*) AS booked,
			COUNT(*) FILTER (WHERE b.booking_status = 'cancelled') AS cancelled,
			COUNT(*) FILTER (WHERE b.booking_status = 'attended') AS attended
		FROM user_bookings b
		JOIN class_schedules cs ON cs.id = b.schedule_id
		JOIN gym_classes gc ON gc.id = cs.class_id
		WHERE gc.gym_id = $1 AND b.booking_time >= $2 AND b.booking_time < $3
		GROUP BY 1
		ORDER BY 1`,
		gymID, from, to,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) list(ctx context.Context, where string, arg int) ([]Details, error) {
	out := []Details{}
	if err := r.db.SelectContext(ctx, &out, detailsQuery+where, arg); err != nil {
		return nil, err
	}
	return out, nil
}
