package membership

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

var (
	ErrRecordNotFound = errors.New("record not found")
	// ErrActiveExists is returned when the user already holds a stored-active
	// membership at the gym.
	ErrActiveExists = errors.New("active membership already exists")
)

const (
	planColumns       = `id, gym_id, name, duration_days, price_cents, max_bookings_per_week, is_active, created_at`
	membershipColumns = `id, user_id, gym_id, plan_id, start_date, end_date, status, auto_renew,
		bookings_used_this_week, last_booking_count_reset, created_at, updated_at`
	joinedColumns = `um.id, um.user_id, um.gym_id, um.plan_id, um.start_date, um.end_date, um.status, um.auto_renew,
		um.bookings_used_this_week, um.last_booking_count_reset, um.created_at, um.updated_at,
		mp.name AS plan_name, mp.max_bookings_per_week`
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListForUpdate(ctx context.Context, q sqlx.QueryerContext, userID, gymID int) ([]ActiveMembership, error) {
	rows := []ActiveMembership{}
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+joinedColumns+`
		FROM user_memberships um
		JOIN membership_plans mp ON mp.id = um.plan_id
		WHERE um.user_id = $1 AND um.gym_id = $2
		ORDER BY um.id
		FOR UPDATE OF um`,
		userID, gymID,
	)
	return rows, err
}

func (r *repository) ResetWeeklyCount(ctx context.Context, q sqlx.ExecerContext, membershipID int, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE user_memberships
		SET bookings_used_this_week = 0, last_booking_count_reset = $2, updated_at = NOW()
		WHERE id = $1`,
		membershipID, at,
	)
	return err
}

func (r *repository) IncrementWeeklyCount(ctx context.Context, q sqlx.ExecerContext, membershipID int, limit *int) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE user_memberships
		SET bookings_used_this_week = bookings_used_this_week + 1, updated_at = NOW()
		WHERE id = $1 AND ($2::int IS NULL OR bookings_used_this_week < $2::int)`,
		membershipID, limit,
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

func (r *repository) CreatePlan(ctx context.Context, p *Plan) error {
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO membership_plans (gym_id, name, duration_days, price_cents, max_bookings_per_week)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+planColumns,
		p.GymID, p.Name, p.DurationDays, p.PriceCents, p.MaxBookingsPerWeek,
	).StructScan(p)
}

func (r *repository) GetPlan(ctx context.Context, q sqlx.QueryerContext, id int) (*Plan, error) {
	var p Plan
	if err := sqlx.GetContext(ctx, q, &p, `SELECT `+planColumns+` FROM membership_plans WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repository) ListActivePlans(ctx context.Context, gymID int) ([]Plan, error) {
	plans := []Plan{}
	err := r.db.SelectContext(ctx, &plans, `
		SELECT `+planColumns+`
		FROM membership_plans
		WHERE gym_id = $1 AND is_active
		ORDER BY price_cents ASC, id ASC`,
		gymID,
	)
	return plans, err
}

func (r *repository) DeactivatePlan(ctx context.Context, q sqlx.ExecerContext, id int) error {
	res, err := q.ExecContext(ctx, `UPDATE membership_plans SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateMembership(ctx context.Context, q sqlx.QueryerContext, m *Membership) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO user_memberships
			(user_id, gym_id, plan_id, start_date, end_date, status, auto_renew, bookings_used_this_week, last_booking_count_reset)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		RETURNING `+membershipColumns,
		m.UserID, m.GymID, m.PlanID, m.StartDate, m.EndDate, m.Status, m.AutoRenew, m.LastBookingCountReset,
	).StructScan(m)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrActiveExists
	}
	return err
}

func (r *repository) CreatePayment(ctx context.Context, q sqlx.QueryerContext, p *Payment) error {
	return q.QueryRowxContext(ctx, `
		INSERT INTO membership_payments (membership_id, user_id, amount_cents, status, reference, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, membership_id, user_id, amount_cents, status, reference, paid_at`,
		p.MembershipID, p.UserID, p.AmountCents, p.Status, p.Reference, p.PaidAt,
	).StructScan(p)
}

func (r *repository) GetForUpdate(ctx context.Context, q sqlx.QueryerContext, id int) (*Membership, error) {
	var m Membership
	err := sqlx.GetContext(ctx, q, &m, `SELECT `+membershipColumns+` FROM user_memberships WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *repository) Cancel(ctx context.Context, q sqlx.ExecerContext, id int, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE user_memberships
		SET status = 'cancelled', end_date = $2, auto_renew = FALSE, updated_at = NOW()
		WHERE id = $1`,
		id, at,
	)
	return err
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]ActiveMembership, error) {
	rows := []ActiveMembership{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+joinedColumns+`
		FROM user_memberships um
		JOIN membership_plans mp ON mp.id = um.plan_id
		WHERE um.user_id = $1
		ORDER BY um.start_date DESC, um.id DESC`,
		userID,
	)
	return rows, err
}

func (r *repository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]Membership, error) {
	rows := []Membership{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+membershipColumns+`
		FROM user_memberships
		WHERE status = 'active' AND end_date < $1
		ORDER BY end_date ASC
		LIMIT $2`,
		now, limit,
	)
	return rows, err
}

func (r *repository) MarkExpired(ctx context.Context, q sqlx.ExecerContext, id int, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE user_memberships
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND end_date < $2`,
		id, now,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	return err
}
