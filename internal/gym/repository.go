package gym

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fittrack/internal/db"

	"github.com/jmoiron/sqlx"
)

var ErrRecordNotFound = errors.New("record not found")

const (
	gymColumns      = `id, name, slug, address, description, owner_id, created_at`
	classColumns    = `id, gym_id, name, description, max_capacity, members_only, duration_minutes, is_active, created_at`
	scheduleColumns = `id, class_id, start_time, end_time, instructor, current_bookings, is_cancelled, created_at`

	scheduleDetailsQuery = `
		SELECT cs.id, cs.class_id, cs.start_time, cs.end_time, cs.instructor,
		       cs.current_bookings, cs.is_cancelled, cs.created_at,
		       gc.name AS class_name, gc.max_capacity, gc.members_only, gc.is_active AS class_active,
		       g.id AS gym_id, g.name AS gym_name, g.owner_id AS gym_owner_id
		FROM class_schedules cs
		JOIN gym_classes gc ON gc.id = cs.class_id
		JOIN gyms g ON g.id = gc.gym_id`
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateGym(ctx context.Context, g *Gym) error {
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO gyms (name, slug, address, description, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+gymColumns,
		g.Name, g.Slug, g.Address, g.Description, g.OwnerID,
	).StructScan(g)
}

func (r *repository) ListGyms(ctx context.Context) ([]Gym, error) {
	gyms := []Gym{}
	err := r.db.SelectContext(ctx, &gyms, `SELECT `+gymColumns+` FROM gyms ORDER BY name ASC`)
	return gyms, err
}

func (r *repository) GetGymByID(ctx context.Context, id int) (*Gym, error) {
	var g Gym
	if err := r.db.GetContext(ctx, &g, `SELECT `+gymColumns+` FROM gyms WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM gyms WHERE slug = $1)`, slug)
}

func (r *repository) CreateClass(ctx context.Context, c *GymClass) error {
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO gym_classes (gym_id, name, description, max_capacity, members_only, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+classColumns,
		c.GymID, c.Name, c.Description, c.MaxCapacity, c.MembersOnly, c.DurationMinutes,
	).StructScan(c)
}

func (r *repository) ListClasses(ctx context.Context, gymID int) ([]GymClass, error) {
	classes := []GymClass{}
	err := r.db.SelectContext(ctx, &classes, `
		SELECT `+classColumns+`
		FROM gym_classes
		WHERE gym_id = $1 AND is_active
		ORDER BY name ASC`, gymID)
	return classes, err
}

func (r *repository) GetClassByID(ctx context.Context, id int) (*GymClass, error) {
	var c GymClass
	if err := r.db.GetContext(ctx, &c, `SELECT `+classColumns+` FROM gym_classes WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *repository) CreateSchedule(ctx context.Context, s *ClassSchedule) error {
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO class_schedules (class_id, start_time, end_time, instructor)
		VALUES ($1, $2, $3, $4)
		RETURNING `+scheduleColumns,
		s.ClassID, s.StartTime, s.EndTime, s.Instructor,
	).StructScan(s)
}

func (r *repository) ListSchedules(ctx context.Context, gymID int, from *time.Time) ([]ScheduleDetails, error) {
	query := scheduleDetailsQuery + ` WHERE g.id = $1 AND gc.is_active`
	args := []interface{}{gymID}
	if from != nil {
		query += ` AND cs.start_time >= $2`
		args = append(args, *from)
	}
	query += ` ORDER BY cs.start_time ASC`

	schedules := []ScheduleDetails{}
	err := r.db.SelectContext(ctx, &schedules, query, args...)
	return schedules, err
}

func (r *repository) GetScheduleDetails(ctx context.Context, q sqlx.QueryerContext, id int) (*ScheduleDetails, error) {
	var d ScheduleDetails
	if err := sqlx.GetContext(ctx, q, &d, scheduleDetailsQuery+` WHERE cs.id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	return err
}
