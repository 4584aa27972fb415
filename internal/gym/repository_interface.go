package gym

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateGym(ctx context.Context, g *Gym) error
	ListGyms(ctx context.Context) ([]Gym, error)
	GetGymByID(ctx context.Context, id int) (*Gym, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	CreateClass(ctx context.Context, c *GymClass) error
	ListClasses(ctx context.Context, gymID int) ([]GymClass, error)
	GetClassByID(ctx context.Context, id int) (*GymClass, error)

	CreateSchedule(ctx context.Context, s *ClassSchedule) error
	ListSchedules(ctx context.Context, gymID int, from *time.Time) ([]ScheduleDetails, error)
	// GetScheduleDetails runs on q so callers can read inside their transaction.
	GetScheduleDetails(ctx context.Context, q sqlx.QueryerContext, id int) (*ScheduleDetails, error)
}
