package gym

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fittrack/internal/apperr"
	"fittrack/internal/auth"
	"fittrack/internal/logger"

	"github.com/gosimple/slug"
)

const maxSlugAttempts = 20

var (
	ErrGymNotFound      = apperr.NotFound("gym_not_found", "gym not found")
	ErrClassNotFound    = apperr.NotFound("class_not_found", "class not found")
	ErrScheduleNotFound = apperr.NotFound("schedule_not_found", "schedule not found")
	ErrNotGymOwner      = apperr.Forbidden("not_gym_owner", "only the gym owner can manage it")
	ErrScheduleInvalid  = apperr.Validation("invalid_schedule", "end_time must be after start_time")
)

type Service interface {
	CreateGym(ctx context.Context, caller auth.Caller, req CreateGymRequest) (*Gym, error)
	ListGyms(ctx context.Context) ([]Gym, error)
	GetGym(ctx context.Context, id int) (*Gym, error)

	CreateClass(ctx context.Context, caller auth.Caller, gymID int, req CreateClassRequest) (*GymClass, error)
	ListClasses(ctx context.Context, gymID int) ([]GymClass, error)

	CreateSchedule(ctx context.Context, caller auth.Caller, classID int, req CreateScheduleRequest) (*ClassSchedule, error)
	ListSchedules(ctx context.Context, gymID int, includePast bool) ([]ScheduleWithAvailability, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) CreateGym(ctx context.Context, caller auth.Caller, req CreateGymRequest) (*Gym, error) {
	name := strings.TrimSpace(req.Name)
	gymSlug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	g := &Gym{
		Name:        name,
		Slug:        gymSlug,
		Address:     strings.TrimSpace(req.Address),
		Description: req.Description,
		OwnerID:     caller.UserID,
	}
	if err := s.repo.CreateGym(ctx, g); err != nil {
		return nil, apperr.Persistence("create gym", err)
	}

	logger.Info("gym created", "gym_id", g.ID, "slug", g.Slug, "owner_id", g.OwnerID)
	return g, nil
}

func (s *service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		return "", apperr.Validation("invalid_name", "gym name must contain letters or digits")
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		exists, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", apperr.Persistence("check slug", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", apperr.New(apperr.KindConflict, "slug_taken", "too many gyms share this name")
}

func (s *service) ListGyms(ctx context.Context) ([]Gym, error) {
	gyms, err := s.repo.ListGyms(ctx)
	if err != nil {
		return nil, apperr.Persistence("list gyms", err)
	}
	return gyms, nil
}

func (s *service) GetGym(ctx context.Context, id int) (*Gym, error) {
	g, err := s.repo.GetGymByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrGymNotFound
		}
		return nil, apperr.Persistence("get gym", err)
	}
	return g, nil
}

func (s *service) CreateClass(ctx context.Context, caller auth.Caller, gymID int, req CreateClassRequest) (*GymClass, error) {
	g, err := s.GetGym(ctx, gymID)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(g.OwnerID) {
		return nil, ErrNotGymOwner
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}

	c := &GymClass{
		GymID:           gymID,
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		MaxCapacity:     req.MaxCapacity,
		MembersOnly:     req.MembersOnly,
		DurationMinutes: duration,
	}
	if err := s.repo.CreateClass(ctx, c); err != nil {
		return nil, apperr.Persistence("create class", err)
	}
	return c, nil
}

func (s *service) ListClasses(ctx context.Context, gymID int) ([]GymClass, error) {
	if _, err := s.GetGym(ctx, gymID); err != nil {
		return nil, err
	}
	classes, err := s.repo.ListClasses(ctx, gymID)
	if err != nil {
		return nil, apperr.Persistence("list classes", err)
	}
	return classes, nil
}

func (s *service) CreateSchedule(ctx context.Context, caller auth.Caller, classID int, req CreateScheduleRequest) (*ClassSchedule, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, ErrScheduleInvalid
	}

	c, err := s.repo.GetClassByID(ctx, classID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, apperr.Persistence("get class", err)
	}
	if !c.IsActive {
		return nil, ErrClassNotFound
	}

	g, err := s.GetGym(ctx, c.GymID)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(g.OwnerID) {
		return nil, ErrNotGymOwner
	}

	sch := &ClassSchedule{
		ClassID:    classID,
		StartTime:  req.StartTime.UTC(),
		EndTime:    req.EndTime.UTC(),
		Instructor: strings.TrimSpace(req.Instructor),
	}
	if err := s.repo.CreateSchedule(ctx, sch); err != nil {
		return nil, apperr.Persistence("create schedule", err)
	}
	return sch, nil
}

func (s *service) ListSchedules(ctx context.Context, gymID int, includePast bool) ([]ScheduleWithAvailability, error) {
	if _, err := s.GetGym(ctx, gymID); err != nil {
		return nil, err
	}

	var from *time.Time
	if !includePast {
		now := s.now()
		from = &now
	}

	rows, err := s.repo.ListSchedules(ctx, gymID, from)
	if err != nil {
		return nil, apperr.Persistence("list schedules", err)
	}

	out := make([]ScheduleWithAvailability, 0, len(rows))
	for _, d := range rows {
		out = append(out, withAvailability(d))
	}
	return out, nil
}
