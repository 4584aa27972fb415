package gym

import "time"

type Gym struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Address     string    `db:"address" json:"address"`
	Description string    `db:"description" json:"description"`
	OwnerID     int       `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GymClass is a recurring class type. A nil MaxCapacity means unlimited.
type GymClass struct {
	ID              int       `db:"id" json:"id"`
	GymID           int       `db:"gym_id" json:"gym_id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	MaxCapacity     *int      `db:"max_capacity" json:"max_capacity"`
	MembersOnly     bool      `db:"members_only" json:"members_only"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ClassSchedule is one dated occurrence of a class. CurrentBookings is
// maintained by the booking engine only.
type ClassSchedule struct {
	ID              int       `db:"id" json:"id"`
	ClassID         int       `db:"class_id" json:"class_id"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	EndTime         time.Time `db:"end_time" json:"end_time"`
	Instructor      string    `db:"instructor" json:"instructor"`
	CurrentBookings int       `db:"current_bookings" json:"current_bookings"`
	IsCancelled     bool      `db:"is_cancelled" json:"is_cancelled"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ScheduleDetails joins a schedule with its class and gym.
type ScheduleDetails struct {
	ClassSchedule
	ClassName   string `db:"class_name" json:"class_name"`
	MaxCapacity *int   `db:"max_capacity" json:"max_capacity"`
	MembersOnly bool   `db:"members_only" json:"members_only"`
	ClassActive bool   `db:"class_active" json:"class_active"`
	GymID       int    `db:"gym_id" json:"gym_id"`
	GymName     string `db:"gym_name" json:"gym_name"`
	GymOwnerID  int    `db:"gym_owner_id" json:"gym_owner_id"`
}

func (d *ScheduleDetails) Started(now time.Time) bool {
	return !d.StartTime.After(now)
}

type ScheduleWithAvailability struct {
	ScheduleDetails
	Available *int `json:"available"`
	IsFull    bool `json:"is_full"`
}

func withAvailability(d ScheduleDetails) ScheduleWithAvailability {
	out := ScheduleWithAvailability{ScheduleDetails: d}
	if d.MaxCapacity != nil {
		left := *d.MaxCapacity - d.CurrentBookings
		if left < 0 {
			left = 0
		}
		out.Available = &left
		out.IsFull = left == 0
	}
	return out
}

type CreateGymRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255" example:"Iron Temple"`
	Address     string `json:"address" validate:"max=500" example:"12 Main St"`
	Description string `json:"description" validate:"max=2000"`
}

type CreateClassRequest struct {
	Name            string `json:"name" validate:"required,max=255" example:"Morning Yoga"`
	Description     string `json:"description" validate:"max=2000"`
	MaxCapacity     *int   `json:"max_capacity" validate:"omitempty,gt=0" example:"20"`
	MembersOnly     bool   `json:"members_only"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,gt=0,lte=600" example:"60"`
}

type CreateScheduleRequest struct {
	StartTime  time.Time `json:"start_time" validate:"required" example:"2026-01-05T09:00:00Z"`
	EndTime    time.Time `json:"end_time" validate:"required" example:"2026-01-05T10:00:00Z"`
	Instructor string    `json:"instructor" validate:"max=255" example:"Sam"`
}
