package booking

import "time"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusAttended  Status = "attended"
	// StatusMissed is never stored; see DisplayStatus.
	StatusMissed Status = "missed"
)

// Booking is one seat held by a user on a schedule. MembershipID is nil when
// the seat on an open class was taken without a membership.
type Booking struct {
	ID                 int       `db:"id" json:"id"`
	UserID             int       `db:"user_id" json:"user_id"`
	MembershipID       *int      `db:"membership_id" json:"membership_id"`
	ScheduleID         int       `db:"schedule_id" json:"schedule_id"`
	BookingTime        time.Time `db:"booking_time" json:"booking_time"`
	Status             Status    `db:"booking_status" json:"booking_status"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Attended           bool      `db:"attended" json:"attended"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Details is a booking joined with what a listing needs to show.
type Details struct {
	Booking
	StartTime     time.Time `db:"start_time" json:"start_time"`
	EndTime       time.Time `db:"end_time" json:"end_time"`
	ClassName     string    `db:"class_name" json:"class_name"`
	GymID         int       `db:"gym_id" json:"gym_id"`
	GymName       string    `db:"gym_name" json:"gym_name"`
	UserName      string    `db:"user_name" json:"user_name"`
	UserEmail     string    `db:"user_email" json:"user_email"`
	DisplayStatus Status    `db:"-" json:"display_status"`
}

// DisplayStatus reports a confirmed booking whose class already started as missed.
func DisplayStatus(stored Status, startTime, now time.Time) Status {
	if stored == StatusConfirmed && !startTime.After(now) {
		return StatusMissed
	}
	return stored
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500" example:"feeling sick"`
}

type CancelScheduleRequest struct {
	Reason string `json:"reason" validate:"required,max=500" example:"instructor unavailable"`
}

type CancelScheduleResult struct {
	ScheduleID        int `json:"schedule_id"`
	CancelledBookings int `json:"cancelled_bookings"`
}

// DailyStats counts bookings taken on one day and what became of them.
type DailyStats struct {
	Day       string `db:"day" json:"day" example:"2026-03-11"`
	Booked    int    `db:"booked" json:"booked"`
	Cancelled int    `db:"cancelled" json:"cancelled"`
	Attended  int    `db:"attended" json:"attended"`
}

type StatsQuery struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02" example:"2026-03-01"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02" example:"2026-03-31"`
}
