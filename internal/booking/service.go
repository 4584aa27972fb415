// Package booking is the engine that takes, releases and settles seats on
// class schedules against membership quotas.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"fittrack/internal/apperr"
	"fittrack/internal/auth"
	"fittrack/internal/capacity"
	"fittrack/internal/db"
	"fittrack/internal/events"
	"fittrack/internal/gym"
	"fittrack/internal/logger"
	"fittrack/internal/membership"
	"fittrack/internal/metrics"

	"github.com/jmoiron/sqlx"
)

var (
	ErrBookingNotFound       = apperr.NotFound("booking_not_found", "booking not found")
	ErrScheduleNotFound      = capacity.ErrScheduleNotFound
	ErrGymNotFound           = apperr.NotFound("gym_not_found", "gym not found")
	ErrMembershipRequired    = apperr.New(apperr.KindMembershipRequired, "membership_required", "an active membership is required for this class")
	ErrAlreadyCancelled      = apperr.New(apperr.KindAlreadyCancelled, "booking_already_cancelled", "booking is already cancelled")
	ErrScheduleAlreadyClosed = apperr.New(apperr.KindAlreadyCancelled, "schedule_already_cancelled", "schedule is already cancelled")
	ErrBookingAttended       = apperr.InvalidState("booking_attended", "booking was already attended")
	ErrBookingNotConfirmed   = apperr.InvalidState("booking_not_confirmed", "only confirmed bookings can be marked attended")
	ErrScheduleStarted       = apperr.InvalidState("schedule_started", "class has already started")
	ErrScheduleNotStarted    = apperr.InvalidState("schedule_not_started", "class has not started yet")
	ErrAlreadyBooked         = apperr.InvalidState("already_booked", "you already hold a booking for this class")
	ErrNotGymOwner           = apperr.Forbidden("not_gym_owner", "only the gym owner can manage its schedules")
	ErrInvalidStatsRange     = apperr.Validation("invalid_stats_range", "from must not be after to and the range is at most 366 days")
)

const maxStatsDays = 366

// Catalog reads schedules and gyms.
type Catalog interface {
	GetScheduleDetails(ctx context.Context, q sqlx.QueryerContext, id int) (*gym.ScheduleDetails, error)
	GetGymByID(ctx context.Context, id int) (*gym.Gym, error)
}

// Memberships resolves and charges the weekly quota.
type Memberships interface {
	Resolve(ctx context.Context, q sqlx.ExtContext, userID, gymID int) (*membership.ActiveMembership, error)
	ConsumeQuota(ctx context.Context, q sqlx.ExecerContext, m *membership.ActiveMembership) error
	Now() time.Time
}

// Seats is the capacity ledger.
type Seats interface {
	TryReserveSeat(ctx context.Context, q sqlx.ExtContext, scheduleID int) error
	ReleaseSeat(ctx context.Context, q sqlx.ExtContext, scheduleID int) error
	ResetSeats(ctx context.Context, q sqlx.ExtContext, scheduleID int) error
}

type Service interface {
	CreateBooking(ctx context.Context, caller auth.Caller, scheduleID int) (*Booking, error)
	CancelBooking(ctx context.Context, caller auth.Caller, bookingID int, reason string) (*Booking, error)
	MarkAttended(ctx context.Context, caller auth.Caller, bookingID int) (*Booking, error)
	CancelSchedule(ctx context.Context, caller auth.Caller, scheduleID int, reason string) (*CancelScheduleResult, error)

	ListMine(ctx context.Context, caller auth.Caller) ([]Details, error)
	ListBySchedule(ctx context.Context, caller auth.Caller, scheduleID int) ([]Details, error)
	ListByGym(ctx context.Context, caller auth.Caller, gymID int) ([]Details, error)
	// Stats returns daily counts for the days from through to, inclusive.
	Stats(ctx context.Context, caller auth.Caller, gymID int, from, to time.Time) ([]DailyStats, error)
}

type service struct {
	repo        Repository
	catalog     Catalog
	memberships Memberships
	seats       Seats
	tx          db.TxRunner
	publisher   events.Publisher
}

func NewService(repo Repository, catalog Catalog, memberships Memberships, seats Seats, tx db.TxRunner, publisher events.Publisher) Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &service{
		repo:        repo,
		catalog:     catalog,
		memberships: memberships,
		seats:       seats,
		tx:          tx,
		publisher:   publisher,
	}
}

// CreateBooking runs every check and write in one transaction, so a failure
// after the seat is reserved undoes the reservation and the quota use too.
func (s *service) CreateBooking(ctx context.Context, caller auth.Caller, scheduleID int) (*Booking, error) {
	var (
		b *Booking
		d *gym.ScheduleDetails
	)

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		d, err = s.loadSchedule(ctx, q, scheduleID)
		if err != nil {
			return err
		}
		if !d.ClassActive {
			return ErrScheduleNotFound
		}
		if d.IsCancelled {
			return capacity.ErrScheduleCancelled
		}

		now := s.memberships.Now()
		if d.Started(now) {
			return ErrScheduleStarted
		}

		dup, err := s.repo.HasConfirmed(ctx, q, caller.UserID, scheduleID)
		if err != nil {
			return apperr.Persistence("check existing booking", err)
		}
		if dup {
			return ErrAlreadyBooked
		}

		m, err := s.memberships.Resolve(ctx, q, caller.UserID, d.GymID)
		switch {
		case errors.Is(err, membership.ErrNoActiveMembership):
			m = nil
			if d.MembersOnly {
				return ErrMembershipRequired
			}
		case err != nil:
			return err
		}

		if m != nil && m.QuotaExhausted() {
			return membership.ErrQuotaExceeded
		}

		if err := s.seats.TryReserveSeat(ctx, q, scheduleID); err != nil {
			return err
		}

		b = &Booking{
			UserID:      caller.UserID,
			ScheduleID:  scheduleID,
			BookingTime: now,
			Status:      StatusConfirmed,
		}
		if m != nil {
			if err := s.memberships.ConsumeQuota(ctx, q, m); err != nil {
				return err
			}
			b.MembershipID = &m.ID
		}

		if err := s.repo.Create(ctx, q, b); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return ErrAlreadyBooked
			}
			return apperr.Persistence("insert booking", err)
		}
		return nil
	})
	if err != nil {
		s.reject("create", caller, scheduleID, err)
		return nil, apperr.Persistence("create booking", err)
	}

	metrics.RecordBooking(b.MembershipID != nil)
	logger.Info("booking confirmed",
		"booking_id", b.ID,
		"user_id", caller.UserID,
		"schedule_id", scheduleID,
		"membership_id", b.MembershipID,
	)
	s.publish(ctx, events.BookingConfirmed, b, d, "")
	return b, nil
}

func (s *service) CancelBooking(ctx context.Context, caller auth.Caller, bookingID int, reason string) (*Booking, error) {
	var (
		b *Booking
		d *gym.ScheduleDetails
	)
	reason = strings.TrimSpace(reason)

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		b, err = s.loadBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != caller.UserID && !caller.IsAdmin() {
			return ErrBookingNotFound
		}

		switch b.Status {
		case StatusCancelled:
			return ErrAlreadyCancelled
		case StatusAttended:
			return ErrBookingAttended
		}

		d, err = s.loadSchedule(ctx, q, b.ScheduleID)
		if err != nil {
			return err
		}
		now := s.memberships.Now()
		if d.Started(now) {
			return ErrScheduleStarted
		}

		var stored *string
		if reason != "" {
			stored = &reason
		}
		if err := s.repo.Cancel(ctx, q, b.ID, stored, now); err != nil {
			return apperr.Persistence("cancel booking", err)
		}
		if err := s.seats.ReleaseSeat(ctx, q, b.ScheduleID); err != nil {
			return err
		}

		b.Status = StatusCancelled
		b.CancellationReason = stored
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.reject("cancel", caller, bookingID, err)
		return nil, apperr.Persistence("cancel booking", err)
	}

	metrics.RecordBookingCancellation()
	logger.Info("booking cancelled", "booking_id", b.ID, "user_id", b.UserID, "by", caller.UserID)
	s.publish(ctx, events.BookingCancelled, b, d, reason)
	return b, nil
}

func (s *service) MarkAttended(ctx context.Context, caller auth.Caller, bookingID int) (*Booking, error) {
	var (
		b *Booking
		d *gym.ScheduleDetails
	)

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		b, err = s.loadBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		d, err = s.loadSchedule(ctx, q, b.ScheduleID)
		if err != nil {
			return err
		}
		if b.UserID != caller.UserID && !caller.CanManage(d.GymOwnerID) {
			return ErrBookingNotFound
		}

		if b.Status != StatusConfirmed {
			return ErrBookingNotConfirmed
		}
		now := s.memberships.Now()
		if !d.Started(now) {
			return ErrScheduleNotStarted
		}

		if err := s.repo.MarkAttended(ctx, q, b.ID, now); err != nil {
			return apperr.Persistence("mark attended", err)
		}
		b.Status = StatusAttended
		b.Attended = true
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.reject("attend", caller, bookingID, err)
		return nil, apperr.Persistence("mark attended", err)
	}

	metrics.RecordAttendance()
	logger.Info("booking attended", "booking_id", b.ID, "user_id", b.UserID, "by", caller.UserID)
	s.publish(ctx, events.BookingAttended, b, d, "")
	return b, nil
}

// CancelSchedule closes a schedule and cancels every confirmed booking on it.
// Quota already used by those bookings stays used.
func (s *service) CancelSchedule(ctx context.Context, caller auth.Caller, scheduleID int, reason string) (*CancelScheduleResult, error) {
	var (
		d         *gym.ScheduleDetails
		cancelled []Booking
	)
	reason = strings.TrimSpace(reason)

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		d, err = s.loadSchedule(ctx, q, scheduleID)
		if err != nil {
			return err
		}
		if !caller.CanManage(d.GymOwnerID) {
			return ErrNotGymOwner
		}
		if d.IsCancelled {
			return ErrScheduleAlreadyClosed
		}

		if err := s.repo.MarkScheduleCancelled(ctx, q, scheduleID); err != nil {
			return apperr.Persistence("mark schedule cancelled", err)
		}
		cancelled, err = s.repo.CancelAllForSchedule(ctx, q, scheduleID, reason, s.memberships.Now())
		if err != nil {
			return apperr.Persistence("cancel schedule bookings", err)
		}
		return s.seats.ResetSeats(ctx, q, scheduleID)
	})
	if err != nil {
		s.reject("cancel_schedule", caller, scheduleID, err)
		return nil, apperr.Persistence("cancel schedule", err)
	}

	metrics.RecordScheduleCancellation()
	logger.Info("schedule cancelled", "schedule_id", scheduleID, "bookings", len(cancelled), "by", caller.UserID)
	for i := range cancelled {
		s.publish(ctx, events.BookingCancelled, &cancelled[i], d, reason)
	}
	return &CancelScheduleResult{ScheduleID: scheduleID, CancelledBookings: len(cancelled)}, nil
}

func (s *service) ListMine(ctx context.Context, caller auth.Caller) ([]Details, error) {
	rows, err := s.repo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.Persistence("list bookings", err)
	}
	return s.withDisplayStatus(rows), nil
}

func (s *service) ListBySchedule(ctx context.Context, caller auth.Caller, scheduleID int) ([]Details, error) {
	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		d, err := s.loadSchedule(ctx, q, scheduleID)
		if err != nil {
			return err
		}
		if !caller.CanManage(d.GymOwnerID) {
			return ErrNotGymOwner
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("load schedule", err)
	}

	rows, err := s.repo.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, apperr.Persistence("list schedule bookings", err)
	}
	return s.withDisplayStatus(rows), nil
}

func (s *service) ListByGym(ctx context.Context, caller auth.Caller, gymID int) ([]Details, error) {
	g, err := s.catalog.GetGymByID(ctx, gymID)
	if err != nil {
		if errors.Is(err, gym.ErrRecordNotFound) {
			return nil, ErrGymNotFound
		}
		return nil, apperr.Persistence("load gym", err)
	}
	if !caller.CanManage(g.OwnerID) {
		return nil, ErrNotGymOwner
	}

	rows, err := s.repo.ListByGym(ctx, gymID)
	if err != nil {
		return nil, apperr.Persistence("list gym bookings", err)
	}
	return s.withDisplayStatus(rows), nil
}

func (s *service) Stats(ctx context.Context, caller auth.Caller, gymID int, from, to time.Time) ([]DailyStats, error) {
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) || to.Sub(from) >= maxStatsDays*24*time.Hour {
		return nil, ErrInvalidStatsRange
	}

	g, err := s.catalog.GetGymByID(ctx, gymID)
	if err != nil {
		if errors.Is(err, gym.ErrRecordNotFound) {
			return nil, ErrGymNotFound
		}
		return nil, apperr.Persistence("load gym", err)
	}
	if !caller.CanManage(g.OwnerID) {
		return nil, ErrNotGymOwner
	}

	stats, err := s.repo.StatsByDay(ctx, gymID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, apperr.Persistence("booking stats", err)
	}
	return stats, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *service) withDisplayStatus(rows []Details) []Details {
	now := s.memberships.Now()
	for i := range rows {
		rows[i].DisplayStatus = DisplayStatus(rows[i].Status, rows[i].StartTime, now)
	}
	return rows
}

func (s *service) loadSchedule(ctx context.Context, q sqlx.QueryerContext, id int) (*gym.ScheduleDetails, error) {
	d, err := s.catalog.GetScheduleDetails(ctx, q, id)
	if err != nil {
		if errors.Is(err, gym.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, apperr.Persistence("load schedule", err)
	}
	return d, nil
}

func (s *service) loadBooking(ctx context.Context, q sqlx.QueryerContext, id int) (*Booking, error) {
	b, err := s.repo.GetForUpdate(ctx, q, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, apperr.Persistence("load booking", err)
	}
	return b, nil
}

// reject counts business-rule rejections; persistence failures are logged by the HTTP layer.
func (s *service) reject(op string, caller auth.Caller, id int, err error) {
	if apperr.KindOf(err) == apperr.KindPersistence {
		return
	}
	code := apperr.CodeOf(err)
	metrics.RecordBookingRejection(code)
	logger.Debug("booking operation rejected", "op", op, "user_id", caller.UserID, "id", id, "code", code)
}

// publish runs after commit; a broker failure never fails the request.
func (s *service) publish(ctx context.Context, typ events.Type, b *Booking, d *gym.ScheduleDetails, reason string) {
	ev := events.BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		UserID:     b.UserID,
		ScheduleID: b.ScheduleID,
		Reason:     reason,
		OccurredAt: s.memberships.Now(),
	}
	if d != nil {
		ev.ClassName = d.ClassName
		ev.GymName = d.GymName
		ev.StartTime = d.StartTime
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn("booking event not published", "type", typ, "booking_id", b.ID, "error", err)
	}
}
