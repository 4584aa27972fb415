// Package membership manages plans, memberships and their weekly booking quota.
package membership

import (
	"context"
	"time"

	"fittrack/internal/apperr"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNoActiveMembership = apperr.NotFound("no_active_membership", "no active membership for this gym")
	ErrQuotaExceeded      = apperr.New(apperr.KindQuotaExceeded, "quota_exceeded", "weekly booking quota exceeded")
)

// EffectiveStatus derives the status a membership really has at now. A stored
// active membership whose end date has passed counts as expired.
func EffectiveStatus(stored Status, endDate, now time.Time) Status {
	if stored == StatusActive && endDate.Before(now) {
		return StatusExpired
	}
	return stored
}

// WeekStart returns Monday 00:00 of the ISO week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	return time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
}

// NeedsQuotaReset reports whether now falls in a later week than last.
func NeedsQuotaReset(last, now time.Time, loc *time.Location) bool {
	return WeekStart(now, loc).After(WeekStart(last, loc))
}

// QuotaStore is the persistence the lifecycle needs. All calls run on the
// caller's transaction.
type QuotaStore interface {
	// ListForUpdate returns every membership of the user at the gym with its
	// plan quota, locking the membership rows.
	ListForUpdate(ctx context.Context, q sqlx.QueryerContext, userID, gymID int) ([]ActiveMembership, error)
	ResetWeeklyCount(ctx context.Context, q sqlx.ExecerContext, membershipID int, at time.Time) error
	// IncrementWeeklyCount adds one booking unless limit is set and reached.
	IncrementWeeklyCount(ctx context.Context, q sqlx.ExecerContext, membershipID int, limit *int) (bool, error)
}

type Lifecycle struct {
	store QuotaStore
	loc   *time.Location
	now   func() time.Time
}

// NewLifecycle builds a lifecycle whose weeks start on Monday in loc. A nil
// now uses time.Now.
func NewLifecycle(store QuotaStore, loc *time.Location, now func() time.Time) *Lifecycle {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{store: store, loc: loc, now: now}
}

func (l *Lifecycle) Now() time.Time {
	return l.now()
}

func (l *Lifecycle) Location() *time.Location {
	return l.loc
}

// FindActive picks the effectively active membership without touching the
// quota counter. Latest end date wins, then highest id.
func (l *Lifecycle) FindActive(ctx context.Context, q sqlx.QueryerContext, userID, gymID int) (*ActiveMembership, error) {
	rows, err := l.store.ListForUpdate(ctx, q, userID, gymID)
	if err != nil {
		return nil, apperr.Persistence("load memberships", err)
	}

	now := l.now()
	var best *ActiveMembership
	for i := range rows {
		m := &rows[i]
		if EffectiveStatus(m.Status, m.EndDate, now) != StatusActive {
			continue
		}
		if best == nil || m.EndDate.After(best.EndDate) || (m.EndDate.Equal(best.EndDate) && m.ID > best.ID) {
			best = m
		}
	}
	if best == nil {
		return nil, ErrNoActiveMembership
	}
	return best, nil
}

// Resolve returns the caller's usable membership at the gym with its weekly
// counter brought up to date. The reset is written before anyone reads the
// counter.
func (l *Lifecycle) Resolve(ctx context.Context, q sqlx.ExtContext, userID, gymID int) (*ActiveMembership, error) {
	m, err := l.FindActive(ctx, q, userID, gymID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if NeedsQuotaReset(m.LastBookingCountReset, now, l.loc) {
		if err := l.store.ResetWeeklyCount(ctx, q, m.ID, now); err != nil {
			return nil, apperr.Persistence("reset weekly quota", err)
		}
		m.BookingsUsedThisWeek = 0
		m.LastBookingCountReset = now
	}
	return m, nil
}

// ConsumeQuota records one booking against m with a conditional increment.
func (l *Lifecycle) ConsumeQuota(ctx context.Context, q sqlx.ExecerContext, m *ActiveMembership) error {
	ok, err := l.store.IncrementWeeklyCount(ctx, q, m.ID, m.MaxBookingsPerWeek)
	if err != nil {
		return apperr.Persistence("consume quota", err)
	}
	if !ok {
		return ErrQuotaExceeded
	}
	m.BookingsUsedThisWeek++
	return nil
}
