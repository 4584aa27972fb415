package membership

import (
	"context"
	"testing"
	"time"

	"fittrack/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		stored Status
		end    time.Time
		want   Status
	}{
		{"active in window", StatusActive, now.Add(time.Hour), StatusActive},
		{"active ending now", StatusActive, now, StatusActive},
		{"active past end", StatusActive, now.Add(-time.Second), StatusExpired},
		{"cancelled stays cancelled", StatusCancelled, now.Add(time.Hour), StatusCancelled},
		{"expired stays expired", StatusExpired, now.Add(time.Hour), StatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveStatus(tt.stored, tt.end, now))
		})
	}
}

func TestWeekStart(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   time.Time
		loc  *time.Location
		want time.Time
	}{
		{"monday midnight", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.UTC, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), time.UTC, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"wednesday", time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC), nil, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"sunday utc is monday in berlin", time.Date(2026, 3, 8, 23, 30, 0, 0, time.UTC), berlin, time.Date(2026, 3, 9, 0, 0, 0, 0, berlin)},
		{"across month boundary", time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC), time.UTC, time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(WeekStart(tt.in, tt.loc)), "got %s", WeekStart(tt.in, tt.loc))
		})
	}
}

func TestNeedsQuotaReset(t *testing.T) {
	wed := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	assert.False(t, NeedsQuotaReset(wed, wed.Add(48*time.Hour), time.UTC), "same week")
	assert.True(t, NeedsQuotaReset(wed, wed.Add(5*24*time.Hour), time.UTC), "next monday")
	assert.True(t, NeedsQuotaReset(wed.Add(-8*24*time.Hour), wed, time.UTC), "eight days ago")
	assert.False(t, NeedsQuotaReset(wed, wed.Add(-24*time.Hour), time.UTC), "clock skew backwards")
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolve_ResetsQuotaInNewWeek(t *testing.T) {
	now := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	limit := 3
	planID := repo.addPlan(Plan{GymID: 1, DurationDays: 30, MaxBookingsPerWeek: &limit, IsActive: true})
	id := repo.addMembership(Membership{
		UserID: 7, GymID: 1, PlanID: planID, Status: StatusActive,
		StartDate: now.Add(-10 * 24 * time.Hour), EndDate: now.Add(20 * 24 * time.Hour),
		BookingsUsedThisWeek: 3, LastBookingCountReset: now.Add(-8 * 24 * time.Hour),
	})

	lc := NewLifecycle(repo, time.UTC, fixedClock(now))
	m, err := lc.Resolve(context.Background(), nil, 7, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, m.BookingsUsedThisWeek)
	assert.True(t, m.LastBookingCountReset.Equal(now))
	assert.Equal(t, 0, repo.memberships[id].BookingsUsedThisWeek, "reset is persisted")
	assert.True(t, repo.memberships[id].LastBookingCountReset.Equal(now))
	assert.False(t, m.QuotaExhausted())
}

func TestResolve_KeepsCounterWithinWeek(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	limit := 3
	planID := repo.addPlan(Plan{GymID: 1, MaxBookingsPerWeek: &limit, IsActive: true})
	repo.addMembership(Membership{
		UserID: 7, GymID: 1, PlanID: planID, Status: StatusActive,
		EndDate: now.Add(time.Hour), BookingsUsedThisWeek: 3, LastBookingCountReset: now.Add(-48 * time.Hour),
	})

	m, err := NewLifecycle(repo, time.UTC, fixedClock(now)).Resolve(context.Background(), nil, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, m.BookingsUsedThisWeek)
	assert.True(t, m.QuotaExhausted())
}

func TestResolve_LazyExpiry(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	planID := repo.addPlan(Plan{GymID: 1, IsActive: true})
	repo.addMembership(Membership{
		UserID: 7, GymID: 1, PlanID: planID, Status: StatusActive,
		EndDate: now.Add(-24 * time.Hour), LastBookingCountReset: now,
	})

	_, err := NewLifecycle(repo, time.UTC, fixedClock(now)).Resolve(context.Background(), nil, 7, 1)
	assert.ErrorIs(t, err, ErrNoActiveMembership)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResolve_PicksLatestEnd(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	planID := repo.addPlan(Plan{GymID: 1, IsActive: true})
	end := now.Add(10 * 24 * time.Hour)

	repo.addMembership(Membership{UserID: 7, GymID: 1, PlanID: planID, Status: StatusActive, EndDate: end, LastBookingCountReset: now})
	tied := repo.addMembership(Membership{UserID: 7, GymID: 1, PlanID: planID, Status: StatusActive, EndDate: end, LastBookingCountReset: now})
	repo.addMembership(Membership{UserID: 7, GymID: 1, PlanID: planID, Status: StatusCancelled, EndDate: end.Add(time.Hour), LastBookingCountReset: now})
	repo.addMembership(Membership{UserID: 7, GymID: 2, PlanID: planID, Status: StatusActive, EndDate: end.Add(time.Hour), LastBookingCountReset: now})

	m, err := NewLifecycle(repo, time.UTC, fixedClock(now)).Resolve(context.Background(), nil, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, tied, m.ID)
}

func TestConsumeQuota(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	limit := 2
	planID := repo.addPlan(Plan{GymID: 1, MaxBookingsPerWeek: &limit, IsActive: true})
	id := repo.addMembership(Membership{UserID: 7, GymID: 1, PlanID: planID, Status: StatusActive, EndDate: now.Add(time.Hour), BookingsUsedThisWeek: 1, LastBookingCountReset: now})

	lc := NewLifecycle(repo, time.UTC, fixedClock(now))
	m, err := lc.Resolve(context.Background(), nil, 7, 1)
	require.NoError(t, err)

	require.NoError(t, lc.ConsumeQuota(context.Background(), nil, m))
	assert.Equal(t, 2, m.BookingsUsedThisWeek)

	err = lc.ConsumeQuota(context.Background(), nil, m)
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Equal(t, 2, repo.memberships[id].BookingsUsedThisWeek)
}
