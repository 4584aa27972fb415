package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fittrack/internal/apperr"
	"fittrack/internal/auth"
	"fittrack/internal/capacity"
	"fittrack/internal/events"
	"fittrack/internal/membership"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerID = 100

var (
	alice = auth.Caller{UserID: 1, Role: auth.RoleMember}
	bob   = auth.Caller{UserID: 2, Role: auth.RoleMember}
	owner = auth.Caller{UserID: ownerID, Role: auth.RoleOwner}
	admin = auth.Caller{UserID: 999, Role: auth.RoleAdmin}

	// Wednesday.
	testNow = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
)

type engine struct {
	store *memStore
	pub   *recordingPublisher
	svc   Service
	gymID int
}

func newEngine() *engine {
	store := newMemStore(testNow)
	pub := &recordingPublisher{}
	lc := membership.NewLifecycle(store, time.UTC, func() time.Time { return store.now })
	svc := NewService(store, store, lc, capacity.NewLedger(store), store, pub)
	return &engine{store: store, pub: pub, svc: svc, gymID: store.seedGym(ownerID)}
}

func intPtr(v int) *int { return &v }

// schedule seeds a class and one schedule starting in a day.
func (e *engine) schedule(maxCapacity *int, membersOnly bool) int {
	classID := e.store.seedClass(e.gymID, maxCapacity, membersOnly)
	return e.store.seedSchedule(classID, testNow.Add(24*time.Hour))
}

func (e *engine) member(userID int, limit *int, used int) int {
	planID := e.store.seedPlan(e.gymID, limit)
	return e.store.seedMembership(membership.Membership{
		UserID: userID, GymID: e.gymID, PlanID: planID,
		StartDate: testNow.Add(-48 * time.Hour), EndDate: testNow.Add(20 * 24 * time.Hour),
		BookingsUsedThisWeek: used, LastBookingCountReset: testNow.Add(-time.Hour),
	})
}

func TestCreateBooking_LastSeatRace(t *testing.T) {
	e := newEngine()
	sched := e.schedule(intPtr(1), false)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, caller := range []auth.Caller{alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.svc.CreateBooking(context.Background(), caller, sched)
		}()
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, full)
	assert.Equal(t, 1, e.store.schedule(sched).CurrentBookings)
}

func TestCreateBooking_NeverOverbooks(t *testing.T) {
	e := newEngine()
	const seats = 5
	sched := e.schedule(intPtr(seats), false)

	var wg sync.WaitGroup
	var mu sync.Mutex
	confirmed := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			_, err := e.svc.CreateBooking(context.Background(), auth.Caller{UserID: userID, Role: auth.RoleMember}, sched)
			if err == nil {
				mu.Lock()
				confirmed++
				mu.Unlock()
			}
		}(1000 + i)
	}
	wg.Wait()

	assert.Equal(t, seats, confirmed)
	assert.Equal(t, seats, e.store.schedule(sched).CurrentBookings)
}

func TestCreateBooking_QuotaExhausted(t *testing.T) {
	e := newEngine()
	sched := e.schedule(intPtr(10), true)
	ms := e.member(alice.UserID, intPtr(3), 3)

	_, err := e.svc.CreateBooking(context.Background(), alice, sched)
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Equal(t, 0, e.store.schedule(sched).CurrentBookings)
	assert.Equal(t, 3, e.store.membershipByID(ms).BookingsUsedThisWeek)
}

func TestCreateBooking_QuotaResetsInNewWeek(t *testing.T) {
	e := newEngine()
	sched := e.schedule(nil, true)
	planID := e.store.seedPlan(e.gymID, intPtr(3))
	ms := e.store.seedMembership(membership.Membership{
		UserID: alice.UserID, GymID: e.gymID, PlanID: planID,
		EndDate: testNow.Add(10 * 24 * time.Hour), BookingsUsedThisWeek: 3,
		LastBookingCountReset: testNow.Add(-8 * 24 * time.Hour),
	})

	b, err := e.svc.CreateBooking(context.Background(), alice, sched)
	require.NoError(t, err)
	require.NotNil(t, b.MembershipID)
	assert.Equal(t, ms, *b.MembershipID)
	assert.Equal(t, 1, e.store.membershipByID(ms).BookingsUsedThisWeek)
	assert.True(t, e.store.membershipByID(ms).LastBookingCountReset.Equal(testNow))
}

func TestCreateBooking_QuotaBoundsBookingsPerWeek(t *testing.T) {
	e := newEngine()
	ms := e.member(alice.UserID, intPtr(2), 0)

	var confirmed int
	for i := 0; i < 4; i++ {
		_, err := e.svc.CreateBooking(context.Background(), alice, e.schedule(nil, false))
		if err == nil {
			confirmed++
			continue
		}
		assert.ErrorIs(t, err, membership.ErrQuotaExceeded)
	}
	assert.Equal(t, 2, confirmed)
	assert.Equal(t, 2, e.store.membershipByID(ms).BookingsUsedThisWeek)
}

func TestCreateBooking_ExpiredMembershipIsIgnored(t *testing.T) {
	e := newEngine()
	sched := e.schedule(intPtr(10), true)
	planID := e.store.seedPlan(e.gymID, nil)
	e.store.seedMembership(membership.Membership{
		UserID: alice.UserID, GymID: e.gymID, PlanID: planID,
		EndDate: testNow.Add(-24 * time.Hour), LastBookingCountReset: testNow,
	})

	_, err := e.svc.CreateBooking(context.Background(), alice, sched)
	assert.ErrorIs(t, err, ErrMembershipRequired)
	assert.ErrorIs(t, err, apperr.ErrMembershipRequired)
	assert.Equal(t, 0, e.store.schedule(sched).CurrentBookings)
}

func TestCreateBooking_OpenClassWithoutMembership(t *testing.T) {
	e := newEngine()
	sched := e.schedule(nil, false)

	b, err := e.svc.CreateBooking(context.Background(), alice, sched)
	require.NoError(t, err)
	assert.Nil(t, b.MembershipID)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.False(t, b.Attended)
	assert.True(t, b.BookingTime.Equal(testNow))
	assert.Equal(t, 1, e.store.schedule(sched).CurrentBookings)
	assert.Equal(t, []events.Type{events.BookingConfirmed}, e.pub.types())
}

func TestCreateBooking_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *engine) int
		want  error
	}{
		{
			name:  "schedule missing",
			setup: func(*engine) int { return 4242 },
			want:  ErrScheduleNotFound,
		},
		{
			name: "schedule cancelled",
			setup: func(e *engine) int {
				id := e.schedule(nil, false)
				s := e.store.st.schedules[id]
				s.IsCancelled = true
				e.store.st.schedules[id] = s
				return id
			},
			want: apperr.ErrScheduleCancelled,
		},
		{
			name: "class inactive",
			setup: func(e *engine) int {
				id := e.schedule(nil, false)
				c := e.store.st.classes[e.store.st.schedules[id].ClassID]
				c.IsActive = false
				e.store.st.classes[c.ID] = c
				return id
			},
			want: ErrScheduleNotFound,
		},
		{
			name: "schedule started",
			setup: func(e *engine) int {
				classID := e.store.seedClass(e.gymID, nil, false)
				return e.store.seedSchedule(classID, testNow)
			},
			want: ErrScheduleStarted,
		},
		{
			name: "class full",
			setup: func(e *engine) int {
				id := e.schedule(intPtr(1), false)
				_, err := e.svc.CreateBooking(context.Background(), bob, id)
				require.NoError(t, err)
				return id
			},
			want: capacity.ErrFull,
		},
		{
			name: "already booked",
			setup: func(e *engine) int {
				id := e.schedule(nil, false)
				_, err := e.svc.CreateBooking(context.Background(), alice, id)
				require.NoError(t, err)
				return id
			},
			want: ErrAlreadyBooked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine()
			id := tt.setup(e)
			_, err := e.svc.CreateBooking(context.Background(), alice, id)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateBooking_FailureAfterReserveRollsBack(t *testing.T) {
	e := newEngine()
	sched := e.schedule(intPtr(3), true)
	ms := e.member(alice.UserID, intPtr(5), 1)
	e.store.failCreate = errors.New("connection reset")

	_, err := e.svc.CreateBooking(context.Background(), alice, sched)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))

	assert.Equal(t, 0, e.store.schedule(sched).CurrentBookings, "seat released")
	assert.Equal(t, 1, e.store.membershipByID(ms).BookingsUsedThisWeek, "quota restored")
	assert.Empty(t, e.pub.types())
}

func TestCancelBooking(t *testing.T) {
	e := newEngine()
	sched := e.schedule(intPtr(5), true)
	ms := e.member(alice.UserID, intPtr(3), 0)

	b, err := e.svc.CreateBooking(context.Background(), alice, sched)
	require.NoError(t, err)
	require.Equal(t, 1, e.store.schedule(sched).CurrentBookings)

	_, err = e.svc.CancelBooking(context.Background(), bob, b.ID, "")
	assert.ErrorIs(t, err, ErrBookingNotFound, "other members cannot see it")

	got, err := e.svc.CancelBooking(context.Background(), alice, b.ID, "  feeling sick ")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "feeling sick", *got.CancellationReason)

	assert.Equal(t, 0, e.store.schedule(sched).CurrentBookings)
	assert.Equal(t, 1, e.store.membershipByID(ms).BookingsUsedThisWeek, "quota is not refunded")
	assert.Equal(t, StatusCancelled, e.store.booking(b.ID).Status)

	_, err = e.svc.CancelBooking(context.Background(), alice, b.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, 0, e.store.schedule(sched).CurrentBookings, "never below zero")

	assert.Equal(t, []events.Type{events.BookingConfirmed, events.BookingCancelled}, e.pub.types())
}

func TestCancelBooking_AdminAndStartedClass(t *testing.T) {
	e := newEngine()
	sched := e.schedule(nil, false)
	b, err := e.svc.CreateBooking(context.Background(), alice, sched)
	require.NoError(t, err)

	e.store.now = testNow.Add(25 * time.Hour)
	_, err = e.svc.CancelBooking(context.Background(), alice, b.ID, "")
	assert.ErrorIs(t, err, ErrScheduleStarted)

	e.store.now = testNow
	_, err = e.svc.CancelBooking(context.Background(), admin, b.ID, "")
	assert.NoError(t, err)
}

func TestMarkAttended(t *testing.T) {
	e := newEngine()
	sched := e.schedule(nil, false)
	b, err := e.svc.CreateBooking(context.Background(), alice, sched)
	require.NoError(t, err)

	_, err = e.svc.MarkAttended(context.Background(), alice, b.ID)
	assert.ErrorIs(t, err, ErrScheduleNotStarted)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	e.store.now = testNow.Add(24*time.Hour + 10*time.Minute)

	_, err = e.svc.MarkAttended(context.Background(), bob, b.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	got, err := e.svc.MarkAttended(context.Background(), owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAttended, got.Status)
	assert.True(t, got.Attended)
	assert.Equal(t, 1, e.store.schedule(sched).CurrentBookings, "attended seats stay taken")

	_, err = e.svc.MarkAttended(context.Background(), alice, b.ID)
	assert.ErrorIs(t, err, ErrBookingNotConfirmed)

	_, err = e.svc.CancelBooking(context.Background(), alice, b.ID, "")
	assert.ErrorIs(t, err, ErrBookingAttended)
}

func TestCancelSchedule(t *testing.T) {
	e := newEngine()
	sched := e.schedule(intPtr(5), false)
	ms := e.member(alice.UserID, intPtr(3), 0)
	for _, c := range []auth.Caller{alice, bob} {
		_, err := e.svc.CreateBooking(context.Background(), c, sched)
		require.NoError(t, err)
	}

	_, err := e.svc.CancelSchedule(context.Background(), bob, sched, "storm")
	assert.ErrorIs(t, err, ErrNotGymOwner)

	res, err := e.svc.CancelSchedule(context.Background(), owner, sched, "storm")
	require.NoError(t, err)
	assert.Equal(t, 2, res.CancelledBookings)

	s := e.store.schedule(sched)
	assert.True(t, s.IsCancelled)
	assert.Equal(t, 0, s.CurrentBookings)
	assert.Equal(t, 1, e.store.membershipByID(ms).BookingsUsedThisWeek)

	_, err = e.svc.CancelSchedule(context.Background(), admin, sched, "again")
	assert.ErrorIs(t, err, ErrScheduleAlreadyClosed)

	_, err = e.svc.CreateBooking(context.Background(), alice, sched)
	assert.ErrorIs(t, err, apperr.ErrScheduleCancelled)

	assert.Equal(t, []events.Type{
		events.BookingConfirmed, events.BookingConfirmed, events.BookingCancelled, events.BookingCancelled,
	}, e.pub.types())
}

func TestListMine_DerivesMissed(t *testing.T) {
	e := newEngine()
	past := e.store.seedSchedule(e.store.seedClass(e.gymID, nil, false), testNow.Add(time.Hour))
	future := e.schedule(nil, false)

	_, err := e.svc.CreateBooking(context.Background(), alice, past)
	require.NoError(t, err)
	_, err = e.svc.CreateBooking(context.Background(), alice, future)
	require.NoError(t, err)

	e.store.now = testNow.Add(2 * time.Hour)
	rows, err := e.svc.ListMine(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, StatusMissed, rows[0].DisplayStatus)
	assert.Equal(t, StatusConfirmed, rows[0].Status, "missed is never stored")
	assert.Equal(t, StatusConfirmed, rows[1].DisplayStatus)
}

func TestListByGymAndSchedule_OwnerOnly(t *testing.T) {
	e := newEngine()
	sched := e.schedule(nil, false)
	_, err := e.svc.CreateBooking(context.Background(), alice, sched)
	require.NoError(t, err)

	_, err = e.svc.ListByGym(context.Background(), alice, e.gymID)
	assert.ErrorIs(t, err, ErrNotGymOwner)
	_, err = e.svc.ListBySchedule(context.Background(), alice, sched)
	assert.ErrorIs(t, err, ErrNotGymOwner)
	_, err = e.svc.ListByGym(context.Background(), owner, 777)
	assert.ErrorIs(t, err, ErrGymNotFound)

	rows, err := e.svc.ListByGym(context.Background(), owner, e.gymID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = e.svc.ListBySchedule(context.Background(), admin, sched)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	e := newEngine()
	e.pub.err = errors.New("broker down")

	_, err := e.svc.CreateBooking(context.Background(), alice, e.schedule(nil, false))
	assert.NoError(t, err)
}

func TestDisplayStatus(t *testing.T) {
	start := testNow
	assert.Equal(t, StatusMissed, DisplayStatus(StatusConfirmed, start, start))
	assert.Equal(t, StatusConfirmed, DisplayStatus(StatusConfirmed, start, start.Add(-time.Second)))
	assert.Equal(t, StatusCancelled, DisplayStatus(StatusCancelled, start, start.Add(time.Hour)))
	assert.Equal(t, StatusAttended, DisplayStatus(StatusAttended, start, start.Add(time.Hour)))
}

func TestStats(t *testing.T) {
	e := newEngine()
	first, err := e.svc.CreateBooking(context.Background(), alice, e.schedule(nil, false))
	require.NoError(t, err)
	_, err = e.svc.CancelBooking(context.Background(), alice, first.ID, "")
	require.NoError(t, err)

	e.store.now = testNow.Add(24 * time.Hour)
	_, err = e.svc.CreateBooking(context.Background(), bob, e.store.seedSchedule(e.store.seedClass(e.gymID, nil, false), testNow.Add(48*time.Hour)))
	require.NoError(t, err)

	stats, err := e.svc.Stats(context.Background(), owner, e.gymID, testNow.AddDate(0, 0, -7), testNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []DailyStats{
		{Day: "2026-03-11", Booked: 1, Cancelled: 1},
		{Day: "2026-03-12", Booked: 1},
	}, stats)

	stats, err = e.svc.Stats(context.Background(), owner, e.gymID, testNow, testNow)
	require.NoError(t, err)
	assert.Len(t, stats, 1, "to is inclusive")

	_, err = e.svc.Stats(context.Background(), alice, e.gymID, testNow, testNow)
	assert.ErrorIs(t, err, ErrNotGymOwner)

	_, err = e.svc.Stats(context.Background(), owner, e.gymID, testNow, testNow.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidStatsRange)
	_, err = e.svc.Stats(context.Background(), owner, e.gymID, testNow, testNow.AddDate(2, 0, 0))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
