package booking

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"fittrack/internal/capacity"
	"fittrack/internal/events"
	"fittrack/internal/gym"
	"fittrack/internal/membership"

	"github.com/jmoiron/sqlx"
)

type memState struct {
	gyms        map[int]gym.Gym
	classes     map[int]gym.GymClass
	schedules   map[int]gym.ClassSchedule
	plans       map[int]membership.Plan
	memberships map[int]membership.Membership
	bookings    map[int]Booking
}

func (s memState) clone() memState {
	return memState{
		gyms:        maps.Clone(s.gyms),
		classes:     maps.Clone(s.classes),
		schedules:   maps.Clone(s.schedules),
		plans:       maps.Clone(s.plans),
		memberships: maps.Clone(s.memberships),
		bookings:    maps.Clone(s.bookings),
	}
}

// memStore is a transactional in-memory database. InTx holds one lock for the
// whole transaction and restores a snapshot when fn fails, which gives the
// engine serializable, all-or-nothing semantics.
type memStore struct {
	mu     sync.Mutex
	st     memState
	nextID int
	now    time.Time

	failCreate error
}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		now: now,
		st: memState{
			gyms:        map[int]gym.Gym{},
			classes:     map[int]gym.GymClass{},
			schedules:   map[int]gym.ClassSchedule{},
			plans:       map[int]membership.Plan{},
			memberships: map[int]membership.Membership{},
			bookings:    map[int]Booking{},
		},
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *memStore) InTx(_ context.Context, fn func(q sqlx.ExtContext) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.st.clone()
	next := m.nextID
	if err := fn(nil); err != nil {
		m.st = snap
		m.nextID = next
		return err
	}
	return nil
}

// Seeding and inspection helpers.

func (m *memStore) seedGym(ownerID int) int {
	id := m.id()
	m.st.gyms[id] = gym.Gym{ID: id, Name: "Iron Temple", OwnerID: ownerID}
	return id
}

func (m *memStore) seedClass(gymID int, maxCapacity *int, membersOnly bool) int {
	id := m.id()
	m.st.classes[id] = gym.GymClass{ID: id, GymID: gymID, Name: "Spin", MaxCapacity: maxCapacity, MembersOnly: membersOnly, IsActive: true}
	return id
}

func (m *memStore) seedSchedule(classID int, start time.Time) int {
	id := m.id()
	m.st.schedules[id] = gym.ClassSchedule{ID: id, ClassID: classID, StartTime: start, EndTime: start.Add(time.Hour)}
	return id
}

func (m *memStore) seedPlan(gymID int, limit *int) int {
	id := m.id()
	m.st.plans[id] = membership.Plan{ID: id, GymID: gymID, Name: "Monthly", DurationDays: 30, MaxBookingsPerWeek: limit, IsActive: true}
	return id
}

func (m *memStore) seedMembership(ms membership.Membership) int {
	ms.ID = m.id()
	if ms.Status == "" {
		ms.Status = membership.StatusActive
	}
	m.st.memberships[ms.ID] = ms
	return ms.ID
}

func (m *memStore) schedule(id int) gym.ClassSchedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.schedules[id]
}

func (m *memStore) membershipByID(id int) membership.Membership {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.memberships[id]
}

func (m *memStore) booking(id int) Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.bookings[id]
}

// Catalog.

func (m *memStore) GetScheduleDetails(_ context.Context, _ sqlx.QueryerContext, id int) (*gym.ScheduleDetails, error) {
	s, ok := m.st.schedules[id]
	if !ok {
		return nil, gym.ErrRecordNotFound
	}
	c := m.st.classes[s.ClassID]
	g := m.st.gyms[c.GymID]
	return &gym.ScheduleDetails{
		ClassSchedule: s,
		ClassName:     c.Name,
		MaxCapacity:   c.MaxCapacity,
		MembersOnly:   c.MembersOnly,
		ClassActive:   c.IsActive,
		GymID:         g.ID,
		GymName:       g.Name,
		GymOwnerID:    g.OwnerID,
	}, nil
}

func (m *memStore) GetGymByID(_ context.Context, id int) (*gym.Gym, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.st.gyms[id]
	if !ok {
		return nil, gym.ErrRecordNotFound
	}
	return &g, nil
}

// capacity.Store.

func (m *memStore) IncrementIfAvailable(_ context.Context, _ sqlx.ExtContext, id int) (bool, error) {
	s, ok := m.st.schedules[id]
	if !ok || s.IsCancelled {
		return false, nil
	}
	c := m.st.classes[s.ClassID]
	if c.MaxCapacity != nil && s.CurrentBookings >= *c.MaxCapacity {
		return false, nil
	}
	s.CurrentBookings++
	m.st.schedules[id] = s
	return true, nil
}

func (m *memStore) GetSeatState(_ context.Context, _ sqlx.QueryerContext, id int) (*capacity.SeatState, error) {
	s, ok := m.st.schedules[id]
	if !ok {
		return nil, capacity.ErrNoSchedule
	}
	return &capacity.SeatState{
		ScheduleID:      id,
		CurrentBookings: s.CurrentBookings,
		MaxCapacity:     m.st.classes[s.ClassID].MaxCapacity,
		IsCancelled:     s.IsCancelled,
	}, nil
}

func (m *memStore) Decrement(_ context.Context, _ sqlx.ExtContext, id int) error {
	s := m.st.schedules[id]
	s.CurrentBookings = max(s.CurrentBookings-1, 0)
	m.st.schedules[id] = s
	return nil
}

func (m *memStore) Reset(_ context.Context, _ sqlx.ExtContext, id int) error {
	s := m.st.schedules[id]
	s.CurrentBookings = 0
	m.st.schedules[id] = s
	return nil
}

// membership.QuotaStore.

func (m *memStore) ListForUpdate(_ context.Context, _ sqlx.QueryerContext, userID, gymID int) ([]membership.ActiveMembership, error) {
	var out []membership.ActiveMembership
	for _, ms := range m.st.memberships {
		if ms.UserID != userID || ms.GymID != gymID {
			continue
		}
		p := m.st.plans[ms.PlanID]
		out = append(out, membership.ActiveMembership{Membership: ms, PlanName: p.Name, MaxBookingsPerWeek: p.MaxBookingsPerWeek})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ResetWeeklyCount(_ context.Context, _ sqlx.ExecerContext, id int, at time.Time) error {
	ms := m.st.memberships[id]
	ms.BookingsUsedThisWeek = 0
	ms.LastBookingCountReset = at
	m.st.memberships[id] = ms
	return nil
}

func (m *memStore) IncrementWeeklyCount(_ context.Context, _ sqlx.ExecerContext, id int, limit *int) (bool, error) {
	ms := m.st.memberships[id]
	if limit != nil && ms.BookingsUsedThisWeek >= *limit {
		return false, nil
	}
	ms.BookingsUsedThisWeek++
	m.st.memberships[id] = ms
	return true, nil
}

// Repository.

func (m *memStore) Create(_ context.Context, _ sqlx.QueryerContext, b *Booking) error {
	if m.failCreate != nil {
		return m.failCreate
	}
	for _, other := range m.st.bookings {
		if other.UserID == b.UserID && other.ScheduleID == b.ScheduleID && other.Status == StatusConfirmed {
			return ErrDuplicate
		}
	}
	b.ID = m.id()
	b.UpdatedAt = b.BookingTime
	m.st.bookings[b.ID] = *b
	return nil
}

func (m *memStore) GetForUpdate(_ context.Context, _ sqlx.QueryerContext, id int) (*Booking, error) {
	b, ok := m.st.bookings[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &b, nil
}

func (m *memStore) HasConfirmed(_ context.Context, _ sqlx.QueryerContext, userID, scheduleID int) (bool, error) {
	for _, b := range m.st.bookings {
		if b.UserID == userID && b.ScheduleID == scheduleID && b.Status == StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Cancel(_ context.Context, _ sqlx.ExecerContext, id int, reason *string, at time.Time) error {
	b := m.st.bookings[id]
	b.Status = StatusCancelled
	b.CancellationReason = reason
	b.UpdatedAt = at
	m.st.bookings[id] = b
	return nil
}

func (m *memStore) MarkAttended(_ context.Context, _ sqlx.ExecerContext, id int, at time.Time) error {
	b := m.st.bookings[id]
	b.Status = StatusAttended
	b.Attended = true
	b.UpdatedAt = at
	m.st.bookings[id] = b
	return nil
}

func (m *memStore) MarkScheduleCancelled(_ context.Context, _ sqlx.ExecerContext, id int) error {
	s := m.st.schedules[id]
	s.IsCancelled = true
	m.st.schedules[id] = s
	return nil
}

func (m *memStore) CancelAllForSchedule(_ context.Context, _ sqlx.QueryerContext, scheduleID int, reason string, at time.Time) ([]Booking, error) {
	out := []Booking{}
	for id, b := range m.st.bookings {
		if b.ScheduleID != scheduleID || b.Status != StatusConfirmed {
			continue
		}
		b.Status = StatusCancelled
		b.CancellationReason = &reason
		b.UpdatedAt = at
		m.st.bookings[id] = b
		out = append(out, b)
	}
	return out, nil
}

func (m *memStore) ListByUser(_ context.Context, userID int) ([]Details, error) {
	return m.list(func(b Booking, _ gym.GymClass) bool { return b.UserID == userID }), nil
}

func (m *memStore) ListBySchedule(_ context.Context, scheduleID int) ([]Details, error) {
	return m.list(func(b Booking, _ gym.GymClass) bool { return b.ScheduleID == scheduleID }), nil
}

func (m *memStore) ListByGym(_ context.Context, gymID int) ([]Details, error) {
	return m.list(func(_ Booking, c gym.GymClass) bool { return c.GymID == gymID }), nil
}

func (m *memStore) StatsByDay(_ context.Context, gymID int, from, to time.Time) ([]DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDay := map[string]*DailyStats{}
	for _, b := range m.st.bookings {
		c := m.st.classes[m.st.schedules[b.ScheduleID].ClassID]
		if c.GymID != gymID || b.BookingTime.Before(from) || !b.BookingTime.Before(to) {
			continue
		}
		day := b.BookingTime.UTC().Format("2006-01-02")
		st, ok := byDay[day]
		if !ok {
			st = &DailyStats{Day: day}
			byDay[day] = st
		}
		st.Booked++
		switch b.Status {
		case StatusCancelled:
			st.Cancelled++
		case StatusAttended:
			st.Attended++
		}
	}

	out := []DailyStats{}
	for _, st := range byDay {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (m *memStore) list(keep func(Booking, gym.GymClass) bool) []Details {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Details{}
	for _, b := range m.st.bookings {
		s := m.st.schedules[b.ScheduleID]
		c := m.st.classes[s.ClassID]
		if !keep(b, c) {
			continue
		}
		out = append(out, Details{
			Booking:   b,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			ClassName: c.Name,
			GymID:     c.GymID,
			GymName:   m.st.gyms[c.GymID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []events.BookingEvent
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, ev)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.got))
	for _, ev := range p.got {
		out = append(out, ev.Type)
	}
	return out
}
