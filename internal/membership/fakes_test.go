package membership

import (
	"context"
	"sort"
	"sync"
	"time"

	"fittrack/internal/apperr"
	"fittrack/internal/gym"

	"github.com/jmoiron/sqlx"
)

type memRepo struct {
	mu          sync.Mutex
	plans       map[int]*Plan
	memberships map[int]*Membership
	payments    []Payment
	nextID      int

	// beforeExpire runs inside MarkExpired to let a test change the row first.
	beforeExpire func(m *Membership)
}

func newMemRepo() *memRepo {
	return &memRepo{plans: map[int]*Plan{}, memberships: map[int]*Membership{}}
}

func (r *memRepo) id() int {
	r.nextID++
	return r.nextID
}

func (r *memRepo) addPlan(p Plan) int {
	p.ID = r.id()
	r.plans[p.ID] = &p
	return p.ID
}

func (r *memRepo) activeCount(userID, gymID int) int {
	n := 0
	for _, m := range r.memberships {
		if m.Status == StatusActive && m.UserID == userID && m.GymID == gymID {
			n++
		}
	}
	return n
}

func (r *memRepo) addMembership(m Membership) int {
	m.ID = r.id()
	r.memberships[m.ID] = &m
	return m.ID
}

func (r *memRepo) joined(m *Membership) ActiveMembership {
	out := ActiveMembership{Membership: *m}
	if p, ok := r.plans[m.PlanID]; ok {
		out.PlanName = p.Name
		out.MaxBookingsPerWeek = p.MaxBookingsPerWeek
	}
	return out
}

func (r *memRepo) ListForUpdate(_ context.Context, _ sqlx.QueryerContext, userID, gymID int) ([]ActiveMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ActiveMembership
	for _, m := range r.memberships {
		if m.UserID == userID && m.GymID == gymID {
			out = append(out, r.joined(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ResetWeeklyCount(_ context.Context, _ sqlx.ExecerContext, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.memberships[id]
	m.BookingsUsedThisWeek = 0
	m.LastBookingCountReset = at
	return nil
}

func (r *memRepo) IncrementWeeklyCount(_ context.Context, _ sqlx.ExecerContext, id int, limit *int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.memberships[id]
	if limit != nil && m.BookingsUsedThisWeek >= *limit {
		return false, nil
	}
	m.BookingsUsedThisWeek++
	return true, nil
}

func (r *memRepo) CreatePlan(_ context.Context, p *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	p.IsActive = true
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *memRepo) GetPlan(_ context.Context, _ sqlx.QueryerContext, id int) (*Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ListActivePlans(_ context.Context, gymID int) ([]Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Plan{}
	for _, p := range r.plans {
		if p.GymID == gymID && p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memRepo) DeactivatePlan(_ context.Context, _ sqlx.ExecerContext, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return ErrRecordNotFound
	}
	p.IsActive = false
	return nil
}

func (r *memRepo) CreateMembership(_ context.Context, _ sqlx.QueryerContext, m *Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.memberships {
		if m.Status == StatusActive && existing.Status == StatusActive &&
			existing.UserID == m.UserID && existing.GymID == m.GymID {
			return ErrActiveExists
		}
	}
	m.ID = r.id()
	cp := *m
	r.memberships[m.ID] = &cp
	return nil
}

func (r *memRepo) CreatePayment(_ context.Context, _ sqlx.QueryerContext, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	r.payments = append(r.payments, *p)
	return nil
}

func (r *memRepo) GetForUpdate(_ context.Context, _ sqlx.QueryerContext, id int) (*Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memRepo) Cancel(_ context.Context, _ sqlx.ExecerContext, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.memberships[id]
	m.Status = StatusCancelled
	m.EndDate = at
	m.AutoRenew = false
	return nil
}

func (r *memRepo) ListByUser(_ context.Context, userID int) ([]ActiveMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []ActiveMembership{}
	for _, m := range r.memberships {
		if m.UserID == userID {
			out = append(out, r.joined(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) ListLapsed(_ context.Context, now time.Time, limit int) ([]Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Membership
	for _, m := range r.memberships {
		if m.Status == StatusActive && m.EndDate.Before(now) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) MarkExpired(_ context.Context, _ sqlx.ExecerContext, id int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.memberships[id]
	if r.beforeExpire != nil {
		r.beforeExpire(m)
	}
	if m.Status != StatusActive || !m.EndDate.Before(now) {
		return false, nil
	}
	m.Status = StatusExpired
	return true, nil
}

// directTx runs fn without isolation; the membership fakes never fail midway.
type directTx struct{}

func (directTx) InTx(_ context.Context, fn func(q sqlx.ExtContext) error) error {
	return fn(nil)
}

type fakeWallet struct {
	balances map[int]int64
	charges  []string
}

func (w *fakeWallet) Charge(_ context.Context, _ sqlx.ExtContext, userID int, amount int64, txType string) error {
	if w.balances[userID]+amount < 0 {
		return apperr.New(apperr.KindPaymentRequired, "insufficient_balance", "insufficient wallet balance")
	}
	w.balances[userID] += amount
	w.charges = append(w.charges, txType)
	return nil
}

type fakeGyms map[int]*gym.Gym

func (g fakeGyms) GetGym(_ context.Context, id int) (*gym.Gym, error) {
	if v, ok := g[id]; ok {
		return v, nil
	}
	return nil, gym.ErrGymNotFound
}
