package membership

import (
	"context"
	"errors"
	"strings"

	"fittrack/internal/apperr"
	"fittrack/internal/auth"
	"fittrack/internal/db"
	"fittrack/internal/gym"
	"fittrack/internal/logger"
	"fittrack/internal/metrics"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const sweepBatchSize = 200

var (
	ErrPlanNotFound        = apperr.NotFound("plan_not_found", "membership plan not found")
	ErrMembershipNotFound  = apperr.NotFound("membership_not_found", "membership not found")
	ErrAlreadyActive       = apperr.InvalidState("membership_already_active", "an active membership for this gym already exists")
	ErrMembershipCancelled = apperr.InvalidState("membership_already_cancelled", "membership is already cancelled")
	ErrMembershipExpired   = apperr.InvalidState("membership_expired", "membership has expired")
	ErrNotGymOwner         = apperr.Forbidden("not_gym_owner", "only the gym owner can manage its plans")
)

// Wallet debits the member inside the caller's transaction. An insufficient
// balance is reported as a payment_required error.
type Wallet interface {
	Charge(ctx context.Context, q sqlx.ExtContext, userID int, amountCents int64, txType string) error
}

type GymLookup interface {
	GetGym(ctx context.Context, id int) (*gym.Gym, error)
}

type Service interface {
	ListPlans(ctx context.Context, gymID int) ([]Plan, error)
	CreatePlan(ctx context.Context, caller auth.Caller, gymID int, req CreatePlanRequest) (*Plan, error)
	DeactivatePlan(ctx context.Context, caller auth.Caller, planID int) error

	Subscribe(ctx context.Context, caller auth.Caller, planID int, req SubscribeRequest) (*SubscribeResponse, error)
	CancelMembership(ctx context.Context, caller auth.Caller, membershipID int) (*Membership, error)
	ResolveActive(ctx context.Context, caller auth.Caller, gymID int) (*ActiveMembership, error)
	ListMine(ctx context.Context, caller auth.Caller) ([]View, error)

	// ExpireLapsed flips lapsed active memberships to expired and renews the
	// ones with auto-renew set.
	ExpireLapsed(ctx context.Context) (expired, renewed int, err error)
}

type service struct {
	repo      Repository
	lifecycle *Lifecycle
	tx        db.TxRunner
	wallet    Wallet
	gyms      GymLookup
}

func NewService(repo Repository, lifecycle *Lifecycle, tx db.TxRunner, wallet Wallet, gyms GymLookup) Service {
	return &service{
		repo:      repo,
		lifecycle: lifecycle,
		tx:        tx,
		wallet:    wallet,
		gyms:      gyms,
	}
}

func (s *service) ListPlans(ctx context.Context, gymID int) ([]Plan, error) {
	if _, err := s.gyms.GetGym(ctx, gymID); err != nil {
		return nil, err
	}
	plans, err := s.repo.ListActivePlans(ctx, gymID)
	if err != nil {
		return nil, apperr.Persistence("list plans", err)
	}
	return plans, nil
}

func (s *service) CreatePlan(ctx context.Context, caller auth.Caller, gymID int, req CreatePlanRequest) (*Plan, error) {
	g, err := s.gyms.GetGym(ctx, gymID)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(g.OwnerID) {
		return nil, ErrNotGymOwner
	}

	p := &Plan{
		GymID:              gymID,
		Name:               strings.TrimSpace(req.Name),
		DurationDays:       req.DurationDays,
		PriceCents:         req.PriceCents,
		MaxBookingsPerWeek: req.MaxBookingsPerWeek,
	}
	if err := s.repo.CreatePlan(ctx, p); err != nil {
		return nil, apperr.Persistence("create plan", err)
	}
	return p, nil
}

func (s *service) DeactivatePlan(ctx context.Context, caller auth.Caller, planID int) error {
	var gymID int

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		p, err := s.repo.GetPlan(ctx, q, planID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return apperr.Persistence("get plan", err)
		}

		g, err := s.gyms.GetGym(ctx, p.GymID)
		if err != nil {
			return err
		}
		if !caller.CanManage(g.OwnerID) {
			return ErrNotGymOwner
		}

		gymID = p.GymID
		return apperr.Persistence("deactivate plan", s.repo.DeactivatePlan(ctx, q, planID))
	})
	if err != nil {
		return apperr.Persistence("deactivate plan", err)
	}

	logger.Info("plan deactivated", "plan_id", planID, "gym_id", gymID)
	return nil
}

func (s *service) Subscribe(ctx context.Context, caller auth.Caller, planID int, req SubscribeRequest) (*SubscribeResponse, error) {
	var resp *SubscribeResponse

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		p, err := s.repo.GetPlan(ctx, q, planID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return apperr.Persistence("get plan", err)
		}
		if !p.IsActive {
			return ErrPlanNotFound
		}

		_, err = s.lifecycle.FindActive(ctx, q, caller.UserID, p.GymID)
		switch {
		case err == nil:
			return ErrAlreadyActive
		case !errors.Is(err, ErrNoActiveMembership):
			return err
		}
		if err := s.expireStale(ctx, q, caller.UserID, p.GymID); err != nil {
			return err
		}

		m, pay, err := s.purchase(ctx, q, caller.UserID, p, req.AutoRenew, txMembershipPayment)
		if err != nil {
			return err
		}
		resp = &SubscribeResponse{Membership: m, Payment: pay}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("subscribe", err)
	}

	metrics.RecordMembershipCreated("new")
	logger.Info("membership created",
		"membership_id", resp.Membership.ID,
		"user_id", caller.UserID,
		"plan_id", planID,
		"payment_reference", resp.Payment.Reference,
	)
	return resp, nil
}

// expireStale flips lapsed memberships still stored as active, so the new
// membership is the only active row for the user at the gym.
func (s *service) expireStale(ctx context.Context, q sqlx.ExtContext, userID, gymID int) error {
	rows, err := s.repo.ListForUpdate(ctx, q, userID, gymID)
	if err != nil {
		return apperr.Persistence("load memberships", err)
	}

	now := s.lifecycle.Now()
	for _, m := range rows {
		if m.Status != StatusActive || EffectiveStatus(m.Status, m.EndDate, now) != StatusExpired {
			continue
		}
		ok, err := s.repo.MarkExpired(ctx, q, m.ID, now)
		if err != nil {
			return apperr.Persistence("expire membership", err)
		}
		if ok {
			metrics.RecordMembershipExpired()
			logger.Info("membership expired on resubscribe", "membership_id", m.ID, "user_id", userID)
		}
	}
	return nil
}

// purchase charges the wallet and writes the membership with its payment.
func (s *service) purchase(ctx context.Context, q sqlx.ExtContext, userID int, p *Plan, autoRenew bool, txType string) (*Membership, *Payment, error) {
	if p.PriceCents > 0 {
		if err := s.wallet.Charge(ctx, q, userID, -p.PriceCents, txType); err != nil {
			return nil, nil, err
		}
	}

	now := s.lifecycle.Now()
	m := &Membership{
		UserID:                userID,
		GymID:                 p.GymID,
		PlanID:                p.ID,
		StartDate:             now,
		EndDate:               now.AddDate(0, 0, p.DurationDays),
		Status:                StatusActive,
		AutoRenew:             autoRenew,
		LastBookingCountReset: now,
	}
	if err := s.repo.CreateMembership(ctx, q, m); err != nil {
		if errors.Is(err, ErrActiveExists) {
			return nil, nil, ErrAlreadyActive
		}
		return nil, nil, apperr.Persistence("create membership", err)
	}

	pay := &Payment{
		MembershipID: m.ID,
		UserID:       userID,
		AmountCents:  p.PriceCents,
		Status:       PaymentCompleted,
		Reference:    uuid.NewString(),
		PaidAt:       now,
	}
	if err := s.repo.CreatePayment(ctx, q, pay); err != nil {
		return nil, nil, apperr.Persistence("create payment", err)
	}
	return m, pay, nil
}

func (s *service) CancelMembership(ctx context.Context, caller auth.Caller, membershipID int) (*Membership, error) {
	var out *Membership

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		m, err := s.repo.GetForUpdate(ctx, q, membershipID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return ErrMembershipNotFound
			}
			return apperr.Persistence("get membership", err)
		}
		if m.UserID != caller.UserID && !caller.IsAdmin() {
			return ErrMembershipNotFound
		}

		now := s.lifecycle.Now()
		switch EffectiveStatus(m.Status, m.EndDate, now) {
		case StatusCancelled:
			return ErrMembershipCancelled
		case StatusExpired:
			return ErrMembershipExpired
		}

		if err := s.repo.Cancel(ctx, q, m.ID, now); err != nil {
			return apperr.Persistence("cancel membership", err)
		}
		m.Status = StatusCancelled
		m.EndDate = now
		m.AutoRenew = false
		out = m
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("cancel membership", err)
	}

	logger.Info("membership cancelled", "membership_id", membershipID, "user_id", caller.UserID)
	return out, nil
}

func (s *service) ResolveActive(ctx context.Context, caller auth.Caller, gymID int) (*ActiveMembership, error) {
	var out *ActiveMembership
	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		m, err := s.lifecycle.Resolve(ctx, q, caller.UserID, gymID)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("resolve membership", err)
	}
	return out, nil
}

func (s *service) ListMine(ctx context.Context, caller auth.Caller) ([]View, error) {
	rows, err := s.repo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.Persistence("list memberships", err)
	}

	now := s.lifecycle.Now()
	out := make([]View, 0, len(rows))
	for _, m := range rows {
		v := View{ActiveMembership: m, EffectiveStatus: EffectiveStatus(m.Status, m.EndDate, now)}
		// The counter of a membership from an earlier week is stale until its next use.
		if v.EffectiveStatus == StatusActive && NeedsQuotaReset(m.LastBookingCountReset, now, s.lifecycle.Location()) {
			v.BookingsUsedThisWeek = 0
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *service) ExpireLapsed(ctx context.Context) (int, int, error) {
	lapsed, err := s.repo.ListLapsed(ctx, s.lifecycle.Now(), sweepBatchSize)
	if err != nil {
		return 0, 0, apperr.Persistence("list lapsed memberships", err)
	}

	var expired, renewed int
	for _, m := range lapsed {
		if ctx.Err() != nil {
			return expired, renewed, ctx.Err()
		}

		didExpire, didRenew, err := s.expireOne(ctx, m.ID)
		if err != nil {
			logger.Error("membership expiry failed", "membership_id", m.ID, "error", err)
			continue
		}
		if !didExpire {
			continue
		}
		expired++
		metrics.RecordMembershipExpired()
		if didRenew {
			renewed++
		}
	}
	return expired, renewed, nil
}

// expireOne reports whether this call flipped the membership to expired and
// whether it was renewed.
func (s *service) expireOne(ctx context.Context, membershipID int) (bool, bool, error) {
	var expired, renewed bool

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		m, err := s.repo.GetForUpdate(ctx, q, membershipID)
		if err != nil {
			return err
		}

		now := s.lifecycle.Now()
		ok, err := s.repo.MarkExpired(ctx, q, m.ID, now)
		if err != nil || !ok {
			return err
		}
		expired = true
		if !m.AutoRenew {
			return nil
		}

		p, err := s.repo.GetPlan(ctx, q, m.PlanID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			logger.Info("auto-renew skipped, plan inactive", "membership_id", m.ID, "plan_id", p.ID)
			return nil
		}

		current, err := s.lifecycle.FindActive(ctx, q, m.UserID, m.GymID)
		switch {
		case err == nil:
			logger.Info("auto-renew skipped, membership already active",
				"membership_id", m.ID, "active_id", current.ID, "user_id", m.UserID)
			return nil
		case !errors.Is(err, ErrNoActiveMembership):
			return err
		}

		next, _, err := s.purchase(ctx, q, m.UserID, p, true, txMembershipRenewal)
		if errors.Is(err, apperr.ErrPaymentRequired) {
			logger.Warn("auto-renew charge declined", "membership_id", m.ID, "user_id", m.UserID)
			return nil
		}
		if err != nil {
			return err
		}

		renewed = true
		logger.Info("membership renewed", "previous_id", m.ID, "membership_id", next.ID, "user_id", m.UserID)
		return nil
	})
	if err != nil {
		return false, false, err
	}
	if renewed {
		metrics.RecordMembershipCreated("renewal")
	}
	return expired, renewed, nil
}
