package membership

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

const (
	PaymentCompleted = "completed"

	txMembershipPayment = "membership_payment"
	txMembershipRenewal = "membership_renewal"
)

// Plan is what a gym sells. A nil MaxBookingsPerWeek means unlimited.
type Plan struct {
	ID                 int       `db:"id" json:"id"`
	GymID              int       `db:"gym_id" json:"gym_id"`
	Name               string    `db:"name" json:"name"`
	DurationDays       int       `db:"duration_days" json:"duration_days"`
	PriceCents         int64     `db:"price_cents" json:"price_cents"`
	MaxBookingsPerWeek *int      `db:"max_bookings_per_week" json:"max_bookings_per_week"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type Membership struct {
	ID                    int       `db:"id" json:"id"`
	UserID                int       `db:"user_id" json:"user_id"`
	GymID                 int       `db:"gym_id" json:"gym_id"`
	PlanID                int       `db:"plan_id" json:"plan_id"`
	StartDate             time.Time `db:"start_date" json:"start_date"`
	EndDate               time.Time `db:"end_date" json:"end_date"`
	Status                Status    `db:"status" json:"status"`
	AutoRenew             bool      `db:"auto_renew" json:"auto_renew"`
	BookingsUsedThisWeek  int       `db:"bookings_used_this_week" json:"bookings_used_this_week"`
	LastBookingCountReset time.Time `db:"last_booking_count_reset" json:"last_booking_count_reset"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// ActiveMembership is a membership joined with its plan's quota.
type ActiveMembership struct {
	Membership
	PlanName           string `db:"plan_name" json:"plan_name"`
	MaxBookingsPerWeek *int   `db:"max_bookings_per_week" json:"max_bookings_per_week"`
}

func (m *ActiveMembership) QuotaExhausted() bool {
	return m.MaxBookingsPerWeek != nil && m.BookingsUsedThisWeek >= *m.MaxBookingsPerWeek
}

// View is a membership as shown to its holder, with status derived at read time.
type View struct {
	ActiveMembership
	EffectiveStatus Status `json:"effective_status"`
}

type Payment struct {
	ID           int       `db:"id" json:"id"`
	MembershipID int       `db:"membership_id" json:"membership_id"`
	UserID       int       `db:"user_id" json:"user_id"`
	AmountCents  int64     `db:"amount_cents" json:"amount_cents"`
	Status       string    `db:"status" json:"status"`
	Reference    string    `db:"reference" json:"reference"`
	PaidAt       time.Time `db:"paid_at" json:"paid_at"`
}

type CreatePlanRequest struct {
	Name               string `json:"name" validate:"required,max=255" example:"Monthly 3x"`
	DurationDays       int    `json:"duration_days" validate:"required,gt=0,lte=3650" example:"30"`
	PriceCents         int64  `json:"price_cents" validate:"gte=0" example:"4900"`
	MaxBookingsPerWeek *int   `json:"max_bookings_per_week" validate:"omitempty,gt=0" example:"3"`
}

type SubscribeRequest struct {
	AutoRenew bool `json:"auto_renew"`
}

type SubscribeResponse struct {
	Membership *Membership `json:"membership"`
	Payment    *Payment    `json:"payment"`
}
