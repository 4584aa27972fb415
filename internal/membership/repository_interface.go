package membership

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	QuotaStore

	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, q sqlx.QueryerContext, id int) (*Plan, error)
	ListActivePlans(ctx context.Context, gymID int) ([]Plan, error)
	DeactivatePlan(ctx context.Context, q sqlx.ExecerContext, id int) error

	CreateMembership(ctx context.Context, q sqlx.QueryerContext, m *Membership) error
	CreatePayment(ctx context.Context, q sqlx.QueryerContext, p *Payment) error
	GetForUpdate(ctx context.Context, q sqlx.QueryerContext, id int) (*Membership, error)
	Cancel(ctx context.Context, q sqlx.ExecerContext, id int, at time.Time) error
	ListByUser(ctx context.Context, userID int) ([]ActiveMembership, error)

	// ListLapsed returns stored-active memberships whose end date is before now.
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]Membership, error)
	MarkExpired(ctx context.Context, q sqlx.ExecerContext, id int, now time.Time) (bool, error)
}
