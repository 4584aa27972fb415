package user

import (
	"context"

	"fittrack/internal/email"
)

// Recipients resolves booking-event recipients from the users table.
type Recipients struct {
	repo Repository
}

func NewRecipients(repo Repository) *Recipients {
	return &Recipients{repo: repo}
}

func (r *Recipients) Recipient(ctx context.Context, userID int) (email.Recipient, error) {
	u, err := r.repo.FindByID(ctx, userID)
	if err != nil {
		return email.Recipient{}, err
	}
	return email.Recipient{Email: u.Email, Name: u.Name}, nil
}
