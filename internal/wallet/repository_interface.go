package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// GetOrCreate returns the user's wallet, creating an empty one on first use.
	GetOrCreate(ctx context.Context, q sqlx.QueryerContext, userID int) (*Wallet, error)
	// GetForUpdate locks the user's wallet row; ErrRecordNotFound when absent.
	GetForUpdate(ctx context.Context, q sqlx.QueryerContext, userID int) (*Wallet, error)
	SetBalance(ctx context.Context, q sqlx.ExecerContext, walletID int, balanceCents int64) error
	AddTransaction(ctx context.Context, q sqlx.ExecerContext, t *Transaction) error
	GetTransactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error)
}
