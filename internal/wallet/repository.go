package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrRecordNotFound = errors.New("record not found")

const walletColumns = `id, user_id, balance_cents, currency, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrCreate(ctx context.Context, q sqlx.QueryerContext, userID int) (*Wallet, error) {
	if q == nil {
		q = r.db
	}
	w := &Wallet{}
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := q.QueryRowxContext(ctx, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+walletColumns,
		userID,
	).StructScan(w)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repository) GetForUpdate(ctx context.Context, q sqlx.QueryerContext, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *repository) SetBalance(ctx context.Context, q sqlx.ExecerContext, walletID int, balanceCents int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = $1, updated_at = NOW() WHERE id = $2`,
		balanceCents, walletID,
	)
	return err
}

func (r *repository) AddTransaction(ctx context.Context, q sqlx.ExecerContext, t *Transaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO wallet_transactions (wallet_id, amount_cents, type, balance_after) VALUES ($1, $2, $3, $4)`,
		t.WalletID, t.AmountCents, t.Type, t.BalanceAfter,
	)
	return err
}

func (r *repository) GetTransactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT t.id, t.wallet_id, t.amount_cents, t.type, t.balance_after, t.created_at
		FROM wallet_transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return txs, nil
}
