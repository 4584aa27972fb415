package wallet

import (
	"context"
	"errors"

	"fittrack/internal/apperr"
	"fittrack/internal/db"
	"fittrack/internal/logger"
	"fittrack/internal/metrics"

	"github.com/jmoiron/sqlx"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var (
	ErrInsufficientBalance = apperr.New(apperr.KindPaymentRequired, "insufficient_balance", "insufficient wallet balance")
	ErrInvalidAmount       = apperr.Validation("invalid_amount", "amount must be positive")
)

type Service interface {
	Get(ctx context.Context, userID int) (*Wallet, error)
	TopUp(ctx context.Context, userID int, amountCents int64) (*Wallet, error)
	Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error)
	// Charge applies a signed amount on the caller's transaction. A result
	// below zero fails with ErrInsufficientBalance and writes nothing.
	Charge(ctx context.Context, q sqlx.ExtContext, userID int, amountCents int64, txType string) error
}

type service struct {
	repo Repository
	tx   db.TxRunner
}

func NewService(repo Repository, tx db.TxRunner) Service {
	return &service{repo: repo, tx: tx}
}

func (s *service) Get(ctx context.Context, userID int) (*Wallet, error) {
	w, err := s.repo.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, apperr.Persistence("load wallet", err)
	}
	return w, nil
}

func (s *service) TopUp(ctx context.Context, userID int, amountCents int64) (*Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	err := s.tx.InTx(ctx, func(q sqlx.ExtContext) error {
		return s.Charge(ctx, q, userID, amountCents, TxTopUp)
	})
	if err != nil {
		return nil, apperr.Persistence("top up wallet", err)
	}

	metrics.RecordWalletTopUp()
	logger.Info("wallet topped up", "user_id", userID, "amount_cents", amountCents)
	return s.Get(ctx, userID)
}

func (s *service) Charge(ctx context.Context, q sqlx.ExtContext, userID int, amountCents int64, txType string) error {
	w, err := s.repo.GetForUpdate(ctx, q, userID)
	if errors.Is(err, ErrRecordNotFound) {
		if _, err = s.repo.GetOrCreate(ctx, q, userID); err != nil {
			return apperr.Persistence("create wallet", err)
		}
		w, err = s.repo.GetForUpdate(ctx, q, userID)
	}
	if err != nil {
		return apperr.Persistence("lock wallet", err)
	}

	balance := w.BalanceCents + amountCents
	if balance < 0 {
		return ErrInsufficientBalance
	}

	if err := s.repo.SetBalance(ctx, q, w.ID, balance); err != nil {
		return apperr.Persistence("update wallet balance", err)
	}
	t := &Transaction{WalletID: w.ID, AmountCents: amountCents, Type: txType, BalanceAfter: balance}
	if err := s.repo.AddTransaction(ctx, q, t); err != nil {
		return apperr.Persistence("record wallet transaction", err)
	}
	return nil
}

func (s *service) Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := s.repo.GetTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Persistence("list wallet transactions", err)
	}
	return txs, nil
}
