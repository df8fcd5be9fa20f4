// Package ledger owns the append-only wallet transaction log. A user's
// balance is the sum of signed amounts; rows are never mutated or deleted.
package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/models"
)

// ErrInvalidAmount is returned for zero-amount entries or entries whose
// sign contradicts their type.
var ErrInvalidAmount = errors.New("invalid ledger amount")

// Store is the persistence surface the ledger needs.
type Store interface {
	Create(ctx context.Context, t *models.WalletTransaction) error
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	SumByType(ctx context.Context, userID uuid.UUID, txType string) (int64, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error)
}

type Service interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error)
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error)
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	TotalRewards(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) Credit(ctx context.Context, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t := &models.WalletTransaction{ID: uuid.New(), UserID: userID, Amount: amount, Type: txType, Meta: meta}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t := &models.WalletTransaction{ID: uuid.New(), UserID: userID, Amount: amount, Type: txType, Meta: meta}
	if err := s.store.CreateTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DebitTx appends a negative entry. amount is passed positive; the row is
// stored as -amount.
func (s *service) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t := &models.WalletTransaction{ID: uuid.New(), UserID: userID, Amount: -amount, Type: txType, Meta: meta}
	if err := s.store.CreateTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// TotalRewards is the all-time sum of reward entries; it is never
// decremented by withdrawals.
func (s *service) TotalRewards(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.SumByType(ctx, userID, models.WalletTxReward)
}

func (s *service) History(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	return s.store.ListByUserID(ctx, userID)
}
