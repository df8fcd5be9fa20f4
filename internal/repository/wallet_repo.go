package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) Create(ctx context.Context, t *models.WalletTransaction) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO wallet_transactions (id, user_id, amount, type, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, t.ID, t.UserID, t.Amount, t.Type, t.Meta).Scan(&t.CreatedAt)
}

// CreateTx appends a ledger row inside the given transaction.
func (r *WalletRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (id, user_id, amount, type, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, t.ID, t.UserID, t.Amount, t.Type, t.Meta).Scan(&t.CreatedAt)
}

// Balance sums all signed amounts for the user.
func (r *WalletRepo) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE user_id = $1
	`, userID).Scan(&sum)
	return sum, err
}

// SumByType sums amounts of a single transaction type for the user.
func (r *WalletRepo) SumByType(ctx context.Context, userID uuid.UUID, txType string) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE user_id = $1 AND type = $2
	`, userID, txType).Scan(&sum)
	return sum, err
}

func (r *WalletRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, type, meta, created_at
		FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Meta, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
