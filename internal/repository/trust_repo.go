package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

type TrustLogRepo struct {
	pool *pgxpool.Pool
}

func NewTrustLogRepo(pool *pgxpool.Pool) *TrustLogRepo {
	return &TrustLogRepo{pool: pool}
}

// CreateTx appends an audit row inside the same transaction as the score
// mutation it records.
func (r *TrustLogRepo) CreateTx(ctx context.Context, tx pgx.Tx, l *models.TrustScoreLog) error {
	return tx.QueryRow(ctx, `
		INSERT INTO trust_score_logs (id, user_id, old_score, new_score, change, reason, admin_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, l.ID, l.UserID, l.OldScore, l.NewScore, l.Change, l.Reason, l.AdminID).Scan(&l.CreatedAt)
}

func (r *TrustLogRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.TrustScoreLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, old_score, new_score, change, reason, admin_id, created_at
		FROM trust_score_logs WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TrustScoreLog
	for rows.Next() {
		var l models.TrustScoreLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.OldScore, &l.NewScore, &l.Change, &l.Reason, &l.AdminID, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// ---

type BanRepo struct {
	pool *pgxpool.Pool
}

func NewBanRepo(pool *pgxpool.Pool) *BanRepo {
	return &BanRepo{pool: pool}
}

func (r *BanRepo) CreateTx(ctx context.Context, tx pgx.Tx, b *models.BanRecord) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ban_records (id, user_id, ban_count, reason, unlock_cost, paid)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, b.ID, b.UserID, b.BanCount, b.Reason, b.UnlockCost, b.Paid).Scan(&b.CreatedAt)
}

// LatestActiveTx returns the unresolved ban record (unlocked_at IS NULL),
// row-locked. pgx.ErrNoRows when the user has no active ban.
func (r *BanRepo) LatestActiveTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.BanRecord, error) {
	var b models.BanRecord
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, ban_count, reason, unlock_cost, paid, unlocked_at, created_at
		FROM ban_records WHERE user_id = $1 AND unlocked_at IS NULL
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE
	`, userID).Scan(&b.ID, &b.UserID, &b.BanCount, &b.Reason, &b.UnlockCost, &b.Paid, &b.UnlockedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// MarkPaidTx settles the unlock fee exactly once.
func (r *BanRepo) MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE ban_records SET paid = TRUE, unlocked_at = now()
		WHERE id = $1 AND unlocked_at IS NULL
	`, id)
	return err
}

func (r *BanRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.BanRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, ban_count, reason, unlock_cost, paid, unlocked_at, created_at
		FROM ban_records WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.BanRecord
	for rows.Next() {
		var b models.BanRecord
		if err := rows.Scan(&b.ID, &b.UserID, &b.BanCount, &b.Reason, &b.UnlockCost, &b.Paid, &b.UnlockedAt, &b.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}
