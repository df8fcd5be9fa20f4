package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

// ErrOverdrawnLock is returned when a drain would push withdrawn past the
// lock amount. The conditional UPDATE makes this impossible to commit.
var ErrOverdrawnLock = errors.New("lock withdrawn would exceed amount")

const lockColumns = `id, user_id, amount, lock_days, max_withdraw, withdrawn, unlocked_at, created_at`

type EarningsLockRepo struct {
	pool *pgxpool.Pool
}

func NewEarningsLockRepo(pool *pgxpool.Pool) *EarningsLockRepo {
	return &EarningsLockRepo{pool: pool}
}

func (r *EarningsLockRepo) CreateTx(ctx context.Context, tx pgx.Tx, l *models.EarningsLock) error {
	return tx.QueryRow(ctx, `
		INSERT INTO earnings_locks (id, user_id, amount, lock_days, max_withdraw, withdrawn, unlocked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, l.ID, l.UserID, l.Amount, l.LockDays, l.MaxWithdraw, l.Withdrawn, l.UnlockedAt).Scan(&l.CreatedAt)
}

func scanLocks(rows pgx.Rows) ([]*models.EarningsLock, error) {
	defer rows.Close()
	var list []*models.EarningsLock
	for rows.Next() {
		var l models.EarningsLock
		if err := rows.Scan(&l.ID, &l.UserID, &l.Amount, &l.LockDays, &l.MaxWithdraw, &l.Withdrawn, &l.UnlockedAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// ListActive returns locks still holding funds at the given instant,
// soonest-unlocking first.
func (r *EarningsLockRepo) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.EarningsLock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+lockColumns+` FROM earnings_locks
		WHERE user_id = $1 AND unlocked_at > $2
		ORDER BY unlocked_at ASC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	return scanLocks(rows)
}

// ListActiveForUpdate is ListActive with the rows locked, for draining
// inside a withdrawal transaction.
func (r *EarningsLockRepo) ListActiveForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, now time.Time) ([]*models.EarningsLock, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+lockColumns+` FROM earnings_locks
		WHERE user_id = $1 AND unlocked_at > $2
		ORDER BY unlocked_at ASC
		FOR UPDATE
	`, userID, now)
	if err != nil {
		return nil, err
	}
	return scanLocks(rows)
}

// AddWithdrawnTx increments a lock's withdrawn counter, guarded so it can
// never exceed the lock amount.
func (r *EarningsLockRepo) AddWithdrawnTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE earnings_locks SET withdrawn = withdrawn + $2
		WHERE id = $1 AND withdrawn + $2 <= amount
	`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverdrawnLock
	}
	return nil
}
