package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

// ErrStatusConflict is returned when a status transition is attempted from
// a state other than the one required (terminal states never reopen).
var ErrStatusConflict = errors.New("withdrawal is not in the required status")

const withdrawColumns = `id, user_id, amount, method, status, reason, created_at, updated_at`

type WithdrawRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawRepo(pool *pgxpool.Pool) *WithdrawRepo {
	return &WithdrawRepo{pool: pool}
}

func scanWithdraw(row pgx.Row) (*models.WithdrawRequest, error) {
	var w models.WithdrawRequest
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &w.Status, &w.Reason, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawRepo) CreateTx(ctx context.Context, tx pgx.Tx, w *models.WithdrawRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdraw_requests (id, user_id, amount, method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, w.ID, w.UserID, w.Amount, w.Method, w.Status).Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *WithdrawRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawRequest, error) {
	return scanWithdraw(r.pool.QueryRow(ctx, `SELECT `+withdrawColumns+` FROM withdraw_requests WHERE id = $1`, id))
}

// GetByIDForUpdate locks the request row for a status transition.
func (r *WithdrawRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawRequest, error) {
	return scanWithdraw(tx.QueryRow(ctx, `SELECT `+withdrawColumns+` FROM withdraw_requests WHERE id = $1 FOR UPDATE`, id))
}

// TransitionTx moves a request from pending to a terminal status. The WHERE
// guard enforces single-transition semantics at the store level too.
func (r *WithdrawRepo) TransitionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, toStatus string, reason *string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE withdraw_requests SET status = $2, reason = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, toStatus, reason, models.WithdrawStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *WithdrawRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+withdrawColumns+` FROM withdraw_requests WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WithdrawRequest
	for rows.Next() {
		var w models.WithdrawRequest
		if err := rows.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &w.Status, &w.Reason, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &w)
	}
	return list, rows.Err()
}
