package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

const userColumns = `id, email, name, password_hash, is_admin, trust_score, is_banned, ban_count, ban_reason, ban_unlock_cost, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsAdmin, &u.TrustScore, &u.IsBanned, &u.BanCount, &u.BanReason, &u.BanUnlockCost, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, is_admin, trust_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.IsAdmin, u.TrustScore).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByIDForUpdate locks the user row. Every per-user financial mutation
// (score change, ban check, lock drain) starts by taking this lock so
// concurrent requests for the same user serialize.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// SetTrustScore updates the score inside the caller's transaction. Call
// after GetByIDForUpdate in the same tx.
func (r *UserRepo) SetTrustScore(ctx context.Context, tx pgx.Tx, id uuid.UUID, score float64) error {
	_, err := tx.Exec(ctx, `UPDATE users SET trust_score = $2, updated_at = now() WHERE id = $1`, id, score)
	return err
}

// SetBanState flips the denormalized ban fields on the user row.
func (r *UserRepo) SetBanState(ctx context.Context, tx pgx.Tx, id uuid.UUID, banned bool, banCount int, reason *string, unlockCost *int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET is_banned = $2, ban_count = $3, ban_reason = $4, ban_unlock_cost = $5, updated_at = now()
		WHERE id = $1
	`, id, banned, banCount, reason, unlockCost)
	return err
}
