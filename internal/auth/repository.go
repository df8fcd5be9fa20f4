package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new user with the baseline trust score and returns it.
func (r *Repository) Create(ctx context.Context, email, passwordHash, name string) (*models.User, error) {
	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		TrustScore:   models.TrustScoreBaseline,
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, is_admin, trust_score)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.TrustScore)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail returns the user for login. Returns nil if not found.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, is_admin, trust_score, is_banned, ban_count, ban_reason, ban_unlock_cost, created_at, updated_at
		FROM users WHERE email = $1
	`, email)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsAdmin, &u.TrustScore, &u.IsBanned, &u.BanCount, &u.BanReason, &u.BanUnlockCost, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
