package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

const proofColumns = `id, user_id, task_id, target_page_name, followers_before, followers_after, task_started_at, submitted_at, image_path, status, verified, ocr_matches, count_increased, time_penalty, details, created_at`

type ProofRepo struct {
	pool *pgxpool.Pool
}

func NewProofRepo(pool *pgxpool.Pool) *ProofRepo {
	return &ProofRepo{pool: pool}
}

func (r *ProofRepo) Create(ctx context.Context, p *models.ProofSubmission) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO proof_submissions (id, user_id, task_id, target_page_name, followers_before, followers_after, task_started_at, submitted_at, image_path, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, p.ID, p.UserID, p.TaskID, p.TargetPageName, p.FollowersBefore, p.FollowersAfter, p.TaskStartedAt, p.SubmittedAt, p.ImagePath, p.Status).Scan(&p.CreatedAt)
}

func (r *ProofRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ProofSubmission, error) {
	var p models.ProofSubmission
	err := r.pool.QueryRow(ctx, `SELECT `+proofColumns+` FROM proof_submissions WHERE id = $1`, id).Scan(
		&p.ID, &p.UserID, &p.TaskID, &p.TargetPageName, &p.FollowersBefore, &p.FollowersAfter,
		&p.TaskStartedAt, &p.SubmittedAt, &p.ImagePath, &p.Status, &p.Verified,
		&p.OCRMatches, &p.CountIncreased, &p.TimePenalty, &p.Details, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetVerdictTx stores the verifier outcome inside the caller's transaction,
// guarded so only a pending submission transitions — a retried verification
// job cannot double-apply. The image path is cleared at the same time
// because the file is deleted after recognition. Returns whether the row
// transitioned.
func (r *ProofRepo) SetVerdictTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, verified, ocrMatches, countIncreased, timePenalty bool, details string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE proof_submissions
		SET status = $2, verified = $3, ocr_matches = $4, count_increased = $5, time_penalty = $6, details = $7, image_path = ''
		WHERE id = $1 AND status = $8
	`, id, status, verified, ocrMatches, countIncreased, timePenalty, details, models.ProofStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
