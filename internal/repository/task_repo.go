package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boosthive/backend/internal/models"
)

const taskColumns = `id, user_id, campaign_id, target_page_name, reward_amount, status, started_at, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.UserID, &t.CampaignID, &t.TargetPageName, &t.RewardAmount, &t.Status, &t.StartedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, user_id, campaign_id, target_page_name, reward_amount, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, t.ID, t.UserID, t.CampaignID, t.TargetPageName, t.RewardAmount, t.Status, t.StartedAt).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// UpdateStatusTx sets a task's status inside the caller's transaction. The
// verification worker uses it to record the outcome alongside the verdict.
func (r *TaskRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `UPDATE tasks SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// MarkStarted transitions an assigned task to in_progress and stamps
// started_at. Returns ErrStatusConflict when the task is not assigned.
func (r *TaskRepo) MarkStarted(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = $2, started_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+taskColumns+`
	`, id, models.TaskStatusInProgress, models.TaskStatusAssigned)
	t, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return t, nil
}

// MarkAbandoned transitions an assigned or in_progress task to abandoned.
// The conditional update makes the early-exit penalty fire at most once
// per task even under concurrent abandon calls.
func (r *TaskRepo) MarkAbandoned(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING `+taskColumns+`
	`, id, models.TaskStatusAbandoned, models.TaskStatusAssigned, models.TaskStatusInProgress)
	t, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return t, nil
}

func (r *TaskRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.CampaignID, &t.TargetPageName, &t.RewardAmount, &t.Status, &t.StartedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
