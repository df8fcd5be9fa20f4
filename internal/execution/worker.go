// Package execution runs proof verification off the request path. OCR is
// CPU/IO-bound, so submissions enqueue a river job and the worker applies
// the verdict with a bounded timeout.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/boosthive/backend/internal/models"
	"github.com/boosthive/backend/internal/services"
)

type VerifyProofJobArgs struct {
	ProofID uuid.UUID `json:"proof_id"`
}

func (VerifyProofJobArgs) Kind() string { return "verify_proof" }

// ProofStore is the proof persistence surface for the worker.
type ProofStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProofSubmission, error)
	SetVerdictTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, verified, ocrMatches, countIncreased, timePenalty bool, details string) (bool, error)
}

// TaskStore resolves the task under verification and records its outcome.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// UserStore locks the user row for the reward transaction.
type UserStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
}

// RewardLedger credits the verified task reward.
type RewardLedger interface {
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error)
}

// LockCreator snapshots the current trust tier into a new earnings lock.
type LockCreator interface {
	CreateLock(ctx context.Context, tx pgx.Tx, user *models.User, amount int64, startDate time.Time) (*models.EarningsLock, error)
}

// VerifyProofWorker verifies one proof submission and, on success, credits
// the reward and creates the earnings lock in a single transaction holding
// the user row lock.
type VerifyProofWorker struct {
	river.WorkerDefaults[VerifyProofJobArgs]
	Pool     services.TxBeginner
	Proofs   ProofStore
	Tasks    TaskStore
	Users    UserStore
	Ledger   RewardLedger
	Earnings LockCreator
	Verifier services.ProofVerifier
	Notifier services.Notifier
	// VerifyTimeout bounds a single verification call. Named to avoid
	// shadowing the Timeout method promoted from river.WorkerDefaults.
	VerifyTimeout time.Duration
	Logger        *slog.Logger
	NowFn         func() time.Time
}

func (w *VerifyProofWorker) now() time.Time {
	if w.NowFn != nil {
		return w.NowFn()
	}
	return time.Now()
}

func (w *VerifyProofWorker) Work(ctx context.Context, job *river.Job[VerifyProofJobArgs]) error {
	p, err := w.Proofs.GetByID(ctx, job.Args.ProofID)
	if err != nil {
		return fmt.Errorf("load proof %s: %w", job.Args.ProofID, err)
	}
	if p.Status != models.ProofStatusPending {
		return nil
	}

	vctx, cancel := context.WithTimeout(ctx, w.VerifyTimeout)
	defer cancel()
	res := w.Verifier.Verify(vctx, services.VerifyInput{
		ImagePath:       p.ImagePath,
		TargetPageName:  p.TargetPageName,
		FollowersBefore: p.FollowersBefore,
		FollowersAfter:  p.FollowersAfter,
		TaskStartedAt:   p.TaskStartedAt,
		SubmittedAt:     p.SubmittedAt,
	})

	task, err := w.Tasks.GetByID(ctx, p.TaskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", p.TaskID, err)
	}

	tx, err := w.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	user, err := w.Users.GetByIDForUpdate(ctx, tx, p.UserID)
	if err != nil {
		return err
	}

	// A user banned between submission and verification earns nothing:
	// locks cannot be created for the banned tier.
	if res.Verified && user.IsBanned {
		res.Verified = false
		res.Details = res.Details + "; account banned before verification"
	}

	status := models.ProofStatusRejected
	if res.Verified {
		status = models.ProofStatusVerified
	}
	transitioned, err := w.Proofs.SetVerdictTx(ctx, tx, p.ID, status, res.Verified, res.OCRMatches, res.CountIncreased, res.TimePenalty, res.Details)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	if res.Verified {
		meta, _ := json.Marshal(map[string]string{"task_id": task.ID.String(), "proof_id": p.ID.String()})
		if _, err := w.Ledger.CreditTx(ctx, tx, p.UserID, task.RewardAmount, models.WalletTxReward, meta); err != nil {
			return fmt.Errorf("credit reward: %w", err)
		}
		if _, err := w.Earnings.CreateLock(ctx, tx, user, task.RewardAmount, w.now()); err != nil {
			return fmt.Errorf("create earnings lock: %w", err)
		}
		if err := w.Tasks.UpdateStatusTx(ctx, tx, task.ID, models.TaskStatusCompleted); err != nil {
			return err
		}
	} else {
		if err := w.Tasks.UpdateStatusTx(ctx, tx, task.ID, models.TaskStatusRejected); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if res.Verified {
		w.Notifier.Notify(ctx, p.UserID, "Task approved",
			fmt.Sprintf("Your proof was verified. %d has been credited and will unlock over the coming days.", task.RewardAmount))
	} else {
		w.Notifier.Notify(ctx, p.UserID, "Task rejected",
			fmt.Sprintf("Your proof could not be verified: %s", res.Details))
	}
	w.Logger.Info("proof verified", "proof_id", p.ID, "task_id", task.ID, "verified", res.Verified)
	return nil
}
