package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/models"
)

var (
	// ErrNotBanned is returned by UnlockBannedAccount for users in good standing.
	ErrNotBanned = errors.New("account is not banned")
	// ErrInsufficientPayment is returned when the unlock payment is below the fee.
	ErrInsufficientPayment = errors.New("payment below unlock cost")
	// ErrAccountBanned is returned when a banned user attempts a gated operation.
	ErrAccountBanned = errors.New("account is banned")
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TrustUserRepo is the user persistence surface the trust engine needs.
// All writes happen after GetByIDForUpdate in the same transaction, which
// serializes concurrent score mutations per user.
type TrustUserRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	SetTrustScore(ctx context.Context, tx pgx.Tx, id uuid.UUID, score float64) error
	SetBanState(ctx context.Context, tx pgx.Tx, id uuid.UUID, banned bool, banCount int, reason *string, unlockCost *int64) error
}

// TrustAuditRepo appends the audit row for a score mutation.
type TrustAuditRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, l *models.TrustScoreLog) error
}

// TrustBanRepo manages ban records.
type TrustBanRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, b *models.BanRecord) error
	LatestActiveTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.BanRecord, error)
	MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// Notifier delivers best-effort user notifications. Implementations must
// never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string)
}

// TrustService owns the per-user reputation scalar. Every mutation runs in
// one transaction that locks the user row, writes the audit log, and passes
// through the ban check on any decrease.
type TrustService struct {
	Pool     TxBeginner
	Users    TrustUserRepo
	Audit    TrustAuditRepo
	Bans     TrustBanRepo
	Notifier Notifier
	Policy   TrustPolicy
}

func NewTrustService(pool TxBeginner, users TrustUserRepo, audit TrustAuditRepo, bans TrustBanRepo, notifier Notifier, policy TrustPolicy) *TrustService {
	return &TrustService{Pool: pool, Users: users, Audit: audit, Bans: bans, Notifier: notifier, Policy: policy}
}

// ApplyEarlyExitPenalty subtracts the configured penalty (floored at 0),
// logs the delta, and evaluates the ban condition.
func (s *TrustService) ApplyEarlyExitPenalty(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.applyDelta(ctx, userID, -s.Policy.EarlyExitPenalty, models.TrustReasonEarlyExit, nil)
}

// AdminIncreaseTrustScore raises the score, capped at 100.
func (s *TrustService) AdminIncreaseTrustScore(ctx context.Context, userID uuid.UUID, delta float64, adminID uuid.UUID, reason string) (*models.User, error) {
	if delta < 0 {
		delta = -delta
	}
	if reason == "" {
		reason = models.TrustReasonAdminIncrease
	}
	return s.applyDelta(ctx, userID, delta, reason, &adminID)
}

// AdminDecreaseTrustScore lowers the score and runs the same ban check as
// the penalty path.
func (s *TrustService) AdminDecreaseTrustScore(ctx context.Context, userID uuid.UUID, delta float64, adminID uuid.UUID, reason string) (*models.User, error) {
	if delta < 0 {
		delta = -delta
	}
	if reason == "" {
		reason = models.TrustReasonAdminDecrease
	}
	return s.applyDelta(ctx, userID, -delta, reason, &adminID)
}

// applyDelta is the single mutation path: lock user row, clamp, persist,
// audit, ban-check on decrease, commit. The ban notification goes out after
// commit so a notification failure can never roll back the ban.
func (s *TrustService) applyDelta(ctx context.Context, userID uuid.UUID, delta float64, reason string, adminID *uuid.UUID) (*models.User, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	u, err := s.Users.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	oldScore := u.TrustScore
	newScore := ClampTrustScore(oldScore + delta)
	if err := s.Users.SetTrustScore(ctx, tx, userID, newScore); err != nil {
		return nil, err
	}
	u.TrustScore = newScore

	if err := s.Audit.CreateTx(ctx, tx, &models.TrustScoreLog{
		ID:       uuid.New(),
		UserID:   userID,
		OldScore: oldScore,
		NewScore: newScore,
		Change:   newScore - oldScore,
		Reason:   reason,
		AdminID:  adminID,
	}); err != nil {
		return nil, err
	}

	banned := false
	if delta < 0 {
		banned, err = s.checkAndApplyBan(ctx, tx, u)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if banned {
		s.Notifier.Notify(ctx, userID, "Account banned",
			fmt.Sprintf("Your trust score dropped to %.0f. Pay the unlock fee of %d to restore access.", u.TrustScore, *u.BanUnlockCost))
	}
	return u, nil
}

// checkAndApplyBan is the single gate every score-decreasing path passes
// through. It fires exactly once per qualifying crossing: a user already
// banned does not accumulate duplicate ban records on further drops.
func (s *TrustService) checkAndApplyBan(ctx context.Context, tx pgx.Tx, u *models.User) (bool, error) {
	if u.TrustScore > s.Policy.BanThreshold || u.IsBanned {
		return false, nil
	}

	banCount := u.BanCount + 1
	cost := s.Policy.UnlockCost(banCount)
	reason := fmt.Sprintf("trust score fell to %.1f (threshold %.0f)", u.TrustScore, s.Policy.BanThreshold)

	if err := s.Bans.CreateTx(ctx, tx, &models.BanRecord{
		ID:         uuid.New(),
		UserID:     u.ID,
		BanCount:   banCount,
		Reason:     reason,
		UnlockCost: cost,
	}); err != nil {
		return false, err
	}
	if err := s.Users.SetBanState(ctx, tx, u.ID, true, banCount, &reason, &cost); err != nil {
		return false, err
	}

	u.IsBanned = true
	u.BanCount = banCount
	u.BanReason = &reason
	u.BanUnlockCost = &cost
	return true, nil
}

// UnlockBannedAccount settles the unlock fee of the latest unresolved ban
// record. On success the ban clears and the trust score resets to the
// baseline of 70 regardless of the pre-ban value.
func (s *TrustService) UnlockBannedAccount(ctx context.Context, userID uuid.UUID, paymentAmount int64) (*models.User, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	u, err := s.Users.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsBanned {
		return nil, ErrNotBanned
	}

	rec, err := s.Bans.LatestActiveTx(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotBanned
		}
		return nil, err
	}
	if paymentAmount < rec.UnlockCost {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrInsufficientPayment, rec.UnlockCost, paymentAmount)
	}

	if err := s.Bans.MarkPaidTx(ctx, tx, rec.ID); err != nil {
		return nil, err
	}
	if err := s.Users.SetBanState(ctx, tx, userID, false, u.BanCount, nil, nil); err != nil {
		return nil, err
	}

	oldScore := u.TrustScore
	if err := s.Users.SetTrustScore(ctx, tx, userID, models.TrustScoreBaseline); err != nil {
		return nil, err
	}
	if err := s.Audit.CreateTx(ctx, tx, &models.TrustScoreLog{
		ID:       uuid.New(),
		UserID:   userID,
		OldScore: oldScore,
		NewScore: models.TrustScoreBaseline,
		Change:   models.TrustScoreBaseline - oldScore,
		Reason:   models.TrustReasonUnlockReset,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	u.IsBanned = false
	u.BanReason = nil
	u.BanUnlockCost = nil
	u.TrustScore = models.TrustScoreBaseline
	s.Notifier.Notify(ctx, userID, "Account unlocked", "Your unlock payment was received. Your trust score has been reset to 70.")
	return u, nil
}
