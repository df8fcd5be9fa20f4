package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/models"
)

// Validation errors: rejected synchronously, nothing mutated.
var (
	ErrInvalidWithdrawAmount = errors.New("withdrawal amount must be positive")
	ErrUnsupportedMethod     = errors.New("unsupported withdrawal method")
	ErrNotRequestOwner       = errors.New("withdrawal belongs to another user")
)

// Policy violation codes surfaced to the caller so the UI can render
// actionable context.
const (
	ReasonBanned               = "banned"
	ReasonEarningsLocked       = "earnings_locked"
	ReasonExceedsLimit         = "exceeds_limit"
	ReasonInsufficientUnlocked = "insufficient_unlocked"
)

// PolicyError is a structured rejection of a withdrawal request. No partial
// mutation occurs when one is returned.
type PolicyError struct {
	Code             string  `json:"error"`
	Message          string  `json:"message"`
	BanReason        *string `json:"ban_reason,omitempty"`
	UnlockCost       *int64  `json:"unlock_cost,omitempty"`
	MaxWithdraw      *int64  `json:"max_withdraw,omitempty"`
	UnlockedEarnings *int64  `json:"unlocked_earnings,omitempty"`
}

func (e *PolicyError) Error() string { return e.Code + ": " + e.Message }

// WithdrawStore is the request persistence surface.
type WithdrawStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, w *models.WithdrawRequest) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawRequest, error)
	TransitionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, toStatus string, reason *string) error
}

// WithdrawalUserRepo locks the user row to serialize financial mutations.
type WithdrawalUserRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
}

// WithdrawalLedger appends the negative withdraw entry on approval and
// reads the reward total during request validation.
type WithdrawalLedger interface {
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, txType string, meta json.RawMessage) (*models.WalletTransaction, error)
	TotalRewards(ctx context.Context, userID uuid.UUID) (int64, error)
}

// WithdrawalService validates requests against unlocked balance and tier
// ceiling, drains locks, and runs admin approve/reject transitions.
// Request state machine: pending -> approved | rejected | cancelled, all
// terminal.
type WithdrawalService struct {
	Pool     TxBeginner
	Users    WithdrawalUserRepo
	Store    WithdrawStore
	Earnings *EarningsService
	Ledger   WithdrawalLedger
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewWithdrawalService(pool TxBeginner, users WithdrawalUserRepo, store WithdrawStore, earnings *EarningsService, ledger WithdrawalLedger, notifier Notifier, logger *slog.Logger) *WithdrawalService {
	return &WithdrawalService{
		Pool: pool, Users: users, Store: store, Earnings: earnings,
		Ledger: ledger, Notifier: notifier, Logger: logger, Now: time.Now,
	}
}

// Request creates a pending withdrawal. All checks and the lock drain run
// in one transaction holding the user row lock, so the unlocked balance a
// request is validated against cannot be changed underneath it by a
// concurrent request or penalty.
func (s *WithdrawalService) Request(ctx context.Context, userID uuid.UUID, amount int64, method string) (*models.WithdrawRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidWithdrawAmount
	}
	if !models.ValidWithdrawMethod(method) {
		return nil, ErrUnsupportedMethod
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	user, err := s.Users.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, &PolicyError{
			Code:       ReasonBanned,
			Message:    "account is banned; pay the unlock fee to restore withdrawals",
			BanReason:  user.BanReason,
			UnlockCost: user.BanUnlockCost,
		}
	}

	now := s.Now()
	total, err := s.Ledger.TotalRewards(ctx, userID)
	if err != nil {
		return nil, err
	}
	locks, err := s.Earnings.Locks.ListActiveForUpdate(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}
	var locked int64
	for _, l := range locks {
		locked += l.Amount
	}
	unlocked := total - locked

	// The tier ceiling is reported even when everything is still locked, so
	// the user learns the hard cap before the unlock date arrives.
	tier := s.Earnings.Policy.TierFor(user.TrustScore)
	if tier.MaxWithdraw != nil && amount > *tier.MaxWithdraw {
		return nil, &PolicyError{
			Code:        ReasonExceedsLimit,
			Message:     fmt.Sprintf("amount exceeds the %s tier ceiling", tier.Tier),
			MaxWithdraw: tier.MaxWithdraw,
		}
	}

	if unlocked <= 0 {
		return nil, &PolicyError{
			Code:             ReasonEarningsLocked,
			Message:          "no unlocked earnings available",
			UnlockedEarnings: &unlocked,
		}
	}
	if amount > unlocked {
		return nil, &PolicyError{
			Code:             ReasonInsufficientUnlocked,
			Message:          "amount exceeds unlocked earnings",
			UnlockedEarnings: &unlocked,
		}
	}

	w := &models.WithdrawRequest{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		Method: method,
		Status: models.WithdrawStatusPending,
	}
	if err := s.Store.CreateTx(ctx, tx, w); err != nil {
		return nil, err
	}

	// Drain the soonest-unlocking locks so the requested amount cannot be
	// counted again by a later request.
	if _, err := s.Earnings.Drain(ctx, tx, locks, amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, userID, "Withdrawal requested",
		fmt.Sprintf("Your withdrawal request for %d via %s is pending review.", amount, method))
	return w, nil
}

// Cancel flips a still-pending request to cancelled. Owner only.
func (s *WithdrawalService) Cancel(ctx context.Context, withdrawalID, userID uuid.UUID) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	w, err := s.Store.GetByIDForUpdate(ctx, tx, withdrawalID)
	if err != nil {
		return err
	}
	if w.UserID != userID {
		return ErrNotRequestOwner
	}
	if err := s.Store.TransitionTx(ctx, tx, withdrawalID, models.WithdrawStatusCancelled, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Approve marks the request approved and appends the negative withdraw
// ledger entry in the same transaction. The external money movement is out
// of band; approval only records the debit.
func (s *WithdrawalService) Approve(ctx context.Context, withdrawalID, adminID uuid.UUID) (*models.WithdrawRequest, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := s.Store.GetByIDForUpdate(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.TransitionTx(ctx, tx, withdrawalID, models.WithdrawStatusApproved, nil); err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]string{
		"withdrawal_id": withdrawalID.String(),
		"admin_id":      adminID.String(),
	})
	if _, err := s.Ledger.DebitTx(ctx, tx, w.UserID, w.Amount, models.WalletTxWithdraw, meta); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	w.Status = models.WithdrawStatusApproved

	s.Logger.Info("withdrawal approved", "withdrawal_id", withdrawalID, "user_id", w.UserID, "amount", w.Amount, "admin_id", adminID)
	s.Notifier.Notify(ctx, w.UserID, "Withdrawal approved",
		fmt.Sprintf("Your withdrawal of %d via %s was approved.", w.Amount, w.Method))
	return w, nil
}

// Reject marks the request rejected with a reason. No ledger entry: funds
// were never debited.
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalID, adminID uuid.UUID, reason string) (*models.WithdrawRequest, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := s.Store.GetByIDForUpdate(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.TransitionTx(ctx, tx, withdrawalID, models.WithdrawStatusRejected, &reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	w.Status = models.WithdrawStatusRejected
	w.Reason = &reason

	s.Logger.Info("withdrawal rejected", "withdrawal_id", withdrawalID, "user_id", w.UserID, "reason", reason, "admin_id", adminID)
	s.Notifier.Notify(ctx, w.UserID, "Withdrawal rejected",
		fmt.Sprintf("Your withdrawal of %d was rejected: %s", w.Amount, reason))
	return w, nil
}
