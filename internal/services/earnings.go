package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/models"
)

// ErrLockCreationBanned is returned when a lock would be created for a user
// whose tier forbids it.
var ErrLockCreationBanned = errors.New("cannot create earnings lock for banned account")

// EarningsLockRepo is the lock persistence surface for the manager.
type EarningsLockRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, l *models.EarningsLock) error
	ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.EarningsLock, error)
	ListActiveForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, now time.Time) ([]*models.EarningsLock, error)
	AddWithdrawnTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) error
}

// EarningsUserRepo reads users for status reporting.
type EarningsUserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RewardSummer reports the all-time reward total from the wallet ledger.
type RewardSummer interface {
	TotalRewards(ctx context.Context, userID uuid.UUID) (int64, error)
}

// EarningsStatus is the wire shape of GET /v1/earnings/status.
type EarningsStatus struct {
	CanWithdraw      bool                   `json:"canWithdraw"`
	TotalEarnings    int64                  `json:"totalEarnings"`
	UnlockedEarnings int64                  `json:"unlockedEarnings"`
	LockedEarnings   int64                  `json:"lockedEarnings"`
	MaxWithdraw      *int64                 `json:"maxWithdraw"`
	TrustScore       float64                `json:"trustScore"`
	TrustTier        string                 `json:"trustTier"`
	NextUnlockDate   *time.Time             `json:"nextUnlockDate"`
	ActiveLocks      []*models.EarningsLock `json:"activeLocks"`
	Reason           string                 `json:"reason,omitempty"`
}

// EarningsService creates time-locked reward records and aggregates locked
// vs unlocked totals. Locks are immutable policy snapshots: the lock days
// and withdrawal ceiling are taken from the tier at creation time and never
// recomputed when the score moves.
type EarningsService struct {
	Locks  EarningsLockRepo
	Users  EarningsUserRepo
	Ledger RewardSummer
	Policy TrustPolicy
	Now    func() time.Time
}

func NewEarningsService(locks EarningsLockRepo, users EarningsUserRepo, ledger RewardSummer, policy TrustPolicy) *EarningsService {
	return &EarningsService{Locks: locks, Users: users, Ledger: ledger, Policy: policy, Now: time.Now}
}

// CreateLock creates a lock for a verified task reward inside the caller's
// transaction. The caller must hold the user row lock; the user's current
// tier decides lock duration and ceiling. Fails for the banned tier.
func (s *EarningsService) CreateLock(ctx context.Context, tx pgx.Tx, user *models.User, amount int64, startDate time.Time) (*models.EarningsLock, error) {
	if user.IsBanned {
		return nil, ErrLockCreationBanned
	}
	tier := s.Policy.TierFor(user.TrustScore)
	if tier.LockDays == 0 {
		return nil, ErrLockCreationBanned
	}

	lock := &models.EarningsLock{
		ID:          uuid.New(),
		UserID:      user.ID,
		Amount:      amount,
		LockDays:    tier.LockDays,
		MaxWithdraw: tier.MaxWithdraw,
		UnlockedAt:  startDate.AddDate(0, 0, tier.LockDays),
	}
	if err := s.Locks.CreateTx(ctx, tx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// Status reports the locked/unlocked split using one consistent "now" for
// the whole response.
//
// lockedEarnings sums the full amount of each active lock, not
// amount - withdrawn: a partially drained lock keeps counting in full until
// it naturally expires. Conservative by design; the drain bookkeeping in
// the withdrawal path prevents double-spending either way.
func (s *EarningsService) Status(ctx context.Context, userID uuid.UUID) (*EarningsStatus, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	total, err := s.Ledger.TotalRewards(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.Locks.ListActive(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var locked int64
	var next *time.Time
	for _, l := range active {
		locked += l.Amount
		if next == nil || l.UnlockedAt.Before(*next) {
			t := l.UnlockedAt
			next = &t
		}
	}
	unlocked := total - locked

	tier := s.Policy.TierFor(user.TrustScore)
	st := &EarningsStatus{
		TotalEarnings:    total,
		UnlockedEarnings: unlocked,
		LockedEarnings:   locked,
		MaxWithdraw:      tier.MaxWithdraw,
		TrustScore:       user.TrustScore,
		TrustTier:        tier.Tier,
		NextUnlockDate:   next,
		ActiveLocks:      active,
	}
	switch {
	case user.IsBanned:
		st.Reason = "account_banned"
	case unlocked <= 0:
		st.Reason = "earnings_locked"
	default:
		st.CanWithdraw = true
	}
	return st, nil
}

// Drain allocates amount against the given active locks, soonest-unlocking
// first, incrementing each lock's withdrawn counter up to its capacity.
// Locks must be row-locked by the caller (ListActiveForUpdate) and ordered
// by ascending unlock time. Returns the total drained, which is
// min(amount, sum of remaining capacity).
func (s *EarningsService) Drain(ctx context.Context, tx pgx.Tx, locks []*models.EarningsLock, amount int64) (int64, error) {
	remaining := amount
	var drained int64
	for _, l := range locks {
		if remaining <= 0 {
			break
		}
		capacity := l.Amount - l.Withdrawn
		if capacity <= 0 {
			continue
		}
		take := capacity
		if remaining < take {
			take = remaining
		}
		if err := s.Locks.AddWithdrawnTx(ctx, tx, l.ID, take); err != nil {
			return drained, err
		}
		l.Withdrawn += take
		remaining -= take
		drained += take
	}
	return drained, nil
}
