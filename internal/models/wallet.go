package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wallet transaction types. Amounts are signed: withdraw entries are
// negative, everything else positive.
const (
	WalletTxTopup         = "topup"
	WalletTxReward        = "reward"
	WalletTxWithdraw      = "withdraw"
	WalletTxAdminGrant    = "admin_grant"
	WalletTxServiceReward = "service_reward"
)

// WalletTransaction is an append-only ledger row. Balance for a user is the
// sum of all its amounts. Never mutated after creation.
type WalletTransaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    int64           `json:"amount"`
	Type      string          `json:"type"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EarningsLock is a time-boxed hold on a reward amount. LockDays and
// MaxWithdraw are a policy snapshot taken at creation and never recomputed.
// The lock is active while UnlockedAt > now; once passed its full Amount is
// unlocked regardless of Withdrawn.
type EarningsLock struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      int64     `json:"amount"`
	LockDays    int       `json:"lock_days"`
	MaxWithdraw *int64    `json:"max_withdraw,omitempty"`
	Withdrawn   int64     `json:"withdrawn"`
	UnlockedAt  time.Time `json:"unlocked_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Active reports whether the lock still holds funds at the given instant.
func (l *EarningsLock) Active(now time.Time) bool {
	return l.UnlockedAt.After(now)
}
