package models

import (
	"time"

	"github.com/google/uuid"
)

// Trust score change reasons recorded in the audit log.
const (
	TrustReasonEarlyExit     = "early_task_exit"
	TrustReasonAdminIncrease = "admin_increase"
	TrustReasonAdminDecrease = "admin_decrease"
	TrustReasonUnlockReset   = "ban_unlock_reset"
)

// TrustScoreLog is an immutable audit row written on every score mutation.
type TrustScoreLog struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	OldScore  float64    `json:"old_score"`
	NewScore  float64    `json:"new_score"`
	Change    float64    `json:"change"`
	Reason    string     `json:"reason"`
	AdminID   *uuid.UUID `json:"admin_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// BanRecord captures one ban event and its unlock fee. At most one record
// per user has UnlockedAt == nil at any time.
type BanRecord struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	BanCount   int        `json:"ban_count"`
	Reason     string     `json:"reason"`
	UnlockCost int64      `json:"unlock_cost"`
	Paid       bool       `json:"paid"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
