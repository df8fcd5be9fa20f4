package models

import (
	"time"

	"github.com/google/uuid"
)

// Trust score bounds and the baseline restored after a paid unlock.
const (
	TrustScoreMin      = 0.0
	TrustScoreMax      = 100.0
	TrustScoreBaseline = 70.0
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	IsAdmin       bool      `json:"is_admin"`
	TrustScore    float64   `json:"trust_score"`
	IsBanned      bool      `json:"is_banned"`
	BanCount      int       `json:"ban_count"`
	BanReason     *string   `json:"ban_reason,omitempty"`
	BanUnlockCost *int64    `json:"ban_unlock_cost,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
