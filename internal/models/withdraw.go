package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal methods. Execution of the actual payout is out of band.
const (
	WithdrawMethodBank   = "bank"
	WithdrawMethodPaypal = "paypal"
	WithdrawMethodCrypto = "crypto"
	WithdrawMethodCard   = "card"
	WithdrawMethodManual = "manual"
)

// Withdrawal request lifecycle: pending -> approved | rejected | cancelled.
// Terminal states are never reopened.
const (
	WithdrawStatusPending   = "pending"
	WithdrawStatusApproved  = "approved"
	WithdrawStatusRejected  = "rejected"
	WithdrawStatusCancelled = "cancelled"
)

// ValidWithdrawMethod reports whether m is a supported payout method.
func ValidWithdrawMethod(m string) bool {
	switch m {
	case WithdrawMethodBank, WithdrawMethodPaypal, WithdrawMethodCrypto, WithdrawMethodCard, WithdrawMethodManual:
		return true
	}
	return false
}

type WithdrawRequest struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is a best-effort side-effect record emitted on user-visible
// state transitions. Delivery failures never roll back the transition.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
