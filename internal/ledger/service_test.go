package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boosthive/backend/internal/models"
)

// memStore is an in-memory Store for exercising the service without a
// database.
type memStore struct {
	mu   sync.Mutex
	rows []*models.WalletTransaction
}

func (m *memStore) Create(_ context.Context, t *models.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memStore) CreateTx(_ context.Context, _ pgx.Tx, t *models.WalletTransaction) error {
	return m.Create(context.Background(), t)
}

func (m *memStore) Balance(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, r := range m.rows {
		if r.UserID == userID {
			sum += r.Amount
		}
	}
	return sum, nil
}

func (m *memStore) SumByType(_ context.Context, userID uuid.UUID, txType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, r := range m.rows {
		if r.UserID == userID && r.Type == txType {
			sum += r.Amount
		}
	}
	return sum, nil
}

func (m *memStore) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WalletTransaction
	for _, r := range m.rows {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func TestLedger_BalanceIsSignedSum(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.Credit(ctx, userID, 1000, models.WalletTxTopup, nil); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := svc.CreditTx(ctx, nil, userID, 500, models.WalletTxReward, nil); err != nil {
		t.Fatalf("CreditTx: %v", err)
	}
	if _, err := svc.DebitTx(ctx, nil, userID, 300, models.WalletTxWithdraw, nil); err != nil {
		t.Fatalf("DebitTx: %v", err)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 1200 {
		t.Errorf("balance = %d, want 1200", balance)
	}
}

func TestLedger_DebitStoresNegativeAmount(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)
	userID := uuid.New()

	entry, err := svc.DebitTx(context.Background(), nil, userID, 250, models.WalletTxWithdraw, nil)
	if err != nil {
		t.Fatalf("DebitTx: %v", err)
	}
	if entry.Amount != -250 {
		t.Errorf("stored amount = %d, want -250", entry.Amount)
	}
}

func TestLedger_TotalRewardsIgnoresWithdrawals(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()
	userID := uuid.New()

	svc.Credit(ctx, userID, 400, models.WalletTxReward, nil)
	svc.Credit(ctx, userID, 600, models.WalletTxReward, nil)
	svc.Credit(ctx, userID, 999, models.WalletTxTopup, nil)
	svc.DebitTx(ctx, nil, userID, 500, models.WalletTxWithdraw, nil)

	total, err := svc.TotalRewards(ctx, userID)
	if err != nil {
		t.Fatalf("TotalRewards: %v", err)
	}
	// All-time reward sum: withdrawals and topups never reduce it.
	if total != 1000 {
		t.Errorf("total rewards = %d, want 1000", total)
	}
}

func TestLedger_RejectsNonPositiveAmounts(t *testing.T) {
	svc := NewService(&memStore{})
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.Credit(ctx, userID, 0, models.WalletTxTopup, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero credit: got %v", err)
	}
	if _, err := svc.Credit(ctx, userID, -10, models.WalletTxTopup, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative credit: got %v", err)
	}
	if _, err := svc.DebitTx(ctx, nil, userID, -10, models.WalletTxWithdraw, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative debit: got %v", err)
	}
}
