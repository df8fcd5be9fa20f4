package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"pgregory.net/rapid"

	"github.com/boosthive/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockLockStore struct {
	mu    sync.Mutex
	locks []*models.EarningsLock
}

func (m *mockLockStore) CreateTx(_ context.Context, _ pgx.Tx, l *models.EarningsLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.locks = append(m.locks, &cp)
	return nil
}

func (m *mockLockStore) activeSorted(userID uuid.UUID, now time.Time) []*models.EarningsLock {
	var out []*models.EarningsLock
	for _, l := range m.locks {
		if l.UserID == userID && l.Active(now) {
			cp := *l
			out = append(out, &cp)
		}
	}
	// ascending unlock time, matching the repository ORDER BY
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].UnlockedAt.Before(out[j-1].UnlockedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (m *mockLockStore) ListActive(_ context.Context, userID uuid.UUID, now time.Time) ([]*models.EarningsLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSorted(userID, now), nil
}

func (m *mockLockStore) ListActiveForUpdate(_ context.Context, _ pgx.Tx, userID uuid.UUID, now time.Time) ([]*models.EarningsLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSorted(userID, now), nil
}

func (m *mockLockStore) AddWithdrawnTx(_ context.Context, _ pgx.Tx, id uuid.UUID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.locks {
		if l.ID == id {
			if l.Withdrawn+delta > l.Amount {
				return errors.New("withdrawn exceeds lock amount")
			}
			l.Withdrawn += delta
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockLockStore) withdrawn(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.locks {
		if l.ID == id {
			return l.Withdrawn
		}
	}
	return -1
}

type mockRewards struct {
	total int64
}

func (m *mockRewards) TotalRewards(context.Context, uuid.UUID) (int64, error) {
	return m.total, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEarningsFixture(u *models.User, total int64) (*EarningsService, *mockLockStore, *mockUserStore) {
	locks := &mockLockStore{}
	users := newMockUserStore(u)
	svc := NewEarningsService(locks, users, &mockRewards{total: total}, DefaultTrustPolicy())
	svc.Now = func() time.Time { return testEpoch }
	return svc, locks, users
}

func addLock(locks *mockLockStore, userID uuid.UUID, amount, withdrawn int64, unlockedAt time.Time) *models.EarningsLock {
	l := &models.EarningsLock{
		ID:         uuid.New(),
		UserID:     userID,
		Amount:     amount,
		Withdrawn:  withdrawn,
		UnlockedAt: unlockedAt,
	}
	locks.locks = append(locks.locks, l)
	return l
}

// ---------------------------------------------------------------------------
// CreateLock
// ---------------------------------------------------------------------------

func TestCreateLock_SnapshotsTierPolicy(t *testing.T) {
	cases := []struct {
		score       float64
		wantDays    int
		wantMax     *int64
		wantUnmaxed bool
	}{
		{85, 10, nil, true},
		{65, 15, int64p(700), false},
		{55, 20, int64p(500), false},
	}
	for _, tc := range cases {
		user := &models.User{ID: uuid.New(), TrustScore: tc.score}
		svc, locks, _ := newEarningsFixture(user, 0)

		start := testEpoch
		lock, err := svc.CreateLock(context.Background(), noopTx{}, user, 250, start)
		if err != nil {
			t.Fatalf("score %v: CreateLock: %v", tc.score, err)
		}
		if lock.LockDays != tc.wantDays {
			t.Errorf("score %v: LockDays = %d, want %d", tc.score, lock.LockDays, tc.wantDays)
		}
		if want := start.AddDate(0, 0, tc.wantDays); !lock.UnlockedAt.Equal(want) {
			t.Errorf("score %v: UnlockedAt = %v, want %v", tc.score, lock.UnlockedAt, want)
		}
		if tc.wantUnmaxed {
			if lock.MaxWithdraw != nil {
				t.Errorf("score %v: MaxWithdraw = %d, want nil", tc.score, *lock.MaxWithdraw)
			}
		} else if lock.MaxWithdraw == nil || *lock.MaxWithdraw != *tc.wantMax {
			t.Errorf("score %v: MaxWithdraw = %v, want %d", tc.score, lock.MaxWithdraw, *tc.wantMax)
		}
		if len(locks.locks) != 1 {
			t.Errorf("score %v: %d locks persisted", tc.score, len(locks.locks))
		}
	}
}

func TestCreateLock_RefusesBannedUser(t *testing.T) {
	user := &models.User{ID: uuid.New(), TrustScore: 80, IsBanned: true}
	svc, _, _ := newEarningsFixture(user, 0)

	if _, err := svc.CreateLock(context.Background(), noopTx{}, user, 100, testEpoch); !errors.Is(err, ErrLockCreationBanned) {
		t.Fatalf("expected ErrLockCreationBanned, got %v", err)
	}
}

func TestCreateLock_RefusesBannedTierScore(t *testing.T) {
	// Not flagged banned, but the score sits in the banned tier: no lock.
	user := &models.User{ID: uuid.New(), TrustScore: 50}
	svc, _, _ := newEarningsFixture(user, 0)

	if _, err := svc.CreateLock(context.Background(), noopTx{}, user, 100, testEpoch); !errors.Is(err, ErrLockCreationBanned) {
		t.Fatalf("expected ErrLockCreationBanned, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func TestStatus_SplitsLockedAndUnlocked(t *testing.T) {
	user := &models.User{ID: uuid.New(), TrustScore: 80}
	svc, locks, _ := newEarningsFixture(user, 1000)

	soon := testEpoch.Add(24 * time.Hour)
	later := testEpoch.Add(72 * time.Hour)
	addLock(locks, user.ID, 400, 0, later)
	addLock(locks, user.ID, 200, 0, soon)
	addLock(locks, user.ID, 300, 0, testEpoch.Add(-time.Hour)) // expired

	st, err := svc.Status(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.TotalEarnings != 1000 || st.LockedEarnings != 600 || st.UnlockedEarnings != 400 {
		t.Errorf("split = total %d locked %d unlocked %d", st.TotalEarnings, st.LockedEarnings, st.UnlockedEarnings)
	}
	if !st.CanWithdraw {
		t.Error("expected canWithdraw with positive unlocked balance")
	}
	if st.Reason != "" {
		t.Errorf("unexpected reason %q", st.Reason)
	}
	if st.NextUnlockDate == nil || !st.NextUnlockDate.Equal(soon) {
		t.Errorf("nextUnlockDate = %v, want %v", st.NextUnlockDate, soon)
	}
	if len(st.ActiveLocks) != 2 {
		t.Errorf("activeLocks = %d, want 2", len(st.ActiveLocks))
	}
	if st.TrustTier != TierHigh {
		t.Errorf("tier = %s", st.TrustTier)
	}
}

func TestStatus_AllLocked(t *testing.T) {
	user := &models.User{ID: uuid.New(), TrustScore: 80}
	svc, locks, _ := newEarningsFixture(user, 500)
	addLock(locks, user.ID, 500, 0, testEpoch.Add(time.Hour))

	st, err := svc.Status(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CanWithdraw {
		t.Error("canWithdraw must be false with zero unlocked")
	}
	if st.Reason != "earnings_locked" {
		t.Errorf("reason = %q, want earnings_locked", st.Reason)
	}
}

func TestStatus_BannedUser(t *testing.T) {
	user := &models.User{ID: uuid.New(), TrustScore: 40, IsBanned: true}
	svc, _, _ := newEarningsFixture(user, 900)

	st, err := svc.Status(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CanWithdraw {
		t.Error("banned user cannot withdraw")
	}
	if st.Reason != "account_banned" {
		t.Errorf("reason = %q, want account_banned", st.Reason)
	}
}

func TestStatus_PartialDrainStillCountsFullAmount(t *testing.T) {
	// A drained-but-active lock keeps counting at its full amount.
	user := &models.User{ID: uuid.New(), TrustScore: 80}
	svc, locks, _ := newEarningsFixture(user, 1000)
	addLock(locks, user.ID, 600, 450, testEpoch.Add(time.Hour))

	st, err := svc.Status(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LockedEarnings != 600 {
		t.Errorf("locked = %d, want full 600", st.LockedEarnings)
	}
	if st.UnlockedEarnings != 400 {
		t.Errorf("unlocked = %d, want 400", st.UnlockedEarnings)
	}
}

// ---------------------------------------------------------------------------
// Drain
// ---------------------------------------------------------------------------

func TestDrain_SoonestFirstAndPartial(t *testing.T) {
	user := &models.User{ID: uuid.New(), TrustScore: 80}
	svc, locks, _ := newEarningsFixture(user, 0)

	first := addLock(locks, user.ID, 300, 0, testEpoch.Add(24*time.Hour))
	second := addLock(locks, user.ID, 500, 0, testEpoch.Add(48*time.Hour))

	active, _ := locks.ListActive(context.Background(), user.ID, testEpoch)
	drained, err := svc.Drain(context.Background(), noopTx{}, active, 450)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if drained != 450 {
		t.Errorf("drained = %d, want 450", drained)
	}
	if got := locks.withdrawn(first.ID); got != 300 {
		t.Errorf("first lock withdrawn = %d, want 300", got)
	}
	if got := locks.withdrawn(second.ID); got != 150 {
		t.Errorf("second lock withdrawn = %d, want 150", got)
	}
}

func TestDrain_SkipsExhaustedLocks(t *testing.T) {
	user := &models.User{ID: uuid.New(), TrustScore: 80}
	svc, locks, _ := newEarningsFixture(user, 0)

	exhausted := addLock(locks, user.ID, 200, 200, testEpoch.Add(24*time.Hour))
	open := addLock(locks, user.ID, 300, 0, testEpoch.Add(48*time.Hour))

	active, _ := locks.ListActive(context.Background(), user.ID, testEpoch)
	drained, err := svc.Drain(context.Background(), noopTx{}, active, 100)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if drained != 100 {
		t.Errorf("drained = %d, want 100", drained)
	}
	if got := locks.withdrawn(exhausted.ID); got != 200 {
		t.Errorf("exhausted lock touched: withdrawn = %d", got)
	}
	if got := locks.withdrawn(open.ID); got != 100 {
		t.Errorf("open lock withdrawn = %d, want 100", got)
	}
}

func TestDrain_ConservesAmounts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		user := &models.User{ID: uuid.New(), TrustScore: 80}
		svc, locks, _ := newEarningsFixture(user, 0)

		n := rapid.IntRange(0, 6).Draw(t, "locks")
		var capacity int64
		for i := 0; i < n; i++ {
			amount := rapid.Int64Range(1, 500).Draw(t, "amount")
			withdrawn := rapid.Int64Range(0, amount).Draw(t, "withdrawn")
			addLock(locks, user.ID, amount, withdrawn, testEpoch.Add(time.Duration(i+1)*time.Hour))
			capacity += amount - withdrawn
		}
		request := rapid.Int64Range(0, 2000).Draw(t, "request")

		active, _ := locks.ListActive(context.Background(), user.ID, testEpoch)
		drained, err := svc.Drain(context.Background(), noopTx{}, active, request)
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}

		want := request
		if capacity < want {
			want = capacity
		}
		if drained != want {
			t.Fatalf("drained = %d, want min(request=%d, capacity=%d)", drained, request, capacity)
		}
		for _, l := range locks.locks {
			if l.Withdrawn > l.Amount {
				t.Fatalf("lock overdrawn: withdrawn %d > amount %d", l.Withdrawn, l.Amount)
			}
		}
	})
}
