package services

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/boosthive/backend/internal/models"
)

func TestTierFor_Boundaries(t *testing.T) {
	p := DefaultTrustPolicy()

	cases := []struct {
		score        float64
		tier         string
		lockDays     int
		maxWithdraw  *int64
		unlimitedMax bool
	}{
		{100, TierHigh, 10, nil, true},
		{70.5, TierHigh, 10, nil, true},
		{70, TierMedium, 15, int64p(700), false},
		{61, TierMedium, 15, int64p(700), false},
		{60, TierLow, 20, int64p(500), false},
		{51, TierLow, 20, int64p(500), false},
		{50, TierBanned, 0, int64p(0), false},
		{0, TierBanned, 0, int64p(0), false},
	}
	for _, tc := range cases {
		got := p.TierFor(tc.score)
		if got.Tier != tc.tier {
			t.Errorf("TierFor(%v).Tier = %s, want %s", tc.score, got.Tier, tc.tier)
		}
		if got.LockDays != tc.lockDays {
			t.Errorf("TierFor(%v).LockDays = %d, want %d", tc.score, got.LockDays, tc.lockDays)
		}
		if tc.unlimitedMax {
			if got.MaxWithdraw != nil {
				t.Errorf("TierFor(%v).MaxWithdraw = %d, want unlimited", tc.score, *got.MaxWithdraw)
			}
		} else if got.MaxWithdraw == nil || *got.MaxWithdraw != *tc.maxWithdraw {
			t.Errorf("TierFor(%v).MaxWithdraw = %v, want %d", tc.score, got.MaxWithdraw, *tc.maxWithdraw)
		}
	}
}

func TestUnlockCost_Schedule(t *testing.T) {
	p := DefaultTrustPolicy()

	want := map[int]int64{0: 30000, 1: 30000, 2: 50000, 3: 100000, 4: 100000, 10: 100000}
	for banCount, cost := range want {
		if got := p.UnlockCost(banCount); got != cost {
			t.Errorf("UnlockCost(%d) = %d, want %d", banCount, got, cost)
		}
	}
}

func TestClampTrustScore(t *testing.T) {
	if got := ClampTrustScore(-3); got != 0 {
		t.Errorf("ClampTrustScore(-3) = %v", got)
	}
	if got := ClampTrustScore(104); got != 100 {
		t.Errorf("ClampTrustScore(104) = %v", got)
	}
	if got := ClampTrustScore(42.5); got != 42.5 {
		t.Errorf("ClampTrustScore(42.5) = %v", got)
	}
}

func TestClampTrustScore_AlwaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.Float64Range(-1000, 1000).Draw(t, "score")
		got := ClampTrustScore(s)
		if got < models.TrustScoreMin || got > models.TrustScoreMax {
			t.Fatalf("ClampTrustScore(%v) = %v out of range", s, got)
		}
		if s >= models.TrustScoreMin && s <= models.TrustScoreMax && got != s {
			t.Fatalf("in-range score %v changed to %v", s, got)
		}
	})
}

func TestTierFor_LockDaysMonotone(t *testing.T) {
	// A higher score never locks earnings for longer.
	p := DefaultTrustPolicy()
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(0, 100).Draw(t, "a")
		b := rapid.Float64Range(0, 100).Draw(t, "b")
		if a < b {
			a, b = b, a
		}
		ta, tb := p.TierFor(a), p.TierFor(b)
		if tb.LockDays != 0 && ta.LockDays > tb.LockDays {
			t.Fatalf("score %v locks %d days, lower score %v locks %d", a, ta.LockDays, b, tb.LockDays)
		}
	})
}

func int64p(v int64) *int64 { return &v }
