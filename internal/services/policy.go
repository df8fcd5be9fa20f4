package services

import (
	"github.com/boosthive/backend/internal/config"
	"github.com/boosthive/backend/internal/models"
)

// Trust tiers. The tier is derived from the score alone; the is_banned flag
// on the user row mirrors tier boundary crossings but is owned by the ban
// workflow, not recomputed from score.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
	TierBanned = "banned"
)

// TierPolicy is the lock/withdrawal policy for one tier. MaxWithdraw nil
// means unlimited; LockDays 0 means locks cannot be created.
type TierPolicy struct {
	Tier        string
	LockDays    int
	MaxWithdraw *int64
}

// TrustPolicy holds the configurable tier table, penalty and ban-fee
// schedule.
type TrustPolicy struct {
	LockDaysHigh      int
	LockDaysMedium    int
	LockDaysLow       int
	MaxWithdrawMedium int64
	MaxWithdrawLow    int64
	EarlyExitPenalty  float64
	BanThreshold      float64
	UnlockCostFirst   int64
	UnlockCostSecond  int64
	UnlockCostThird   int64
}

// DefaultTrustPolicy mirrors the config defaults; tests use it directly.
func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{
		LockDaysHigh:      10,
		LockDaysMedium:    15,
		LockDaysLow:       20,
		MaxWithdrawMedium: 700,
		MaxWithdrawLow:    500,
		EarlyExitPenalty:  10,
		BanThreshold:      50,
		UnlockCostFirst:   30000,
		UnlockCostSecond:  50000,
		UnlockCostThird:   100000,
	}
}

// PolicyFromConfig builds the runtime policy from loaded configuration.
func PolicyFromConfig(c config.PolicyConfig) TrustPolicy {
	return TrustPolicy{
		LockDaysHigh:      c.LockDaysHigh,
		LockDaysMedium:    c.LockDaysMedium,
		LockDaysLow:       c.LockDaysLow,
		MaxWithdrawMedium: c.MaxWithdrawMedium,
		MaxWithdrawLow:    c.MaxWithdrawLow,
		EarlyExitPenalty:  c.EarlyExitPenalty,
		BanThreshold:      c.BanThreshold,
		UnlockCostFirst:   c.UnlockCostFirst,
		UnlockCostSecond:  c.UnlockCostSecond,
		UnlockCostThird:   c.UnlockCostThird,
	}
}

// TierFor maps a trust score to its tier policy.
//
//	> 70        high    (no withdrawal ceiling)
//	61 – 70     medium
//	51 – 60     low
//	<= 50       banned  (no locks, no withdrawals)
func (p TrustPolicy) TierFor(score float64) TierPolicy {
	switch {
	case score > 70:
		return TierPolicy{Tier: TierHigh, LockDays: p.LockDaysHigh}
	case score > 60:
		max := p.MaxWithdrawMedium
		return TierPolicy{Tier: TierMedium, LockDays: p.LockDaysMedium, MaxWithdraw: &max}
	case score > p.BanThreshold:
		max := p.MaxWithdrawLow
		return TierPolicy{Tier: TierLow, LockDays: p.LockDaysLow, MaxWithdraw: &max}
	default:
		zero := int64(0)
		return TierPolicy{Tier: TierBanned, LockDays: 0, MaxWithdraw: &zero}
	}
}

// UnlockCost returns the escalating unlock fee for the nth ban. The
// schedule caps at the third tier: a 4th ban costs the same as the 3rd.
func (p TrustPolicy) UnlockCost(banCount int) int64 {
	switch {
	case banCount <= 1:
		return p.UnlockCostFirst
	case banCount == 2:
		return p.UnlockCostSecond
	default:
		return p.UnlockCostThird
	}
}

// ClampTrustScore bounds a score to the valid range.
func ClampTrustScore(s float64) float64 {
	if s < models.TrustScoreMin {
		return models.TrustScoreMin
	}
	if s > models.TrustScoreMax {
		return models.TrustScoreMax
	}
	return s
}
