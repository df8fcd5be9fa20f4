package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	proofMinuteWindow = time.Minute
	proof10SecWindow  = 10 * time.Second
)

// WindowStore is a fixed-window counter store.
type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// RedisWindowStore backs the limiter with redis INCR + EXPIRE.
type RedisWindowStore struct {
	Client *redis.Client
}

func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{Client: client}
}

func (s *RedisWindowStore) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.Client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
	}
	ttl, err := s.Client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}

// ProofRateLimiter throttles proof submissions per user over two fixed
// windows. Zero limits disable the corresponding window.
type ProofRateLimiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

func NewProofRateLimiter(store WindowStore, perMinute, per10Sec int) *ProofRateLimiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if per10Sec < 0 {
		per10Sec = 0
	}
	return &ProofRateLimiter{store: store, perMinute: perMinute, per10Sec: per10Sec}
}

// Allow reports whether the user may submit another proof now. When denied,
// retryAfter is the number of seconds until the tightest window resets.
func (l *ProofRateLimiter) Allow(ctx context.Context, userID uuid.UUID) (retryAfter int64, ok bool, err error) {
	if l.store == nil {
		return 0, true, nil
	}

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, proofKey(userID, "1m"), proofMinuteWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perMinute) {
			retryAfter = maxInt64(retryAfter, ceilSeconds(ttl))
		}
	}
	if l.per10Sec > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, proofKey(userID, "10s"), proof10SecWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.per10Sec) {
			retryAfter = maxInt64(retryAfter, ceilSeconds(ttl))
		}
	}

	if retryAfter > 0 {
		return retryAfter, false, nil
	}
	return 0, true, nil
}

func proofKey(userID uuid.UUID, window string) string {
	return fmt.Sprintf("rate:proofs:%s:%s", window, userID)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64(math.Ceil(d.Seconds()))
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
