package rate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scope names one class of accounted traffic. Scopes are independent:
// exhausting one never consumes another's budget.
type Scope string

const (
	ScopeAuthBurst     Scope = "auth-burst"
	ScopeAuthSustained Scope = "auth-sustained"
	ScopeAPI           Scope = "api"
	ScopePasswordReset Scope = "password-reset"
	ScopeRegistration  Scope = "registration"
	ScopeSuspicious    Scope = "suspicious"
)

// Limit is one window budget.
type Limit struct {
	MaxAttempts int
	Window      time.Duration
}

// Result reports the outcome of a window check. Limit/Remaining/Reset are
// populated on both outcomes so callers can emit informational headers on
// accepted requests too.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Reset      time.Time
}

// Limiter tracks attempt timestamps per (scope, identifier) in Redis
// sorted sets.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "ac"
	}
	return &Limiter{redis: redisClient, prefix: prefix}
}

func (l *Limiter) windowKey(scope Scope, identifier string) string {
	return l.prefix + ":rw:" + string(scope) + ":" + identifier
}

func (l *Limiter) breakerCountKey() string {
	return l.prefix + ":gb:count"
}

func (l *Limiter) breakerCooldownKey() string {
	return l.prefix + ":gb:cooldown"
}

// Allow runs the read-prune-append sequence for one window. The sequence
// is retried on WATCH contention so two concurrent requests cannot both
// take the final slot.
func (l *Limiter) Allow(ctx context.Context, scope Scope, identifier string, limit Limit) (Result, error) {
	if limit.MaxAttempts <= 0 || limit.Window <= 0 {
		return Result{}, errors.New("invalid limit configuration")
	}

	const maxRetries = 4
	key := l.windowKey(scope, identifier)

	for i := 0; i < maxRetries; i++ {
		var result Result

		err := l.redis.Watch(ctx, func(tx *redis.Tx) error {
			now := time.Now()
			cutoff := now.Add(-limit.Window)

			entries, err := tx.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
				Min: strconv.FormatInt(cutoff.UnixNano(), 10),
				Max: "+inf",
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			count := len(entries)
			if count >= limit.MaxAttempts {
				oldest := time.Unix(0, int64(entries[0].Score))
				retryAfter := oldest.Add(limit.Window).Sub(now)
				if retryAfter < time.Second {
					retryAfter = time.Second
				}

				// Prune lazily even on rejection so the set stays bounded.
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10))
					return nil
				})
				if err != nil {
					return err
				}

				result = Result{
					Allowed:    false,
					Limit:      limit.MaxAttempts,
					Remaining:  0,
					RetryAfter: retryAfter,
					Reset:      oldest.Add(limit.Window),
				}
				return nil
			}

			member, err := windowMember(now)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10))
				pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
				pipe.Expire(ctx, key, limit.Window+time.Minute)
				return nil
			})
			if err != nil {
				return err
			}

			reset := now.Add(limit.Window)
			if count > 0 {
				reset = time.Unix(0, int64(entries[0].Score)).Add(limit.Window)
			}

			result = Result{
				Allowed:   true,
				Limit:     limit.MaxAttempts,
				Remaining: limit.MaxAttempts - count - 1,
				Reset:     reset,
			}
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		return result, nil
	}

	// Contention exhausted retries; refuse rather than risk a lost update.
	return Result{
		Allowed:    false,
		Limit:      limit.MaxAttempts,
		RetryAfter: time.Second,
		Reset:      time.Now().Add(limit.Window),
	}, nil
}

// Breaker is the global distributed-attack ceiling.
type Breaker struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

// AllowGlobal accounts the attempt against the global ceiling and returns
// ErrGloballyThrottled while the breaker cooldown is active. Independent of
// per-identifier accounting.
func (l *Limiter) AllowGlobal(ctx context.Context, cfg Breaker) error {
	if !cfg.Enabled {
		return nil
	}

	cooling, err := l.redis.Exists(ctx, l.breakerCooldownKey()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if cooling > 0 {
		return ErrGloballyThrottled
	}

	count, err := l.redis.Incr(ctx, l.breakerCountKey()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.breakerCountKey(), cfg.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(cfg.Threshold) {
		if err := l.redis.Set(ctx, l.breakerCooldownKey(), "1", cfg.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return ErrGloballyThrottled
	}

	return nil
}

// CooldownActive reports whether the breaker cooldown key is live. Unlike
// [Limiter.AllowGlobal] it never increments the global counter, so
// read-only callers can honor an open breaker without inflating the
// attempt count.
func (l *Limiter) CooldownActive(ctx context.Context) (bool, error) {
	cooling, err := l.redis.Exists(ctx, l.breakerCooldownKey()).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return cooling > 0, nil
}

// BreakerCooldownRemaining reports how long the breaker stays closed, zero
// when it is open.
func (l *Limiter) BreakerCooldownRemaining(ctx context.Context) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, l.breakerCooldownKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// SweepIdle removes window sets whose newest entry is older than its
// retention horizon. Safe to run concurrently with live traffic; Allow
// already prunes inline, this only reclaims keys for identifiers that
// went quiet.
func (l *Limiter) SweepIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	horizon := strconv.FormatInt(time.Now().Add(-olderThan).UnixNano(), 10)

	for {
		keys, next, err := l.redis.Scan(ctx, cursor, l.prefix+":rw:*", 128).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, key := range keys {
			n, err := l.redis.ZRemRangeByScore(ctx, key, "-inf", horizon).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// windowMember builds a unique sorted-set member for one attempt. The
// random suffix keeps simultaneous attempts from collapsing into a single
// entry.
func windowMember(now time.Time) (string, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", err
	}
	return strconv.FormatInt(now.UnixNano(), 10) + "-" + hex.EncodeToString(suffix[:]), nil
}
