package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "actest"), mr
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{MaxAttempts: 5, Window: 900 * time.Second}

	for i := 1; i <= 5; i++ {
		res, err := l.Allow(ctx, ScopeAuthBurst, "203.0.113.7", limit)
		if err != nil {
			t.Fatalf("Allow #%d failed: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d unexpectedly rejected", i)
		}
		if res.Limit != 5 {
			t.Fatalf("expected limit 5, got %d", res.Limit)
		}
		if res.Remaining != 5-i {
			t.Fatalf("attempt %d: expected remaining %d, got %d", i, 5-i, res.Remaining)
		}
	}

	res, err := l.Allow(ctx, ScopeAuthBurst, "203.0.113.7", limit)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if res.Allowed {
		t.Fatal("6th attempt within window should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", res.RetryAfter)
	}
	if res.RetryAfter > 900*time.Second {
		t.Fatalf("RetryAfter exceeds window: %v", res.RetryAfter)
	}
}

func TestAllowAfterWindowElapses(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{MaxAttempts: 2, Window: 150 * time.Millisecond}

	for i := 0; i < 2; i++ {
		if res, err := l.Allow(ctx, ScopeAPI, "u-9", limit); err != nil || !res.Allowed {
			t.Fatalf("warm-up attempt failed: allowed=%v err=%v", res.Allowed, err)
		}
	}
	if res, err := l.Allow(ctx, ScopeAPI, "u-9", limit); err != nil || res.Allowed {
		t.Fatalf("expected rejection inside window: allowed=%v err=%v", res.Allowed, err)
	}

	time.Sleep(200 * time.Millisecond)

	res, err := l.Allow(ctx, ScopeAPI, "u-9", limit)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expected attempt to pass after window elapsed")
	}
}

func TestScopesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	burst := Limit{MaxAttempts: 2, Window: time.Minute}
	sustained := Limit{MaxAttempts: 10, Window: time.Hour}

	for i := 0; i < 2; i++ {
		if res, err := l.Allow(ctx, ScopeAuthBurst, "id-1", burst); err != nil || !res.Allowed {
			t.Fatalf("burst warm-up failed: allowed=%v err=%v", res.Allowed, err)
		}
		if res, err := l.Allow(ctx, ScopeAuthSustained, "id-1", sustained); err != nil || !res.Allowed {
			t.Fatalf("sustained warm-up failed: allowed=%v err=%v", res.Allowed, err)
		}
	}

	// Burst is exhausted; sustained still has capacity.
	if res, _ := l.Allow(ctx, ScopeAuthBurst, "id-1", burst); res.Allowed {
		t.Fatal("expected burst scope exhausted")
	}
	if res, err := l.Allow(ctx, ScopeAuthSustained, "id-1", sustained); err != nil || !res.Allowed {
		t.Fatalf("sustained scope should still allow: allowed=%v err=%v", res.Allowed, err)
	}
}

func TestIdentifiersAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{MaxAttempts: 1, Window: time.Minute}

	if res, _ := l.Allow(ctx, ScopeRegistration, "ip-a", limit); !res.Allowed {
		t.Fatal("first identifier rejected")
	}
	if res, _ := l.Allow(ctx, ScopeRegistration, "ip-a", limit); res.Allowed {
		t.Fatal("first identifier should be exhausted")
	}
	if res, _ := l.Allow(ctx, ScopeRegistration, "ip-b", limit); !res.Allowed {
		t.Fatal("second identifier must not share the first's window")
	}
}

func TestConcurrentAllowNeverOverruns(t *testing.T) {
	l, _ := newTestLimiter(t)
	limit := Limit{MaxAttempts: 5, Window: time.Minute}

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(context.Background(), ScopeAuthBurst, "contended", limit)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got > 5 {
		t.Fatalf("budget overrun under concurrency: %d allowed with max 5", got)
	}
}

func TestBreakerTripsAndCoolsDown(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	cfg := Breaker{Enabled: true, Threshold: 3, Window: time.Minute, Cooldown: time.Minute}

	for i := 1; i <= 3; i++ {
		if err := l.AllowGlobal(ctx, cfg); err != nil {
			t.Fatalf("attempt %d should pass: %v", i, err)
		}
	}

	if err := l.AllowGlobal(ctx, cfg); !errors.Is(err, ErrGloballyThrottled) {
		t.Fatalf("expected breaker trip, got %v", err)
	}
	// While cooling down, everything is refused without further accounting.
	if err := l.AllowGlobal(ctx, cfg); !errors.Is(err, ErrGloballyThrottled) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}

	remaining, err := l.BreakerCooldownRemaining(ctx)
	if err != nil {
		t.Fatalf("BreakerCooldownRemaining failed: %v", err)
	}
	if remaining <= 0 {
		t.Fatalf("expected positive cooldown, got %v", remaining)
	}
}

func TestBreakerDisabled(t *testing.T) {
	l, _ := newTestLimiter(t)

	for i := 0; i < 100; i++ {
		if err := l.AllowGlobal(context.Background(), Breaker{}); err != nil {
			t.Fatalf("disabled breaker must never reject: %v", err)
		}
	}
}

func TestSweepIdleRemovesStaleEntries(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{MaxAttempts: 10, Window: 50 * time.Millisecond}

	for i := 0; i < 3; i++ {
		if _, err := l.Allow(ctx, ScopeAPI, "sweep-me", limit); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	time.Sleep(80 * time.Millisecond)

	removed, err := l.SweepIdle(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("SweepIdle failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 stale entries removed, got %d", removed)
	}
}
