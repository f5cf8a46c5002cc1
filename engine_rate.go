package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerkeep/authcore/internal"
	"github.com/ledgerkeep/authcore/internal/rate"
)

func (e *Engine) rateIdentifier(ctx context.Context, explicit string) string {
	id := explicit
	if id == "" {
		id = internal.CompositeIdentifier(clientIPFromContext(ctx), fingerprintFromContext(ctx))
	}
	if tenant := tenantIDFromContext(ctx); tenant != "" {
		id = tenant + ":" + id
	}
	return id
}

func (e *Engine) breakerConfig() rate.Breaker {
	b := e.config.RateLimit.Breaker
	return rate.Breaker{
		Enabled:   b.Enabled,
		Threshold: b.Threshold,
		Window:    b.Window,
		Cooldown:  b.Cooldown,
	}
}

func toRateResult(scope RateScope, r rate.Result) RateResult {
	return RateResult{
		Allowed:    r.Allowed,
		Scope:      scope,
		Limit:      r.Limit,
		Remaining:  r.Remaining,
		RetryAfter: r.RetryAfter,
		Reset:      r.Reset,
	}
}

func (e *Engine) allowScope(ctx context.Context, scope RateScope, identifier string, limit WindowConfig) (RateResult, error) {
	r, err := e.limiter.Allow(ctx, rate.Scope(scope), identifier, rate.Limit{
		MaxAttempts: limit.MaxAttempts,
		Window:      limit.Window,
	})
	if err != nil {
		return RateResult{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !r.Allowed {
		e.metricInc(MetricRateLimited)
		return toRateResult(scope, r), ErrRateLimited
	}
	return toRateResult(scope, r), nil
}

func (e *Engine) allowGlobal(ctx context.Context) error {
	cfg := e.breakerConfig()
	if !cfg.Enabled {
		return nil
	}
	err := e.limiter.AllowGlobal(ctx, cfg)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrGloballyThrottled) {
		e.metricInc(MetricBreakerThrottled)
		e.logger.Warn().Msg("global breaker throttling authentication traffic")
		return ErrGloballyThrottled
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// globalCooldown rejects while the breaker cooldown is live without
// charging the global counter. General traffic must respect an open
// breaker but must not keep it open by itself.
func (e *Engine) globalCooldown(ctx context.Context) error {
	if !e.config.RateLimit.Breaker.Enabled {
		return nil
	}
	cooling, err := e.limiter.CooldownActive(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if cooling {
		e.metricInc(MetricBreakerThrottled)
		return ErrGloballyThrottled
	}
	return nil
}

// AllowAuth charges one credential attempt against the burst and
// sustained windows for identifier (usually the login name, lowercased by
// the caller) and against the global breaker. The first window to reject
// wins; its result carries the wait hint. [ErrGloballyThrottled] is
// returned when the breaker is open.
func (e *Engine) AllowAuth(ctx context.Context, identifier string) (RateResult, error) {
	if e == nil || e.limiter == nil {
		return RateResult{}, ErrEngineNotReady
	}

	if err := e.allowGlobal(ctx); err != nil {
		return RateResult{}, err
	}

	id := e.rateIdentifier(ctx, identifier)

	result, err := e.allowScope(ctx, ScopeAuthBurst, id, e.config.RateLimit.AuthBurst)
	if err != nil {
		return result, err
	}
	result, err = e.allowScope(ctx, ScopeAuthSustained, id, e.config.RateLimit.AuthSustained)
	if err != nil {
		return result, err
	}

	e.metricInc(MetricRateAllowed)
	return result, nil
}

// AllowAPI charges one request against the general per-client window. The
// identifier is derived from the context client IP and fingerprint. An
// open breaker cooldown rejects API traffic too, but API requests never
// count toward the breaker ceiling.
func (e *Engine) AllowAPI(ctx context.Context) (RateResult, error) {
	if e == nil || e.limiter == nil {
		return RateResult{}, ErrEngineNotReady
	}

	if err := e.globalCooldown(ctx); err != nil {
		return RateResult{}, err
	}

	result, err := e.allowScope(ctx, ScopeAPI, e.rateIdentifier(ctx, ""), e.config.RateLimit.API)
	if err != nil {
		return result, err
	}

	e.metricInc(MetricRateAllowed)
	return result, nil
}

// AllowPasswordReset charges one reset request for identifier (the target
// account identifier, not the requester). The breaker applies because
// reset endpoints are a common probe target.
func (e *Engine) AllowPasswordReset(ctx context.Context, identifier string) (RateResult, error) {
	if e == nil || e.limiter == nil {
		return RateResult{}, ErrEngineNotReady
	}

	if err := e.allowGlobal(ctx); err != nil {
		return RateResult{}, err
	}

	result, err := e.allowScope(ctx, ScopePasswordReset, e.rateIdentifier(ctx, identifier), e.config.RateLimit.PasswordReset)
	if err != nil {
		return result, err
	}

	e.metricInc(MetricRateAllowed)
	return result, nil
}

// AllowRegistration charges one account-creation attempt against the
// client address window and the global breaker.
func (e *Engine) AllowRegistration(ctx context.Context) (RateResult, error) {
	if e == nil || e.limiter == nil {
		return RateResult{}, ErrEngineNotReady
	}

	if err := e.allowGlobal(ctx); err != nil {
		return RateResult{}, err
	}

	result, err := e.allowScope(ctx, ScopeRegistration, e.rateIdentifier(ctx, ""), e.config.RateLimit.Registration)
	if err != nil {
		return result, err
	}

	e.metricInc(MetricRateAllowed)
	return result, nil
}

// AllowSuspicious charges one attempt against the tight window reserved
// for identifiers that already tripped an anomaly. Callers switch to this
// scope after recording a security event for the client.
func (e *Engine) AllowSuspicious(ctx context.Context, identifier string) (RateResult, error) {
	if e == nil || e.limiter == nil {
		return RateResult{}, ErrEngineNotReady
	}

	if err := e.allowGlobal(ctx); err != nil {
		return RateResult{}, err
	}

	result, err := e.allowScope(ctx, ScopeSuspicious, e.rateIdentifier(ctx, identifier), e.config.RateLimit.Suspicious)
	if err != nil {
		return result, err
	}

	e.metricInc(MetricRateAllowed)
	return result, nil
}

// BreakerCooldownRemaining reports how long the global breaker stays open,
// or zero when it is closed.
func (e *Engine) BreakerCooldownRemaining(ctx context.Context) (time.Duration, error) {
	if e == nil || e.limiter == nil {
		return 0, ErrEngineNotReady
	}
	remaining, err := e.limiter.BreakerCooldownRemaining(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return remaining, nil
}
