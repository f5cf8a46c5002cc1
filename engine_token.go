package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerkeep/authcore/token"
)

// IssueToken signs a session token for the given principal. The caller is
// responsible for having verified credentials first; this method only
// refuses principals that do not exist or are deactivated. A ttl <= 0
// uses [TokenConfig.DefaultTTL].
func (e *Engine) IssueToken(ctx context.Context, principalID string, ttl time.Duration) (string, error) {
	if e == nil || e.tokens == nil || e.principals == nil {
		return "", ErrEngineNotReady
	}

	principal, err := e.principals.GetPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return "", ErrPrincipalNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if principal == nil {
		return "", ErrPrincipalNotFound
	}
	if !principal.Active {
		return "", ErrPrincipalInactive
	}

	signed, err := e.tokens.Issue(ctx, principal.ID, principal.Role, ttl)
	if err != nil {
		if errors.Is(err, token.ErrSecretUnavailable) {
			return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return "", err
	}

	e.metricInc(MetricTokenIssued)
	if e.secrets != nil && e.secrets.Degraded() {
		e.metricInc(MetricSecretFallback)
	}
	return signed, nil
}

// VerifyToken runs the full verification chain: structural and signature
// checks, expiry with leeway, and a live principal status re-check. Every
// rejection surfaces as [ErrTokenInvalid]; the specific cause goes to the
// log and metrics only, so callers cannot be used as a verification
// oracle. A principal store failure is the one distinct outcome and
// returns [ErrBackendUnavailable].
func (e *Engine) VerifyToken(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.tokens == nil || e.principals == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}()
	}

	claims, err := e.tokens.Parse(ctx, tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			e.metricInc(MetricTokenVerifyExpired)
		case errors.Is(err, token.ErrBadSignature):
			e.metricInc(MetricTokenVerifyBadSignature)
		case errors.Is(err, token.ErrSecretUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		default:
			e.metricInc(MetricTokenVerifyMalformed)
		}
		e.logger.Debug().Err(err).Msg("token rejected")
		return nil, ErrTokenInvalid
	}

	principal, err := e.principals.GetPrincipal(ctx, claims.SubjectID())
	if err != nil && !errors.Is(err, ErrPrincipalNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err != nil || principal == nil || !principal.Active {
		e.metricInc(MetricTokenVerifyRevoked)
		e.logger.Debug().Str("principal_id", claims.SubjectID()).Msg("token rejected: principal revoked")
		return nil, ErrTokenInvalid
	}

	result := &AuthResult{
		PrincipalID: principal.ID,
		Role:        principal.Role,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	e.metricInc(MetricTokenVerifySuccess)
	return result, nil
}
