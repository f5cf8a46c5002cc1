package authcore

import "context"

type clientIPContextKey struct{}
type fingerprintContextKey struct{}
type tenantIDContextKey struct{}

// WithClientIP attaches the caller’s IP address to ctx. The Engine uses it
// to build rate limiter identifiers for API, registration, and breaker
// windows.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithFingerprint attaches an opaque client fingerprint (user agent hash,
// device token) to ctx. When present it is folded into the rate limiter
// identifier so clients behind a shared NAT address do not exhaust each
// other's budgets.
func WithFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, fingerprintContextKey{}, fingerprint)
}

// WithTenantID attaches a tenant identifier to ctx. Rate limiter keys are
// segmented per tenant when it is set.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDContextKey{}, tenantID)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func fingerprintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	fp, _ := ctx.Value(fingerprintContextKey{}).(string)
	return fp
}

func tenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	tenantID, _ := ctx.Value(tenantIDContextKey{}).(string)
	return tenantID
}
