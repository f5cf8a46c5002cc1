package authcore

import (
	"context"
	"time"
)

// Principal is the minimal account view the engine needs to authorize a
// request. It carries no credentials; password verification happens in the
// surrounding application before IssueToken is called.
type Principal struct {
	ID     string
	Role   string
	Active bool
}

// PrincipalProvider is the interface callers must implement to integrate
// authcore with their account database. GetPrincipal must return
// [ErrPrincipalNotFound] (wrapped or direct) when the id does not exist,
// and any other error for backend failures. It is called on the token
// verification hot path and should be backed by a cache or an indexed
// lookup.
type PrincipalProvider interface {
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
}

// AuthResult is returned by [Engine.VerifyToken] for tokens that pass all
// checks. It contains the authenticated principal's id and role plus the
// token lifetime bounds.
type AuthResult struct {
	PrincipalID string
	Role        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// RateScope selects which limiter window an attempt is counted against.
type RateScope string

const (
	// ScopeAuthBurst is the short anti-hammering window for credential
	// attempts against a single identifier.
	ScopeAuthBurst RateScope = "auth-burst"
	// ScopeAuthSustained is the long window that catches slow
	// distributed guessing against a single identifier.
	ScopeAuthSustained RateScope = "auth-sustained"
	// ScopeAPI is the general per-client request window.
	ScopeAPI RateScope = "api"
	// ScopePasswordReset limits reset-mail requests per identifier.
	ScopePasswordReset RateScope = "password-reset"
	// ScopeRegistration limits account creation per client address.
	ScopeRegistration RateScope = "registration"
	// ScopeSuspicious is the tight window applied to clients that have
	// already tripped an anomaly.
	ScopeSuspicious RateScope = "suspicious"
)

// RateResult reports the outcome of a limiter check. When Allowed is
// false, RetryAfter is the minimum wait before the next attempt can
// succeed and Scope names the window that rejected.
type RateResult struct {
	Allowed    bool
	Scope      RateScope
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Reset      time.Time
}
