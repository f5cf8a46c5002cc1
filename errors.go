package authcore

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the access-control engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrTokenInvalid is the single error returned for every token
	// rejection. The cause (malformed, expired, bad signature, revoked
	// principal) is recorded server-side only.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrPrincipalNotFound is an exported constant or variable used by the access-control engine.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPrincipalInactive is an exported constant or variable used by the access-control engine.
	ErrPrincipalInactive = errors.New("principal inactive")
	// ErrRateLimited is an exported constant or variable used by the access-control engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrGloballyThrottled is an exported constant or variable used by the access-control engine.
	ErrGloballyThrottled = errors.New("globally throttled")
	// ErrCSRFInvalid is the single error returned for every CSRF token
	// rejection, whether missing, unknown, expired, or mismatched.
	ErrCSRFInvalid = errors.New("csrf token invalid")
	// ErrCSRFRequired is an exported constant or variable used by the access-control engine.
	ErrCSRFRequired = errors.New("csrf token required")
	// ErrBackendUnavailable is an exported constant or variable used by the access-control engine.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
)
