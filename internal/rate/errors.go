package rate

import "errors"

var (
	// ErrGloballyThrottled reports that the distributed-attack breaker is
	// in its cooldown period and all traffic is refused.
	ErrGloballyThrottled = errors.New("globally throttled")
	// ErrRedisUnavailable reports an unreachable counter store.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
