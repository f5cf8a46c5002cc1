package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	xrate "golang.org/x/time/rate"

	authcore "github.com/ledgerkeep/authcore"
	"github.com/ledgerkeep/authcore/apierror"
)

func writeRateHeaders(w http.ResponseWriter, result authcore.RateResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.Reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// RateLimit returns middleware that charges each request against the
// engine's per-client API window. Accepted requests carry informational
// X-RateLimit-* headers; rejections answer 429 with a Retry-After hint.
// A limiter backend failure fails closed.
func RateLimit(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := engine.AllowAPI(r.Context())
			switch {
			case err == nil:
				writeRateHeaders(w, result)
				next.ServeHTTP(w, r)
			case errors.Is(err, authcore.ErrRateLimited):
				writeRateHeaders(w, result)
				w.Header().Set("Retry-After", retryAfterSeconds(result.RetryAfter))
				engine.HandleErrorWithCode(r.Context(), apierror.CodeRateLimited, err, requestFields(r)).WriteJSON(w)
			case errors.Is(err, authcore.ErrBackendUnavailable):
				engine.HandleErrorWithCode(r.Context(), apierror.CodeDatabase, err, requestFields(r)).WriteJSON(w)
			default:
				engine.HandleErrorWithCode(r.Context(), apierror.CodeSecurityAnomaly, err, requestFields(r)).WriteJSON(w)
			}
		})
	}
}

// Smooth returns middleware that applies an in-process token bucket in
// front of the Redis-backed limiter, shedding floods before they cost a
// network round-trip. rps and burst size the bucket per process, so the
// effective ceiling scales with instance count; the engine windows remain
// the authoritative cross-instance budget.
func Smooth(engine *authcore.Engine, rps float64, burst int) func(http.Handler) http.Handler {
	limiter := xrate.NewLimiter(xrate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				engine.HandleErrorWithCode(r.Context(), apierror.CodeRateLimited,
					authcore.ErrRateLimited, requestFields(r)).WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
