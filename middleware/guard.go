package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	authcore "github.com/ledgerkeep/authcore"
	"github.com/ledgerkeep/authcore/apierror"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the verification result injected by
// [Guard], or false when the request did not pass through it.
func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// Guard returns middleware that requires a valid bearer token. The
// verified [authcore.AuthResult] is placed on the request context for
// downstream handlers. Missing and invalid tokens both produce the same
// 401 envelope.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				engine.HandleErrorWithCode(r.Context(), apierror.CodeInvalidToken,
					authcore.ErrTokenInvalid, requestFields(r)).WriteJSON(w)
				return
			}

			res, err := engine.VerifyToken(r.Context(), tokenStr)
			if err != nil {
				code := apierror.CodeInvalidToken
				if errors.Is(err, authcore.ErrBackendUnavailable) {
					code = apierror.CodeDatabase
				}
				engine.HandleErrorWithCode(r.Context(), code, err, requestFields(r)).WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientIP resolves the originating address, preferring the first
// X-Forwarded-For hop when present. Deployments that do not sit behind a
// trusted proxy should strip that header upstream.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestFields(r *http.Request) map[string]string {
	return map[string]string{
		"method": r.Method,
		"route":  r.URL.Path,
		"ip":     ClientIP(r),
	}
}

// WithRequestContext attaches the client IP and fingerprint from the
// request to its context so engine rate limiting can build composite
// identifiers. Install it outermost.
func WithRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authcore.WithClientIP(r.Context(), ClientIP(r))
		if ua := r.Header.Get("User-Agent"); ua != "" {
			ctx = authcore.WithFingerprint(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
