package middleware

import (
	"errors"
	"net/http"

	authcore "github.com/ledgerkeep/authcore"
	"github.com/ledgerkeep/authcore/apierror"
)

// CSRFHeader is the request header carrying the anti-forgery token.
const CSRFHeader = "X-CSRF-Token"

// CSRFCookie is the cookie read by the double-submit fallback.
const CSRFCookie = "csrf_token"

// csrfFormField is the form fallback for non-AJAX submissions.
const csrfFormField = "csrf_token"

// SessionIDFunc extracts the server session id from a request, or ""
// when the request has no session yet.
type SessionIDFunc func(*http.Request) string

func presentedCSRF(r *http.Request) string {
	if v := r.Header.Get(CSRFHeader); v != "" {
		return v
	}
	return r.PostFormValue(csrfFormField)
}

// CSRF returns middleware that verifies anti-forgery tokens on
// state-changing methods. Safe methods (GET, HEAD, OPTIONS, TRACE) pass
// through untouched. Requests with a session validate and consume the
// stored token; sessionless requests fall back to the cookie/header
// double-submit comparison. Rejections answer 403 with the stable CSRF
// codes.
func CSRF(engine *authcore.Engine, sessionID SessionIDFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			presented := presentedCSRF(r)

			var err error
			if sid := sessionID(r); sid != "" {
				err = engine.ValidateCSRF(r.Context(), sid, presented, true)
			} else {
				cookieValue := ""
				if c, cookieErr := r.Cookie(CSRFCookie); cookieErr == nil {
					cookieValue = c.Value
				}
				err = engine.ValidateDoubleSubmit(cookieValue, presented)
			}

			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, authcore.ErrCSRFRequired):
				engine.HandleErrorWithCode(r.Context(), apierror.CodeCSRFRequired, err, requestFields(r)).WriteJSON(w)
			case errors.Is(err, authcore.ErrCSRFInvalid):
				engine.HandleErrorWithCode(r.Context(), apierror.CodeCSRFInvalid, err, requestFields(r)).WriteJSON(w)
			case errors.Is(err, authcore.ErrBackendUnavailable):
				engine.HandleErrorWithCode(r.Context(), apierror.CodeDatabase, err, requestFields(r)).WriteJSON(w)
			default:
				engine.HandleErrorWithCode(r.Context(), apierror.CodeSecurityAnomaly, err, requestFields(r)).WriteJSON(w)
			}
		})
	}
}
