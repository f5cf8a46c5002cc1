package apierror

import "net/http"

// Code is one of the stable, client-visible error classifications.
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeAuthFailed      Code = "AUTH_FAILED"
	CodeInvalidToken    Code = "INVALID_TOKEN"
	CodeCSRFInvalid     Code = "CSRF_TOKEN_INVALID"
	CodeCSRFRequired    Code = "CSRF_TOKEN_REQUIRED"
	CodeRateLimited     Code = "RATE_LIMIT_EXCEEDED"
	CodeSecurityAnomaly Code = "SECURITY_ANOMALY"
	CodeDatabase        Code = "DATABASE_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// HTTPStatus maps the code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthFailed, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeCSRFInvalid, CodeCSRFRequired:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeSecurityAnomaly:
		return http.StatusServiceUnavailable
	case CodeDatabase, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the fixed, non-sensitive message per code. Validation
// and rate-limit responses may carry additional safe detail in Data;
// everything else is normalized so failure causes cannot be probed.
func (c Code) clientMessage() string {
	switch c {
	case CodeValidation:
		return "one or more fields failed validation"
	case CodeAuthFailed:
		return "authentication failed"
	case CodeInvalidToken:
		return "authentication failed"
	case CodeCSRFInvalid:
		return "request could not be verified"
	case CodeCSRFRequired:
		return "request verification token is required"
	case CodeRateLimited:
		return "too many requests, retry later"
	case CodeSecurityAnomaly:
		return "service temporarily unavailable"
	case CodeDatabase, CodeInternal:
		return "an internal error occurred"
	default:
		return "an internal error occurred"
	}
}
