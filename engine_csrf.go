package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerkeep/authcore/internal"
	"github.com/ledgerkeep/authcore/internal/stores"
)

// IssueCSRF mints a fresh anti-forgery token bound to sessionID and
// returns the value to embed in the page. Issuing again for the same
// session replaces the outstanding token. Only the SHA-256 hash is
// persisted.
func (e *Engine) IssueCSRF(ctx context.Context, sessionID string) (string, error) {
	if e == nil || e.csrfStore == nil {
		return "", ErrEngineNotReady
	}
	if sessionID == "" {
		return "", ErrCSRFRequired
	}

	value, err := internal.NewCSRFValue()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &stores.CSRFRecord{
		ValueHash: internal.HashCSRFValue(value),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(e.config.CSRF.TokenTTL).Unix(),
	}

	if err := e.csrfStore.Save(ctx, sessionID, record, e.config.CSRF.TokenTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.metricInc(MetricCSRFIssued)
	return value, nil
}

// ValidateCSRF checks the presented token against the session's stored
// record. With consume set, a match burns the token atomically so replays
// of the same form fail. Missing, unknown, expired, and mismatched tokens
// all surface as [ErrCSRFInvalid]; an empty presented value surfaces as
// [ErrCSRFRequired].
func (e *Engine) ValidateCSRF(ctx context.Context, sessionID, presented string, consume bool) error {
	if e == nil || e.csrfStore == nil {
		return ErrEngineNotReady
	}
	if presented == "" {
		e.metricInc(MetricCSRFRejected)
		return ErrCSRFRequired
	}
	if sessionID == "" {
		e.metricInc(MetricCSRFRejected)
		return ErrCSRFInvalid
	}

	hash := internal.HashCSRFValue(presented)

	var err error
	if consume {
		err = e.csrfStore.Consume(ctx, sessionID, hash)
	} else {
		err = e.csrfStore.Peek(ctx, sessionID, hash)
	}

	switch {
	case err == nil:
		e.metricInc(MetricCSRFValidated)
		return nil
	case errors.Is(err, stores.ErrCSRFNotFound), errors.Is(err, stores.ErrCSRFMismatch):
		e.metricInc(MetricCSRFRejected)
		e.logger.Debug().Str("session_id", sessionID).Err(err).Msg("csrf token rejected")
		return ErrCSRFInvalid
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

// ValidateDoubleSubmit compares the cookie and header copies of a
// stateless anti-forgery token in constant time. It is the fallback for
// endpoints that run before a server session exists.
func (e *Engine) ValidateDoubleSubmit(cookieValue, headerValue string) error {
	if cookieValue == "" || headerValue == "" {
		return ErrCSRFRequired
	}
	if len(cookieValue) < 20 {
		return ErrCSRFInvalid
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(headerValue)) != 1 {
		return ErrCSRFInvalid
	}
	return nil
}
