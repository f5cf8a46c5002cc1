package apierror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	mathrand "math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ledgerkeep/authcore/internal/rate"
	"github.com/ledgerkeep/authcore/internal/stores"
	"github.com/ledgerkeep/authcore/secret"
	"github.com/ledgerkeep/authcore/token"
	"github.com/ledgerkeep/authcore/validate"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// newCorrelationID returns a lexicographically sortable id linking the
// client response to its server-side record.
func newCorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// APIError is the client-facing shape of a handled failure.
type APIError struct {
	Code          Code
	Message       string
	CorrelationID string
	Timestamp     time.Time
	Data          map[string]any
}

func (e *APIError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// envelope is the uniform wire format. Raw detail never appears here.
type envelope struct {
	Success bool          `json:"success"`
	Error   envelopeError `json:"error"`
}

type envelopeError struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// WriteJSON emits the uniform error envelope with the code's HTTP status.
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	data["correlation_id"] = e.CorrelationID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error: envelopeError{
			Code:      e.Code,
			Message:   e.Message,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Data:      data,
		},
	})
}

// Classify maps an error to its taxonomy code. Token failures of every
// flavor collapse to INVALID_TOKEN; store outages of any backend are
// DATABASE_ERROR; anything unrecognized is INTERNAL_ERROR.
func Classify(err error) Code {
	var fieldErrs validate.FieldErrors

	switch {
	case err == nil:
		return CodeInternal
	case errors.As(err, &fieldErrs):
		return CodeValidation
	case errors.Is(err, rate.ErrGloballyThrottled):
		return CodeSecurityAnomaly
	case errors.Is(err, stores.ErrCSRFNotFound), errors.Is(err, stores.ErrCSRFMismatch):
		return CodeCSRFInvalid
	case errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrExpired):
		return CodeInvalidToken
	case errors.Is(err, token.ErrSecretUnavailable),
		errors.Is(err, secret.ErrStoreUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, stores.ErrCSRFRedisUnavailable),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded):
		return CodeDatabase
	default:
		return CodeInternal
	}
}

// Handler turns failures into redacted client responses plus full
// server-side records.
type Handler struct {
	logger     zerolog.Logger
	dispatcher *Dispatcher
	instanceID string
}

// NewHandler wires the handler to a record sink. buffer sizes the async
// dispatch queue; when dropIfFull is set, records are dropped (and
// counted) rather than blocking request handling when it fills.
func NewHandler(logger zerolog.Logger, sink Sink, buffer int, dropIfFull bool) *Handler {
	return &Handler{
		logger:     logger,
		dispatcher: NewDispatcher(sink, buffer, dropIfFull),
		instanceID: uuid.NewString(),
	}
}

// Handle classifies err and produces the client-facing [APIError]. The
// unredacted error goes to the server log and the record sink only.
func (h *Handler) Handle(ctx context.Context, err error, fields map[string]string) *APIError {
	return h.HandleWithCode(ctx, Classify(err), err, fields)
}

// HandleWithCode is for callers that already know the classification,
// such as middleware translating engine sentinels.
func (h *Handler) HandleWithCode(ctx context.Context, code Code, err error, fields map[string]string) *APIError {
	now := time.Now()
	correlationID := newCorrelationID()

	rawDetail := ""
	if err != nil {
		rawDetail = err.Error()
	}

	apiErr := &APIError{
		Code:          code,
		Message:       code.clientMessage(),
		CorrelationID: correlationID,
		Timestamp:     now,
	}

	// Validation failures are client-fixable and safe verbatim; everything
	// else keeps the fixed per-code message.
	var fieldErrs validate.FieldErrors
	if code == CodeValidation && errors.As(err, &fieldErrs) {
		apiErr.Data = map[string]any{"fields": fieldErrs.ByField()}
	}

	event := h.logger.Error()
	if code == CodeValidation || code == CodeRateLimited {
		event = h.logger.Warn()
	}
	event.
		Str("correlation_id", correlationID).
		Str("code", string(code)).
		Err(err)
	for k, v := range fields {
		event = event.Str(k, v)
	}
	event.Msg("request failed")

	recordCtx := map[string]string{"instance": h.instanceID}
	for k, v := range fields {
		recordCtx[k] = v
	}

	h.dispatcher.Emit(ctx, Record{
		CorrelationID:   correlationID,
		Timestamp:       now,
		Classification:  code,
		RedactedMessage: Redact(rawDetail),
		RawDetail:       rawDetail,
		Context:         recordCtx,
	})

	return apiErr
}

// Dropped reports records discarded under dispatcher backpressure.
func (h *Handler) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return h.dispatcher.Dropped()
}

// Close drains the dispatcher.
func (h *Handler) Close() {
	if h == nil {
		return
	}
	h.dispatcher.Close()
}
