package authcore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ledgerkeep/authcore/apierror"
	"github.com/ledgerkeep/authcore/internal/rate"
	"github.com/ledgerkeep/authcore/internal/stores"
	"github.com/ledgerkeep/authcore/secret"
	"github.com/ledgerkeep/authcore/token"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	tokens      *token.Manager
	secrets     *secret.Provider
	limiter     *rate.Limiter
	csrfStore   *stores.CSRFStore
	principals  PrincipalProvider
	errors      *apierror.Handler
	recordStore *apierror.SQLRecordStore
	metrics     *Metrics
	logger      zerolog.Logger

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// Close stops the background sweeper if one is running and drains the
// error record dispatcher. The engine must not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.StopSweeper()
	if e.errors != nil {
		e.errors.Close()
	}
}

// Errors exposes the engine's error handler for HTTP layers that need to
// render failure envelopes with the same correlation ids and record sink.
func (e *Engine) Errors() *apierror.Handler {
	if e == nil {
		return nil
	}
	return e.errors
}

// HandleError classifies err into a client-safe envelope and records the
// unredacted detail server-side. HTTP layers should prefer this over
// calling the handler directly so error volume shows up in metrics.
func (e *Engine) HandleError(ctx context.Context, err error, fields map[string]string) *apierror.APIError {
	if e == nil || e.errors == nil {
		return nil
	}
	e.metricInc(MetricErrorRecords)
	return e.errors.Handle(ctx, err, fields)
}

// HandleErrorWithCode is [Engine.HandleError] for callers that already
// know the classification, such as middleware translating engine
// sentinels.
func (e *Engine) HandleErrorWithCode(ctx context.Context, code apierror.Code, err error, fields map[string]string) *apierror.APIError {
	if e == nil || e.errors == nil {
		return nil
	}
	e.metricInc(MetricErrorRecords)
	return e.errors.HandleWithCode(ctx, code, err, fields)
}

// SecretDegraded reports whether token signing is running on the
// deterministic fallback secret because the settings store is unreachable.
func (e *Engine) SecretDegraded() bool {
	if e == nil || e.secrets == nil {
		return false
	}
	return e.secrets.Degraded()
}

// ErrorRecordsDropped describes the errorrecordsdropped operation and its observable behavior.
//
// ErrorRecordsDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ErrorRecordsDropped() uint64 {
	if e == nil || e.errors == nil {
		return 0
	}
	return e.errors.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
