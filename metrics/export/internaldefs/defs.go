package internaldefs

import (
	authcore "github.com/ledgerkeep/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the access-control engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricTokenIssued, Name: "authcore_token_issued_total", Help: "Issued access tokens."},
	{ID: authcore.MetricTokenVerifySuccess, Name: "authcore_token_verify_success_total", Help: "Successful token verifications."},
	{ID: authcore.MetricTokenVerifyMalformed, Name: "authcore_token_verify_malformed_total", Help: "Token verifications rejected as malformed."},
	{ID: authcore.MetricTokenVerifyBadSignature, Name: "authcore_token_verify_bad_signature_total", Help: "Token verifications rejected for a bad signature."},
	{ID: authcore.MetricTokenVerifyExpired, Name: "authcore_token_verify_expired_total", Help: "Token verifications rejected as expired."},
	{ID: authcore.MetricTokenVerifyRevoked, Name: "authcore_token_verify_revoked_total", Help: "Token verifications rejected because the principal is gone or inactive."},
	{ID: authcore.MetricRateAllowed, Name: "authcore_rate_allowed_total", Help: "Rate-limit checks that admitted requests."},
	{ID: authcore.MetricRateLimited, Name: "authcore_rate_limited_total", Help: "Rate-limit checks that denied requests."},
	{ID: authcore.MetricBreakerThrottled, Name: "authcore_breaker_throttled_total", Help: "Requests rejected by the global breaker."},
	{ID: authcore.MetricCSRFIssued, Name: "authcore_csrf_issued_total", Help: "Issued anti-forgery tokens."},
	{ID: authcore.MetricCSRFValidated, Name: "authcore_csrf_validated_total", Help: "Successful anti-forgery validations."},
	{ID: authcore.MetricCSRFRejected, Name: "authcore_csrf_rejected_total", Help: "Rejected anti-forgery validations."},
	{ID: authcore.MetricSecretFallback, Name: "authcore_secret_fallback_total", Help: "Tokens signed while running on the degraded fallback secret."},
	{ID: authcore.MetricErrorRecords, Name: "authcore_error_records_total", Help: "Error records produced by the redaction handler."},
	{ID: authcore.MetricSweepRuns, Name: "authcore_sweep_runs_total", Help: "Completed background sweep runs."},
}

// HistogramDefs is an exported constant or variable used by the access-control engine.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "Token verification latency histogram."},
}

// BucketCount is the fixed number of latency buckets core snapshots carry.
const BucketCount = 8

// HistogramBounds is an exported constant or variable used by the access-control engine.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
