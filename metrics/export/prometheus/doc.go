// Package prometheus provides Prometheus collectors for authcore metrics.
//
// [NewPrometheusExporter] accepts an [authcore.Engine] and exposes an [http.Handler]
// that renders all authcore counters and histograms in Prometheus text exposition format.
// Counter names are prefixed authcore_*_total; the single histogram is
// authcore_verify_latency_seconds. [NewCollector] adapts the same snapshot to a
// [prometheus.Collector] for deployments that scrape a shared registry.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler
//     or register the Collector themselves.
//   - Mutate engine state.
package prometheus
