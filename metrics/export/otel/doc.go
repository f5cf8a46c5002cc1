// Package otel provides OpenTelemetry metric exporter bindings for authcore counters and
// histograms.
//
// [NewOTelExporter] registers an Int64ObservableCounter per authcore counter
// and, per histogram, one bucket gauge whose points carry le bound attributes
// plus a sample-count gauge. A single callback reads
// [authcore.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
