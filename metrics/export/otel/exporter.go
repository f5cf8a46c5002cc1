package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	authcore "github.com/ledgerkeep/authcore"
	"github.com/ledgerkeep/authcore/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	ErrorRecordsDropped() uint64
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram reports every cumulative bucket through one gauge,
// distinguishing bounds with an "le" attribute the way the OTLP histogram
// point encodes them. The bound attribute sets are built once at
// registration so the collect callback allocates nothing per bucket.
type observedHistogram struct {
	id        authcore.MetricID
	buckets   metric.Int64ObservableGauge
	count     metric.Int64ObservableGauge
	boundAttr [internaldefs.BucketCount]metric.ObserveOption
}

type OTelExporter struct {
	source         metricsSource
	registration   metric.Registration
	counters       []observedCounter
	histograms     []observedHistogram
	recordsDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *authcore.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*2+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}

		buckets, err := meter.Int64ObservableGauge(
			def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count at or below the le bound."),
		)
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", def.Name, err)
		}
		h.buckets = buckets
		observables = append(observables, buckets)

		count, err := meter.Int64ObservableGauge(
			def.Name+"_count",
			metric.WithDescription("Histogram total sample count."),
		)
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
		}
		h.count = count
		observables = append(observables, count)

		for i, bound := range internaldefs.HistogramBounds {
			h.boundAttr[i] = metric.WithAttributes(attribute.String("le", bound))
		}

		exporter.histograms = append(exporter.histograms, h)
	}

	recordsDropped, err := meter.Int64ObservableCounter(
		"authcore_error_records_dropped_total",
		metric.WithDescription("Dropped error records due to handler backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create records dropped counter: %w", err)
	}
	exporter.recordsDropped = recordsDropped
	observables = append(observables, recordsDropped)

	registration, err := meter.RegisterCallback(exporter.collect, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) collect(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, v := range cumulative {
			observer.ObserveInt64(h.buckets, int64(v), h.boundAttr[i])
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	observer.ObserveInt64(e.recordsDropped, int64(e.source.ErrorRecordsDropped()))
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
