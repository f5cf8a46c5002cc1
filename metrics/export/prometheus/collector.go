package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ledgerkeep/authcore/metrics/export/internaldefs"
)

// Collector adapts an authcore metrics source to a
// [prometheus.Collector] so it can be registered on a shared registry
// next to process and runtime collectors.
type Collector struct {
	source       metricsSource
	counterDescs []*prometheus.Desc
	histDescs    []*prometheus.Desc
	droppedDesc  *prometheus.Desc
	bounds       []float64
}

// NewCollector creates a collector that reads from the given source on
// every scrape. Register it with [prometheus.MustRegister].
func NewCollector(source metricsSource) *Collector {
	c := &Collector{
		source: source,
		droppedDesc: prometheus.NewDesc(
			"authcore_error_records_dropped_total",
			"Dropped error records due to handler backpressure.",
			nil, nil,
		),
	}

	for _, def := range internaldefs.CounterDefs {
		c.counterDescs = append(c.counterDescs, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histDescs = append(c.histDescs, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}

	// The final "+Inf" bound is implicit in the histogram count.
	for _, raw := range internaldefs.HistogramBounds[:len(internaldefs.HistogramBounds)-1] {
		bound, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		c.bounds = append(c.bounds, bound)
	}

	return c
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counterDescs {
		ch <- d
	}
	for _, d := range c.histDescs {
		ch <- d
	}
	ch <- c.droppedDesc
}

// Collect implements [prometheus.Collector].
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(
			c.counterDescs[i],
			prometheus.CounterValue,
			float64(snapshot.Counters[def.ID]),
		)
	}

	for i, def := range internaldefs.HistogramDefs {
		nonCumulative := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(nonCumulative)

		buckets := make(map[float64]uint64, len(c.bounds))
		for j, bound := range c.bounds {
			buckets[bound] = cumulative[j]
		}
		count := cumulative[len(cumulative)-1]

		// Sum is not available in core snapshots.
		ch <- prometheus.MustNewConstHistogram(c.histDescs[i], count, 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(
		c.droppedDesc,
		prometheus.CounterValue,
		float64(c.source.ErrorRecordsDropped()),
	)
}
