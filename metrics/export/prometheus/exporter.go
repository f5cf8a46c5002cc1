package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	authcore "github.com/ledgerkeep/authcore"
	"github.com/ledgerkeep/authcore/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	ErrorRecordsDropped() uint64
}

// PrometheusExporter renders authcore metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [authcore.Engine].
func NewPrometheusExporter(engine *authcore.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from a
// custom [MetricsSource].
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// family is one metric family ready for exposition: HELP and TYPE lines
// followed by its samples in definition order.
type family struct {
	name    string
	kind    string
	help    string
	samples []sample
}

// sample is one exposition line within a family. suffix distinguishes
// histogram series (_bucket, _count, _sum); label carries the le bound.
type sample struct {
	suffix string
	label  string
	value  uint64
}

// Render writes the current metrics in Prometheus text exposition format.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.ErrorRecordsDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	families := make([]family, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)+1)
	for _, def := range internaldefs.CounterDefs {
		families = append(families, counterFamily(def.Name, def.Help, snapshot.Counters[def.ID]))
	}
	for _, def := range internaldefs.HistogramDefs {
		families = append(families, histogramFamily(def.Name, def.Help, snapshot.Histograms[def.ID]))
	}
	families = append(families, counterFamily(
		"authcore_error_records_dropped_total",
		"Dropped error records due to handler backpressure.",
		dropped,
	))

	var b strings.Builder
	b.Grow(8192)
	for _, f := range families {
		f.render(&b)
	}
	return b.String()
}

func counterFamily(name, help string, value uint64) family {
	return family{
		name:    name,
		kind:    "counter",
		help:    help,
		samples: []sample{{value: value}},
	}
}

func histogramFamily(name, help string, raw []uint64) family {
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))

	samples := make([]sample, 0, internaldefs.BucketCount+2)
	for i, le := range internaldefs.HistogramBounds {
		samples = append(samples, sample{suffix: "_bucket", label: `{le="` + le + `"}`, value: cumulative[i]})
	}
	samples = append(samples, sample{suffix: "_count", value: cumulative[internaldefs.BucketCount-1]})
	// Core snapshots carry bucket counts only; a stable zero sum keeps the
	// family complete for scrapers.
	samples = append(samples, sample{suffix: "_sum"})

	return family{name: name, kind: "histogram", help: help, samples: samples}
}

func (f family) render(b *strings.Builder) {
	b.WriteString("# HELP ")
	b.WriteString(f.name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(f.help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(f.name)
	b.WriteByte(' ')
	b.WriteString(f.kind)
	b.WriteByte('\n')

	for _, s := range f.samples {
		b.WriteString(f.name)
		b.WriteString(s.suffix)
		b.WriteString(s.label)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(s.value, 10))
		b.WriteByte('\n')
	}
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
