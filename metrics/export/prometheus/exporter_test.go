package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	authcore "github.com/ledgerkeep/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) ErrorRecordsDropped() uint64               { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{},
			Histograms: map[authcore.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricTokenVerifySuccess: 7,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "authcore_token_verify_success_total 7") {
		t.Fatalf("expected verify success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authcore_verify_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authcore_verify_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authcore_error_records_dropped_total 2") {
		t.Fatalf("expected dropped records counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{authcore.MetricTokenVerifySuccess: 1},
			Histograms: map[authcore.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCollectorRegistersAndScrapes(t *testing.T) {
	collector := NewCollector(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricTokenIssued:  3,
				authcore.MetricRateLimited:  5,
				authcore.MetricCSRFRejected: 1,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricVerifyLatency: {4, 0, 0, 0, 0, 0, 0, 0},
			},
		},
		dropped: 9,
	})

	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	expected := strings.NewReader(`# HELP authcore_token_issued_total Issued access tokens.
# TYPE authcore_token_issued_total counter
authcore_token_issued_total 3
`)
	if err := testutil.GatherAndCompare(registry, expected, "authcore_token_issued_total"); err != nil {
		t.Fatalf("GatherAndCompare failed: %v", err)
	}

	count, err := testutil.GatherAndCount(registry,
		"authcore_token_issued_total",
		"authcore_rate_limited_total",
		"authcore_verify_latency_seconds",
		"authcore_error_records_dropped_total",
	)
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 4 {
		t.Fatalf("gathered %d metric families, want 4", count)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricTokenIssued:        1000,
				authcore.MetricTokenVerifySuccess: 940,
				authcore.MetricTokenVerifyExpired: 40,
				authcore.MetricRateAllowed:        800,
				authcore.MetricRateLimited:        20,
				authcore.MetricCSRFValidated:      400,
				authcore.MetricCSRFRejected:       3,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricVerifyLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
