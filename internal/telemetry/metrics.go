// Package telemetry provides observability primitives for the rollup
// engine: Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors the engine emits. These replace
// the teacher's StatsD counters (logging.Statsd.Client.Inc/Gauge/
// TimingDuration) one for one.
type Metrics struct {
	StoreCallsTotal     *prometheus.CounterVec
	StoreCallDuration    prometheus.Histogram
	StoreWriteErrors     *prometheus.CounterVec
	RollupRunsTotal      *prometheus.CounterVec
	RollupDuration       *prometheus.HistogramVec
	RollupRowsMerged     *prometheus.CounterVec
	WorkQueueDepth       *prometheus.GaugeVec
	SharedTextCacheHits  prometheus.Counter
	SharedTextCacheMisses prometheus.Counter
	DecodeErrors         *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors with the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StoreCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrollup",
			Name:      "store_calls_total",
			Help:      "Total number of Writer.Store calls, by outcome.",
		}, []string{"outcome"}),

		StoreCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aggrollup",
			Name:      "store_call_duration_seconds",
			Help:      "Duration of a full Writer.Store call.",
			Buckets:   prometheus.DefBuckets,
		}),

		StoreWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrollup",
			Name:      "store_write_errors_total",
			Help:      "Total failed store writes, by store operation.",
		}, []string{"op"}),

		RollupRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrollup",
			Name:      "rollup_runs_total",
			Help:      "Total rollup engine passes, by phase and outcome.",
		}, []string{"phase", "outcome"}),

		RollupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aggrollup",
			Name:      "rollup_duration_seconds",
			Help:      "Duration of a rollup pass, by phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),

		RollupRowsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrollup",
			Name:      "rollup_rows_merged_total",
			Help:      "Total source rows folded into rollup output, by kind.",
		}, []string{"kind"}),

		WorkQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aggrollup",
			Name:      "work_queue_depth",
			Help:      "Observed needs_rollup queue depth at last drain, by level.",
		}, []string{"level"}),

		SharedTextCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aggrollup",
			Name:      "shared_query_text_cache_hits_total",
			Help:      "Shared query text TTL-refresh cache hits (no side-table write needed).",
		}),

		SharedTextCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aggrollup",
			Name:      "shared_query_text_cache_misses_total",
			Help:      "Shared query text TTL-refresh cache misses (side-table write performed).",
		}),

		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrollup",
			Name:      "decode_errors_total",
			Help:      "Rows skipped due to protocol decode errors, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.StoreCallsTotal,
		m.StoreCallDuration,
		m.StoreWriteErrors,
		m.RollupRunsTotal,
		m.RollupDuration,
		m.RollupRowsMerged,
		m.WorkQueueDepth,
		m.SharedTextCacheHits,
		m.SharedTextCacheMisses,
		m.DecodeErrors,
	)

	return m
}
