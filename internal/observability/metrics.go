// Package observability provides the process's Prometheus metrics: one
// counter/gauge/histogram per pipeline stage, registered once at package
// init the way the teacher's metrics package does.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric the sniper process exposes.
type Metrics struct {
	// Ingestion
	PoolEventsDetected *prometheus.CounterVec
	DecodeErrors       prometheus.Counter
	DedupDrops         prometheus.Counter
	IngestionMode      *prometheus.GaugeVec

	// RPC provider manager
	ProviderCallLatency *prometheus.HistogramVec
	ProviderFailovers   prometheus.Counter
	ProviderHealthy     *prometheus.GaugeVec
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter

	// Risk analysis
	AnalysesRun      *prometheus.CounterVec
	AnalysisScore    prometheus.Histogram
	AnalysisDuration prometheus.Histogram

	// Execution
	BundlesSubmitted *prometheus.CounterVec
	DirectFallbacks  prometheus.Counter
	TipLamportsPaid  prometheus.Histogram
	ExecutionLatency *prometheus.HistogramVec

	// Positions
	PositionsOpen   prometheus.Gauge
	PositionsClosed *prometheus.CounterVec
	PositionPnL     prometheus.Histogram
}

// NewMetrics creates a Metrics instance with every series registered under
// namespace (defaulting to "sniper").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sniper"
	}

	return &Metrics{
		PoolEventsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "pool_events_detected_total",
			Help:      "Total number of new-pool events detected, by dex",
		}, []string{"dex"}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "decode_errors_total",
			Help:      "Total number of account/transaction decode failures",
		}),
		DedupDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "dedup_drops_total",
			Help:      "Total number of events dropped as duplicate signatures",
		}),
		IngestionMode: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transport_active",
			Help:      "1 if this transport (grpc/websocket/polling) is currently active, else 0",
		}, []string{"transport"}),

		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC provider call latency in seconds, by provider and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "method"}),
		ProviderFailovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "failovers_total",
			Help:      "Total number of times the provider manager fell back to the next provider",
		}),
		ProviderHealthy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "provider_healthy",
			Help:      "1 if the named provider is currently eligible for selection, else 0",
		}, []string{"provider"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "account_cache_hits_total",
			Help:      "Total number of account-cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "account_cache_misses_total",
			Help:      "Total number of account-cache misses",
		}),

		AnalysesRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "analyses_total",
			Help:      "Total number of risk analyses run, by outcome (passed/rejected)",
		}, []string{"outcome"}),
		AnalysisScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "analysis_score",
			Help:      "Normalized 0-100 risk score distribution",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "analysis_duration_seconds",
			Help:      "Risk analysis wall-clock duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		BundlesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "bundles_submitted_total",
			Help:      "Total number of bundle submissions, by outcome (landed/failed)",
		}, []string{"outcome"}),
		DirectFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "direct_fallbacks_total",
			Help:      "Total number of times execution fell back to a direct RPC send",
		}),
		TipLamportsPaid: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "tip_lamports_paid",
			Help:      "Lamports paid as block-engine tip per landed bundle",
			Buckets:   []float64{1000, 5000, 10000, 50000, 100000, 500000, 1000000, 2000000},
		}),
		ExecutionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "latency_seconds",
			Help:      "Execute() wall-clock duration in seconds, by side (buy/sell)",
			Buckets:   prometheus.DefBuckets,
		}, []string{"side"}),

		PositionsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "open",
			Help:      "Current number of open positions",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "closed_total",
			Help:      "Total number of positions closed, by exit reason",
		}, []string{"reason"}),
		PositionPnL: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "pnl_percent",
			Help:      "Realized profit/loss percentage per closed position",
			Buckets:   []float64{-100, -50, -20, -10, 0, 10, 20, 50, 100, 200, 500},
		}),
	}
}

// Handler returns the HTTP handler for the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the process-wide metrics instance every package records
// through, mirroring the teacher's single-registry convention.
var DefaultMetrics = NewMetrics("")

// RecordPoolEventDetected increments the per-dex pool-event counter.
func RecordPoolEventDetected(dex string) {
	DefaultMetrics.PoolEventsDetected.WithLabelValues(dex).Inc()
}

// RecordDecodeError increments the decode-failure counter.
func RecordDecodeError() {
	DefaultMetrics.DecodeErrors.Inc()
}

// RecordDedupDrop increments the duplicate-signature drop counter.
func RecordDedupDrop() {
	DefaultMetrics.DedupDrops.Inc()
}

// SetIngestionMode marks transport as active and every other known
// transport as inactive.
func SetIngestionMode(active string) {
	for _, t := range []string{"grpc", "websocket", "polling"} {
		v := 0.0
		if t == active {
			v = 1.0
		}
		DefaultMetrics.IngestionMode.WithLabelValues(t).Set(v)
	}
}

// RecordProviderCall records one provider RPC call's latency.
func RecordProviderCall(provider, method string, seconds float64) {
	DefaultMetrics.ProviderCallLatency.WithLabelValues(provider, method).Observe(seconds)
}

// RecordFailover increments the provider-manager failover counter.
func RecordFailover() {
	DefaultMetrics.ProviderFailovers.Inc()
}

// SetProviderHealthy records a provider's current eligibility.
func SetProviderHealthy(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	DefaultMetrics.ProviderHealthy.WithLabelValues(provider).Set(v)
}

// RecordCacheHit and RecordCacheMiss track the account-read cache's
// effectiveness.
func RecordCacheHit()  { DefaultMetrics.CacheHits.Inc() }
func RecordCacheMiss() { DefaultMetrics.CacheMisses.Inc() }

// RecordAnalysis records one completed risk analysis.
func RecordAnalysis(passed bool, score int, seconds float64) {
	outcome := "rejected"
	if passed {
		outcome = "passed"
	}
	DefaultMetrics.AnalysesRun.WithLabelValues(outcome).Inc()
	DefaultMetrics.AnalysisScore.Observe(float64(score))
	DefaultMetrics.AnalysisDuration.Observe(seconds)
}

// RecordBundleOutcome records one bundle submission's outcome and, when it
// landed, the tip lamports paid.
func RecordBundleOutcome(landed bool, tipLamports uint64) {
	outcome := "failed"
	if landed {
		outcome = "landed"
		DefaultMetrics.TipLamportsPaid.Observe(float64(tipLamports))
	}
	DefaultMetrics.BundlesSubmitted.WithLabelValues(outcome).Inc()
}

// RecordDirectFallback increments the direct-RPC-fallback counter.
func RecordDirectFallback() {
	DefaultMetrics.DirectFallbacks.Inc()
}

// RecordExecutionLatency records one Execute() call's duration by side.
func RecordExecutionLatency(side string, seconds float64) {
	DefaultMetrics.ExecutionLatency.WithLabelValues(side).Observe(seconds)
}

// SetPositionsOpen sets the current open-position gauge.
func SetPositionsOpen(n int) {
	DefaultMetrics.PositionsOpen.Set(float64(n))
}

// RecordPositionClosed records one position's close reason and realized PnL.
func RecordPositionClosed(reason string, pnlPercent float64) {
	DefaultMetrics.PositionsClosed.WithLabelValues(reason).Inc()
	DefaultMetrics.PositionPnL.Observe(pnlPercent)
}
