package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AdScope metrics, registered with the default registry and exposed on /metrics.
var (
	ToolCallsTotal *prometheus.CounterVec

	ToolDuration *prometheus.HistogramVec

	// Cache effectiveness counters, labeled by kind (download, image-analysis,
	// video-analysis) and outcome (hit, miss).
	CacheLookupsTotal *prometheus.CounterVec

	DownloadedBytesTotal prometheus.Counter

	EvictedAssetsTotal prometheus.Counter

	ProviderLatency *prometheus.HistogramVec
)

func init() {
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adscope",
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "adscope",
			Subsystem: "mcp",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tool_name"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adscope",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DownloadedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "adscope",
			Subsystem: "cache",
			Name:      "downloaded_bytes_total",
			Help:      "Total creative bytes downloaded from ad platforms",
		},
	)

	EvictedAssetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "adscope",
			Subsystem: "cache",
			Name:      "evicted_assets_total",
			Help:      "Total assets removed by cleanup",
		},
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "adscope",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "External provider response time in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ToolDuration)
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(DownloadedBytesTotal)
	prometheus.MustRegister(EvictedAssetsTotal)
	prometheus.MustRegister(ProviderLatency)
}

// RecordToolCall records a tool invocation and its duration.
func RecordToolCall(toolName, status string, durationSec float64) {
	if status == "" {
		status = "unknown"
	}
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
	ToolDuration.WithLabelValues(toolName).Observe(durationSec)
}

// RecordCacheLookup records a cache hit or miss for the given kind.
func RecordCacheLookup(kind string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	CacheLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordProviderLatency records external provider response time.
func RecordProviderLatency(provider string, durationSec float64) {
	ProviderLatency.WithLabelValues(provider).Observe(durationSec)
}
