// Package metrics exposes the daemon's prometheus instrumentation. Hook
// processes never import this package; only the daemon serves /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToolCalls counts dispatcher invocations by tool name and outcome.
	// Status is "ok" or the structured error type.
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engram_tool_calls_total",
		Help: "Tool invocations by name and outcome.",
	}, []string{"tool", "status"})

	// ToolDuration observes handler latency per tool.
	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engram_tool_duration_seconds",
		Help:    "Tool handler latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	// ClusterScrollCapHits counts axis scans truncated at the clustering
	// scroll cap. A nonzero rate means the axis has outgrown in-memory
	// clustering and results silently omit older points.
	ClusterScrollCapHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engram_cluster_scroll_cap_hits_total",
		Help: "Axis scans that reached the clustering scroll cap.",
	}, []string{"axis"})

	// WorkerSweeps counts workers moved to session_ended by the stale sweep.
	WorkerSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engram_worker_sweeps_total",
		Help: "Workers marked session_ended by the staleness sweep.",
	})
)
