package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics instruments engine execution. All metrics live under
// the tradingagents_graph namespace and are safe for concurrent use.
type PrometheusMetrics struct {
	inflightNodes prometheus.Gauge
	queueDepth    prometheus.Gauge
	stepLatency   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	backpressure  *prometheus.CounterVec
}

// NewPrometheusMetrics registers the engine metrics with the given
// registerer. Pass prometheus.DefaultRegisterer to expose them on the
// default /metrics handler; use a private registry in tests to avoid
// duplicate registration panics.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradingagents",
			Subsystem: "graph",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradingagents",
			Subsystem: "graph",
			Name:      "queue_depth",
			Help:      "Work items waiting in the fan-out frontier.",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tradingagents",
			Subsystem: "graph",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradingagents",
			Subsystem: "graph",
			Name:      "retries_total",
			Help:      "Node retry attempts by reason.",
		}, []string{"node_id", "reason"}),
		backpressure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradingagents",
			Subsystem: "graph",
			Name:      "backpressure_events_total",
			Help:      "Fan-out enqueues that blocked on a full frontier.",
		}, []string{"reason"}),
	}
}

// RecordStepLatency observes one node execution. Status is "ok" or "error".
// The run ID is accepted for call-site symmetry but deliberately not used
// as a label: run IDs are unbounded and would explode cardinality.
func (pm *PrometheusMetrics) RecordStepLatency(runID, nodeID string, latency time.Duration, status string) {
	if pm == nil {
		return
	}
	pm.stepLatency.WithLabelValues(nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries counts one retry attempt for a node.
func (pm *PrometheusMetrics) IncrementRetries(runID, nodeID, reason string) {
	if pm == nil {
		return
	}
	pm.retries.WithLabelValues(nodeID, reason).Inc()
}

// UpdateQueueDepth sets the current frontier depth.
func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if pm == nil {
		return
	}
	pm.queueDepth.Set(float64(depth))
}

// UpdateInflightNodes adjusts the in-flight gauge by delta (+1 on node
// start, -1 on completion).
func (pm *PrometheusMetrics) UpdateInflightNodes(delta int) {
	if pm == nil {
		return
	}
	pm.inflightNodes.Add(float64(delta))
}

// IncrementBackpressure counts one frontier saturation event.
func (pm *PrometheusMetrics) IncrementBackpressure(runID, reason string) {
	if pm == nil {
		return
	}
	pm.backpressure.WithLabelValues(reason).Inc()
}
