package emit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus counters and histograms driven off the same
// event stream the other listeners consume.
//
// Metrics exposed (namespaced "hensu_"):
//   - nodes_inflight (gauge): nodes currently executing.
//   - node_latency_ms (histogram): the "duration_ms" Meta value of each
//     node-complete event, by node and status; an event without it is
//     observed as 0.
//   - retries_total (counter): retry attempts, by node.
//   - rubric_evaluations_total (counter): failed rubric evaluations that
//     triggered an automatic backtrack, by rubric (passed="false");
//     passing evaluations are not counted.
//   - backtracks_total (counter): backtrack events, by type (manual/automatic).
type Metrics struct {
	nodesInflight    prometheus.Gauge
	nodeLatency      *prometheus.HistogramVec
	retriesTotal     *prometheus.CounterVec
	rubricEvals      *prometheus.CounterVec
	backtracksTotal *prometheus.CounterVec
}

// NewMetrics registers the hensu_* metric family on reg and returns a
// Listener that keeps them updated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		nodesInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hensu_nodes_inflight",
			Help: "Number of nodes currently executing.",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hensu_node_latency_ms",
			Help:    "Node execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_id", "status"}),
		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hensu_retries_total",
			Help: "Cumulative retry attempts by node.",
		}, []string{"node_id"}),
		rubricEvals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hensu_rubric_evaluations_total",
			Help: "Rubric evaluations by rubric and outcome.",
		}, []string{"rubric_id", "passed"}),
		backtracksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hensu_backtracks_total",
			Help: "Backtrack events by type.",
		}, []string{"type"}),
	}
}

// OnEvent implements Listener.
func (m *Metrics) OnEvent(event Event) {
	switch event.Kind {
	case KindNodeStart:
		m.nodesInflight.Inc()
	case KindNodeComplete:
		m.nodesInflight.Dec()
		status := "success"
		if v, ok := event.Meta["status"].(string); ok {
			status = v
		}
		durationMs := 0.0
		if v, ok := event.Meta["duration_ms"].(float64); ok {
			durationMs = v
		}
		m.nodeLatency.WithLabelValues(event.NodeID, status).Observe(durationMs)
	case KindBacktrack:
		kind := "manual"
		if v, ok := event.Meta["type"].(string); ok {
			kind = v
		}
		m.backtracksTotal.WithLabelValues(kind).Inc()
		if v, ok := event.Meta["rubric_id"].(string); ok {
			m.rubricEvals.WithLabelValues(v, "false").Inc()
		}
	}
	if v, ok := event.Meta["retry"].(bool); ok && v {
		m.retriesTotal.WithLabelValues(event.NodeID).Inc()
	}
}

// Flush is a no-op; Prometheus metrics are pulled, not pushed.
func (m *Metrics) Flush(_ context.Context) error {
	return nil
}
