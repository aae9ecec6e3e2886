package orchestration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Node results.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics collects per-run orchestration metrics. Every Reconciler owns its
// own registry so parallel runs in one process never share series.
type Metrics struct {
	registry *prometheus.Registry

	nodeTotal    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	stage        *prometheus.GaugeVec
}

// NewMetrics registers the orchestration metrics on reg. A nil reg gets a
// fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		nodeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "svmzner",
				Subsystem: "orchestrator",
				Name:      "node_runs_total",
				Help:      "Total number of graph node runs by result",
			},
			[]string{"deployment", "node", "result"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "svmzner",
				Subsystem: "orchestrator",
				Name:      "node_duration_seconds",
				Help:      "Duration of graph node runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
			},
			[]string{"deployment", "node"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "svmzner",
				Subsystem: "orchestrator",
				Name:      "remote_retries_total",
				Help:      "Total number of retried transient remote failures",
			},
			[]string{"deployment", "node"},
		),
		stage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "svmzner",
				Subsystem: "orchestrator",
				Name:      "stage",
				Help:      "Current deployment stage (1 for the active stage)",
			},
			[]string{"deployment", "stage"},
		),
	}
	reg.MustRegister(m.nodeTotal, m.nodeDuration, m.retries, m.stage)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes the metrics in the text exposition format, for
// the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) recordNode(deployment, node string, elapsed time.Duration, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	m.nodeTotal.WithLabelValues(deployment, node, result).Inc()
	m.nodeDuration.WithLabelValues(deployment, node).Observe(elapsed.Seconds())
}

func (m *Metrics) recordRetry(deployment, node string) {
	m.retries.WithLabelValues(deployment, node).Inc()
}

func (m *Metrics) recordStage(deployment, stage string) {
	m.stage.Reset()
	m.stage.WithLabelValues(deployment, stage).Set(1)
}
