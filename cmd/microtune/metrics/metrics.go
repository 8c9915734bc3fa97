// Package metrics instruments the tuning sweep for Prometheus
// scraping via the status server's /metrics endpoint.
//
// Metrics exposed:
//   - microtune_sweep_stage_seconds: Histogram of per-stage duration
//     (apply, stabilize, load, collect)
//   - microtune_sweep_iteration: Gauge of the last completed iteration
//   - microtune_sweep_grid_size: Gauge of the sweep's total grid size
//   - microtune_errors_total: Counter of stage failures
//
// All metrics carry the deployment label of the workload under test.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sweep's Prometheus instruments. It satisfies the
// sweep runner's Observer interface.
type Metrics struct {
	StageSeconds *prometheus.HistogramVec
	Iteration    prometheus.Gauge
	GridSize     prometheus.Gauge
	ErrorsTotal  *prometheus.CounterVec
}

// New creates and registers all sweep metrics.
func New(deployment string) *Metrics {
	return &Metrics{
		StageSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "microtune_sweep_stage_seconds",
			Help: "Time spent in each sweep iteration stage",
			ConstLabels: prometheus.Labels{
				"deployment": deployment,
			},
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"stage"}),

		Iteration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microtune_sweep_iteration",
			Help: "Last completed sweep iteration",
			ConstLabels: prometheus.Labels{
				"deployment": deployment,
			},
		}),

		GridSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microtune_sweep_grid_size",
			Help: "Total number of grid points in the current sweep",
			ConstLabels: prometheus.Labels{
				"deployment": deployment,
			},
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microtune_errors_total",
			Help: "Total number of failed sweep stages",
			ConstLabels: prometheus.Labels{
				"deployment": deployment,
			},
		}, []string{"stage"}),
	}
}

// ObserveStage records how long one iteration stage took.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// SetProgress records sweep progress after a completed iteration.
func (m *Metrics) SetProgress(iteration, total int) {
	m.Iteration.Set(float64(iteration))
	m.GridSize.Set(float64(total))
}

// RecordError increments the failure counter for a stage.
func (m *Metrics) RecordError(stage string) {
	m.ErrorsTotal.WithLabelValues(stage).Inc()
}
