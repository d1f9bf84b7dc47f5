package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/descent/internal/optimization"
)

const metricsPrefix = "descent_"

// metrics are registered on a per-server registry so several servers can
// coexist in one process (as they do in tests).
type metrics struct {
	registry *prometheus.Registry

	runsFinished *prometheus.CounterVec
	iterations   *prometheus.HistogramVec
	evaluations  *prometheus.CounterVec
	backtracks   prometheus.Counter
	activeRuns   prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "runs_finished_total",
				Help: "Number of minimization runs that reached a terminal state",
			},
			[]string{"strategy", "status"},
		),
		iterations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "run_iterations",
				Help:    "Update steps taken by completed runs",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000, 10000},
			},
			[]string{"strategy"},
		),
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "objective_evaluations_total",
				Help: "Objective evaluations performed by completed runs",
			},
			[]string{"kind"},
		),
		backtracks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: metricsPrefix + "line_search_backtracks_total",
				Help: "Step shrinks performed by the backtracking line search",
			},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: metricsPrefix + "active_runs",
				Help: "Runs currently holding a worker slot",
			},
		),
	}
}

// recordResult accounts a completed engine run.
func (m *metrics) recordResult(r *optimization.Result) {
	m.runsFinished.WithLabelValues(r.Strategy, string(r.Status)).Inc()
	m.iterations.WithLabelValues(r.Strategy).Observe(float64(r.Iterations))
	m.evaluations.WithLabelValues("full").Add(float64(r.Stats.FullEvaluations))
	m.evaluations.WithLabelValues("value").Add(float64(r.Stats.ValueEvaluations))
	m.evaluations.WithLabelValues("gradient").Add(float64(r.Stats.GradientEvaluations))
	m.backtracks.Add(float64(r.Stats.Backtracks))
}

// recordTerminal accounts a run that ended without an engine result.
func (m *metrics) recordTerminal(strategy string, status RunStatus) {
	m.runsFinished.WithLabelValues(strategy, string(status)).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
