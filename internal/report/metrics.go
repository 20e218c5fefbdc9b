package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gotrs-io/boardcheck/internal/runner"
)

// Metrics records run outcomes for the node exporter textfile collector.
type Metrics struct {
	registry  *prometheus.Registry
	scenarios *prometheus.CounterVec
	failures  *prometheus.CounterVec
	attempts  prometheus.Counter
	duration  *prometheus.HistogramVec
	lastRun   prometheus.Gauge
	lastOK    prometheus.Gauge
	lastFail  prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boardcheck_scenarios_total",
			Help: "Total number of scenarios run, by result",
		}, []string{"result"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boardcheck_failures_total",
			Help: "Total number of scenario failures, by kind",
		}, []string{"kind"}),
		attempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "boardcheck_attempts_total",
			Help: "Total number of scenario attempts including retries",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boardcheck_scenario_duration_seconds",
			Help:    "Scenario duration across all attempts",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"section"}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "boardcheck_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
		lastOK: factory.NewGauge(prometheus.GaugeOpts{
			Name: "boardcheck_last_run_success",
			Help: "1 if every scenario of the last run passed",
		}),
		lastFail: factory.NewGauge(prometheus.GaugeOpts{
			Name: "boardcheck_last_run_failed_scenarios",
			Help: "Number of failed scenarios in the last run",
		}),
	}
}

// Observe adds a finished run.
func (m *Metrics) Observe(sum *runner.Summary) {
	for _, res := range sum.Results {
		result := "passed"
		switch {
		case !res.Passed:
			result = "failed"
			m.failures.WithLabelValues(kindLabel(res)).Inc()
		case res.Attempts > 1:
			result = "flaky"
		}
		m.scenarios.WithLabelValues(result).Inc()
		m.attempts.Add(float64(res.Attempts))
		m.duration.WithLabelValues(res.Scenario.Section).Observe(res.Duration.Seconds())
	}
	m.lastRun.Set(float64(sum.Started.Add(sum.Duration).Unix()))
	if sum.OK() {
		m.lastOK.Set(1)
	} else {
		m.lastOK.Set(0)
	}
	m.lastFail.Set(float64(sum.Failed()))
}

// Registry exposes the collectors, for tests and HTTP exposition.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile atomically writes the metrics in text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
