// Package metrics exposes scheduler measurements in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cronwork/internal/cron"
)

// Metrics implements cron.Recorder on a private registry, so several
// schedulers (tests, embedded use) never collide on global collectors.
type Metrics struct {
	reg *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsInFlight prometheus.Gauge
	tasks        *prometheus.GaugeVec
	historySize  prometheus.Gauge
}

var _ cron.Recorder = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cronwork_runs_total",
				Help: "Total number of finished task runs",
			},
			[]string{"task", "status"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cronwork_run_duration_seconds",
				Help:    "Task run time in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"task"},
		),
		runsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "cronwork_runs_in_flight",
				Help: "Number of task runs currently executing",
			},
		),
		tasks: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cronwork_tasks",
				Help: "Number of registered tasks",
			},
			[]string{"state"},
		),
		historySize: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "cronwork_history_entries",
				Help: "Number of entries in the in-memory execution history",
			},
		),
	}
}

func (m *Metrics) RunStarted(task string) {
	m.runsInFlight.Inc()
}

func (m *Metrics) RunFinished(task string, status cron.Status, dur time.Duration) {
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(task, string(status)).Inc()
	m.runDuration.WithLabelValues(task).Observe(dur.Seconds())
}

func (m *Metrics) Tasks(total, enabled int) {
	m.tasks.WithLabelValues("enabled").Set(float64(enabled))
	m.tasks.WithLabelValues("disabled").Set(float64(total - enabled))
}

func (m *Metrics) History(size int) {
	m.historySize.Set(float64(size))
}

// Registry returns the private registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
