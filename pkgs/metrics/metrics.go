// Package metrics exposes archive run counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imapbox/imapbox/pkgs/backup"
)

// Recorder implements backup.Observer on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	messages       *prometheus.CounterVec
	folders        *prometheus.CounterVec
	folderDuration *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	lastRun        prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// NewRecorder registers the imapbox metrics and the Go runtime collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imapbox_messages_total",
				Help: "Messages handled, by account and outcome",
			},
			[]string{"account", "outcome"},
		),
		folders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imapbox_folders_total",
				Help: "Folder runs, by account and result",
			},
			[]string{"account", "result"},
		),
		folderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imapbox_folder_duration_seconds",
				Help:    "Duration of folder runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"account"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imapbox_runs_total",
				Help: "Scheduled backup runs, by result",
			},
			[]string{"result"},
		),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "imapbox_last_run_timestamp_seconds",
			Help: "Unix time the last backup run finished",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "imapbox_last_success_timestamp_seconds",
			Help: "Unix time the last fully successful backup run finished",
		}),
	}
}

// ObserveMessage counts one message outcome.
func (r *Recorder) ObserveMessage(account string, o backup.Outcome) {
	r.messages.WithLabelValues(account, o.String()).Inc()
}

// ObserveFolder records one finished folder run.
func (r *Recorder) ObserveFolder(account, _ string, stats backup.Stats, err error, elapsed time.Duration) {
	result := "success"
	switch {
	case err != nil:
		result = "error"
	case stats.Empty:
		result = "empty"
	}
	r.folders.WithLabelValues(account, result).Inc()
	r.folderDuration.WithLabelValues(account).Observe(elapsed.Seconds())
}

// ObserveRun records the end of a run over all accounts.
func (r *Recorder) ObserveRun(finished time.Time, err error) {
	r.lastRun.Set(float64(finished.Unix()))
	if err != nil {
		r.runs.WithLabelValues("error").Inc()
		return
	}
	r.runs.WithLabelValues("success").Inc()
	r.lastSuccess.Set(float64(finished.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
