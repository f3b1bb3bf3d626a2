package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voiceagent"

var (
	// stageDuration is a histogram of per-stage latency in seconds.
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of pipeline stages in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"stage", "language"},
	)

	// turnDuration is a histogram of whole-turn latency in seconds.
	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Total latency of conversation turns in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// turnsTotal counts turns by outcome.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of processed conversation turns",
		},
		[]string{"status", "error_kind"},
	)

	// sessionsActive gauges currently connected call sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active call sessions",
		},
	)
)

// NewRegistry returns a registry with all pipeline collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(stageDuration, turnDuration, turnsTotal, sessionsActive)
	return reg
}

// Handler exposes the registry in Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// SessionStarted and SessionEnded track the active-session gauge.
func SessionStarted() { sessionsActive.Inc() }
func SessionEnded()   { sessionsActive.Dec() }

func observeTurn(t Turn) {
	status := "success"
	if !t.Success {
		status = "error"
	}
	if t.Transcribe > 0 {
		stageDuration.WithLabelValues("transcribe", t.Language).Observe(t.Transcribe.Seconds())
	}
	if t.Generate > 0 {
		stageDuration.WithLabelValues("generate", t.Language).Observe(t.Generate.Seconds())
	}
	if t.Synthesize > 0 {
		stageDuration.WithLabelValues("synthesize", t.Language).Observe(t.Synthesize.Seconds())
	}
	turnDuration.WithLabelValues(status).Observe(t.Total.Seconds())
	turnsTotal.WithLabelValues(status, t.ErrorKind).Inc()
}
