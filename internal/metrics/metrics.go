// Package metrics exposes operational counters for the daemon over the
// standard Prometheus text endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted prometheus.Counter
	SessionsFailed  prometheus.Counter
	ActiveSessions  prometheus.Gauge
	OutputChunks    *prometheus.CounterVec
	SamplesTotal    prometheus.Counter
	ZombiesDetected prometheus.Counter
}

// New builds a registry with process and Go runtime collectors plus
// the session counters.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procscope_sessions_started_total",
			Help: "Sessions accepted for launch.",
		}),
		SessionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procscope_sessions_failed_total",
			Help: "Sessions that ended in a launch failure.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procscope_active_sessions",
			Help: "Sessions currently running.",
		}),
		OutputChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procscope_output_chunks_total",
			Help: "Output chunks pumped from monitored processes.",
		}, []string{"channel"}),
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procscope_samples_total",
			Help: "Resource samples taken across all sessions.",
		}),
		ZombiesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procscope_zombies_detected_total",
			Help: "Leaked descendants found by post-session scans.",
		}),
	}
	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsFailed,
		m.ActiveSessions,
		m.OutputChunks,
		m.SamplesTotal,
		m.ZombiesDetected,
	)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
