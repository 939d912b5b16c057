// Package metrics exposes Prometheus collectors for change broadcasts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/livereload/reloader"
)

// Metrics holds the service collectors.
type Metrics struct {
	reg      *prometheus.Registry
	changes  prometheus.Counter
	outcomes *prometheus.CounterVec
	clients  prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livereload",
			Name:      "changes_total",
			Help:      "Number of changes broadcast.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livereload",
			Name:      "outcomes_total",
			Help:      "How attached documents handled changes.",
		}, []string{"outcome"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livereload",
			Name:      "clients",
			Help:      "Connected LiveReload websocket clients.",
		}),
	}
	m.reg.MustRegister(m.changes, m.outcomes, m.clients,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

// ObserveChange counts a broadcast and the outcomes it produced.
func (m *Metrics) ObserveChange(outcomes []reloader.Outcome) {
	m.changes.Inc()
	for _, o := range outcomes {
		m.outcomes.WithLabelValues(o.String()).Inc()
	}
}

// SetClients records the number of connected websocket clients.
func (m *Metrics) SetClients(n int) {
	m.clients.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
