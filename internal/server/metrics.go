package server

import (
	"net/http"

	"linkshare/internal/deploy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	webhookRequests *prometheus.CounterVec
	linkOperations  *prometheus.CounterVec
	deployRuns      *prometheus.CounterVec
	deployDuration  prometheus.Histogram
}

// NewMetrics registers the application collectors plus Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkshare",
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by verification outcome.",
		}, []string{"outcome"}),
		linkOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkshare",
			Name:      "link_operations_total",
			Help:      "Link store operations by kind.",
		}, []string{"operation"}),
		deployRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkshare",
			Name:      "deploy_runs_total",
			Help:      "Deploy runs by result; dropped counts verified triggers that never ran.",
		}, []string{"result"}),
		deployDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "linkshare",
			Name:      "deploy_duration_seconds",
			Help:      "Deploy script wall time.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}

	m.registry.MustRegister(
		m.webhookRequests,
		m.linkOperations,
		m.deployRuns,
		m.deployDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) webhook(outcome string) {
	m.webhookRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) link(operation string) {
	m.linkOperations.WithLabelValues(operation).Inc()
}

func (m *Metrics) deployDropped() {
	m.deployRuns.WithLabelValues("dropped").Inc()
}

// ObserveDeploy records a finished run. It is installed as the dispatcher's observer.
func (m *Metrics) ObserveDeploy(r deploy.Result) {
	result := "success"
	if !r.OK() {
		result = "failure"
	}
	m.deployRuns.WithLabelValues(result).Inc()
	m.deployDuration.Observe(r.Duration.Seconds())
}
