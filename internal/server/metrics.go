package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cotracker/internal/checkouts"
)

// Metrics counts checkout and attachment changes, denials and requests on its
// own registry
type Metrics struct {
	registry *prometheus.Registry

	// checkoutsChanged counts persisted checkout changes.
	// Labels: action (add, remove)
	checkoutsChanged *prometheus.CounterVec

	// attachmentsChanged counts airstrips attached to or detached from bases.
	// Labels: action (attach, detach)
	attachmentsChanged *prometheus.CounterVec

	// forbidden counts authorization denials.
	// Labels: action (edit_attachments, edit_checkouts)
	forbidden *prometheus.CounterVec

	// requests counts handled HTTP requests.
	// Labels: route, status
	requests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		checkoutsChanged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotracker",
			Name:      "checkouts_changed_total",
			Help:      "Total checkouts created or deleted",
		}, []string{"action"}),
		attachmentsChanged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotracker",
			Name:      "attachments_changed_total",
			Help:      "Total airstrips attached to or detached from a base",
		}, []string{"action"}),
		forbidden: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotracker",
			Name:      "forbidden_total",
			Help:      "Total requests denied by the authorization gate",
		}, []string{"action"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotracker",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) Forbidden(action checkouts.Action) {
	m.forbidden.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) CheckoutsChanged(action string, n int) {
	m.checkoutsChanged.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) AttachmentsChanged(action string, n int) {
	m.attachmentsChanged.WithLabelValues(action).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
