// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and every counter the server records.
type Metrics struct {
	registry *prometheus.Registry

	Logins          *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	SingleUseTokens *prometheus.CounterVec
	Denials         *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

// New creates the counters on a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcamp_auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcamp_auth_refresh_total",
			Help: "Refresh token rotations by result.",
		}, []string{"result"}),
		SingleUseTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcamp_single_use_tokens_total",
			Help: "Single-use token events by purpose.",
		}, []string{"purpose", "event"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcamp_authorization_denials_total",
			Help: "Project authorization denials by reason.",
		}, []string{"reason"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcamp_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Logins, m.Refreshes, m.SingleUseTokens, m.Denials, m.HTTPRequests,
	)
	return m
}

func (m *Metrics) Login(result string) { m.Logins.WithLabelValues(result).Inc() }

func (m *Metrics) Refresh(result string) { m.Refreshes.WithLabelValues(result).Inc() }

func (m *Metrics) SingleUseToken(purpose, event string) {
	m.SingleUseTokens.WithLabelValues(purpose, event).Inc()
}

func (m *Metrics) AuthorizationDenied(reason string) { m.Denials.WithLabelValues(reason).Inc() }

func (m *Metrics) HTTPRequest(method string, status int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
