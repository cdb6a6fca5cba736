// Package metrics exposes Prometheus collectors for the emulated cluster.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional metrics sink without nil checks at every call site.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cbmock"

// Metrics holds all collectors registered by the server.
type Metrics struct {
	registry *prometheus.Registry

	connectionsAccepted *prometheus.CounterVec
	connectionsActive   *prometheus.GaugeVec
	controlCommands     *prometheus.CounterVec
	authAttempts        *prometheus.CounterVec
	faultsInstalled     *prometheus.CounterVec
	faultsTriggered     *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted, by server.",
		}, []string{"server"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently served, by server.",
		}, []string{"server"}),
		controlCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_commands_total",
			Help:      "Control commands dispatched, by command and status.",
		}, []string{"command", "status"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication exchanges, by mechanism and result.",
		}, []string{"mechanism", "result"}),
		faultsInstalled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_installed_total",
			Help:      "Failure contexts installed on nodes, by bucket.",
		}, []string{"bucket"}),
		faultsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_triggered_total",
			Help:      "Operations answered with an injected error, by bucket and code.",
		}, []string{"bucket", "code"}),
	}

	m.registry.MustRegister(
		m.connectionsAccepted,
		m.connectionsActive,
		m.controlCommands,
		m.authAttempts,
		m.faultsInstalled,
		m.faultsTriggered,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler serving the registry in text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened(server string) {
	if m == nil {
		return
	}
	m.connectionsAccepted.WithLabelValues(server).Inc()
	m.connectionsActive.WithLabelValues(server).Inc()
}

// ConnectionClosed records a connection leaving service.
func (m *Metrics) ConnectionClosed(server string) {
	if m == nil {
		return
	}
	m.connectionsActive.WithLabelValues(server).Dec()
}

// ControlCommand records a dispatched control command.
func (m *Metrics) ControlCommand(command, status string) {
	if m == nil {
		return
	}
	m.controlCommands.WithLabelValues(command, status).Inc()
}

// AuthAttempt records the outcome of one authentication step.
func (m *Metrics) AuthAttempt(mechanism, result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(mechanism, result).Inc()
}

// FaultInstalled records a failure context replacement on a node.
func (m *Metrics) FaultInstalled(bucket string) {
	if m == nil {
		return
	}
	m.faultsInstalled.WithLabelValues(bucket).Inc()
}

// FaultTriggered records an operation answered with an injected error.
func (m *Metrics) FaultTriggered(bucket, code string) {
	if m == nil {
		return
	}
	m.faultsTriggered.WithLabelValues(bucket, code).Inc()
}
