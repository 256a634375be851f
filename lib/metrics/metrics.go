// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes RPC server activity as Prometheus metrics and
// serves them, together with a health endpoint, over HTTP.
//
// A nil *Metrics is valid and records nothing, so the server does not
// branch on whether metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "rpcready"

// Metrics holds the server's collectors.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	handshakesSent      prometheus.Counter
	framesReceived      *prometheus.CounterVec
	sessionErrors       *prometheus.CounterVec
	transportErrors     prometheus.Counter
	activeSessions      prometheus.Gauge
}

// New creates the collectors and registers them with registerer.
// Panics if they are already registered there (promauto semantics).
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_accepted_total",
			Help:      "Client connections accepted on the RPC endpoint.",
		}),
		handshakesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "handshakes_sent_total",
			Help:      "READY events written to clients.",
		}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_received_total",
			Help:      "Well-formed frames decoded from clients after the handshake.",
		}, []string{"opcode"}),
		sessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_errors_total",
			Help:      "Sessions ended by an error, by error kind.",
		}, []string{"kind"}),
		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transport_errors_total",
			Help:      "Failures to bind or accept on the endpoint.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Connections currently being served.",
		}),
	}
}

// ConnectionAccepted counts an accepted connection.
func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

// HandshakeSent counts a READY event written.
func (m *Metrics) HandshakeSent() {
	if m == nil {
		return
	}
	m.handshakesSent.Inc()
}

// FrameReceived counts a decoded inbound frame.
func (m *Metrics) FrameReceived(opcode string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(opcode).Inc()
}

// SessionError counts a session ended by an error of the given kind
// ("framing", "protocol", "write", "timeout").
func (m *Metrics) SessionError(kind string) {
	if m == nil {
		return
	}
	m.sessionErrors.WithLabelValues(kind).Inc()
}

// TransportError counts a failed bind or accept.
func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
