// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := New(registry)

	metrics.ConnectionAccepted()
	metrics.ConnectionAccepted()
	metrics.HandshakeSent()
	metrics.FrameReceived("frame")
	metrics.FrameReceived("frame")
	metrics.FrameReceived("ping")
	metrics.SessionError("protocol")
	metrics.TransportError()
	metrics.SessionStarted()
	metrics.SessionStarted()
	metrics.SessionEnded()

	checks := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"connections", metrics.connectionsAccepted, 2},
		{"handshakes", metrics.handshakesSent, 1},
		{"frames opcode=frame", metrics.framesReceived.WithLabelValues("frame"), 2},
		{"frames opcode=ping", metrics.framesReceived.WithLabelValues("ping"), 1},
		{"session errors", metrics.sessionErrors.WithLabelValues("protocol"), 1},
		{"transport errors", metrics.transportErrors, 1},
		{"active sessions", metrics.activeSessions, 1},
	}
	for _, check := range checks {
		if got := promtestutil.ToFloat64(check.collector); got != check.want {
			t.Errorf("%s = %v, want %v", check.name, got, check.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var metrics *Metrics
	metrics.ConnectionAccepted()
	metrics.HandshakeSent()
	metrics.FrameReceived("frame")
	metrics.SessionError("framing")
	metrics.TransportError()
	metrics.SessionStarted()
	metrics.SessionEnded()
}

func TestHandlerMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := New(registry)
	metrics.HandshakeSent()

	server := httptest.NewServer(Handler(registry, func() Status { return Status{Running: true} }))
	defer server.Close()

	response, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(response.Body)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", response.StatusCode)
	}
	if !strings.Contains(string(body), "rpcready_handshakes_sent_total 1") {
		t.Errorf("exposition missing handshake counter:\n%s", body)
	}
}

func TestHandlerHealth(t *testing.T) {
	status := Status{Running: true, Endpoint: "/tmp/discord-ipc-0", ActiveSessions: 1}
	server := httptest.NewServer(Handler(prometheus.NewRegistry(), func() Status { return status }))
	defer server.Close()

	get := func() (int, Status) {
		t.Helper()
		response, err := http.Get(server.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		defer response.Body.Close()
		var decoded Status
		if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
			t.Fatalf("decoding health: %v", err)
		}
		return response.StatusCode, decoded
	}

	code, decoded := get()
	if code != http.StatusOK || decoded != status {
		t.Errorf("running: %d %+v", code, decoded)
	}

	status.Running = false
	code, _ = get()
	if code != http.StatusServiceUnavailable {
		t.Errorf("stopped: status = %d, want 503", code)
	}
}
