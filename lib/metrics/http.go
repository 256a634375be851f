// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the server state reported by /healthz.
type Status struct {
	Running        bool   `json:"running"`
	Endpoint       string `json:"endpoint"`
	ActiveSessions int    `json:"active_sessions"`
}

// StatusFunc reports the current server state.
type StatusFunc func() Status

// Handler routes /metrics to the Prometheus exposition of gatherer and
// /healthz to a JSON rendering of status. /healthz answers 503 once
// the server has stopped.
func Handler(gatherer prometheus.Gatherer, status StatusFunc) http.Handler {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		current := status()
		writer.Header().Set("Content-Type", "application/json")
		if !current.Running {
			writer.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(writer).Encode(current)
	})
	return router
}

// shutdownTimeout bounds how long in-flight scrapes may delay exit.
const shutdownTimeout = 5 * time.Second

// Serve listens on address and serves handler until ctx is cancelled.
func Serve(ctx context.Context, address string, handler http.Handler, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", address, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownContext)
	}()

	logger.Info("metrics server listening", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
