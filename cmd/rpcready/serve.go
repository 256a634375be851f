// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rpcready/rpcready/lib/audit"
	"github.com/rpcready/rpcready/lib/config"
	"github.com/rpcready/rpcready/lib/handshake"
	"github.com/rpcready/rpcready/lib/ipcserver"
	"github.com/rpcready/rpcready/lib/metrics"
	"github.com/rpcready/rpcready/lib/transport"
	"github.com/rpcready/rpcready/lib/version"
)

// serveFlags override individual config values. Only flags given on
// the command line are applied.
type serveFlags struct {
	configPath    string
	endpoint      string
	socket        string
	concurrent    bool
	readTimeout   time.Duration
	auditPath     string
	metricsListen string
	logLevel      string
	logFormat     string
}

func (f *serveFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.configPath, "config", "", "path to config file (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	flags.StringVar(&f.endpoint, "endpoint", transport.DefaultName, "endpoint name, resolved to a platform path")
	flags.StringVar(&f.socket, "socket", "", "explicit endpoint path, overrides --endpoint")
	flags.BoolVar(&f.concurrent, "concurrent", false, "serve clients in parallel instead of one at a time")
	flags.DurationVar(&f.readTimeout, "read-timeout", 0, "end a session when no frame arrives within this long (0 waits forever)")
	flags.StringVar(&f.auditPath, "audit", "", "audit file path (empty string disables auditing)")
	flags.StringVar(&f.metricsListen, "metrics-listen", "", "address for the /metrics and /healthz HTTP server")
	flags.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flags.StringVar(&f.logFormat, "log-format", "auto", "log format: auto, text, or json")
}

// apply copies changed flags onto cfg.
func (f *serveFlags) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("endpoint") {
		cfg.Endpoint.Name = f.endpoint
		cfg.Endpoint.Path = ""
	}
	if flags.Changed("socket") {
		cfg.Endpoint.Path = f.socket
	}
	if flags.Changed("concurrent") {
		cfg.Server.Concurrent = f.concurrent
	}
	if flags.Changed("read-timeout") {
		cfg.Server.ReadTimeout = f.readTimeout
	}
	if flags.Changed("audit") {
		cfg.Audit.Path = f.auditPath
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Listen = f.metricsListen
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
}

func serveCommand() *cobra.Command {
	var flags serveFlags
	command := &cobra.Command{
		Use:   "serve",
		Short: "Serve the READY handshake on the local endpoint",
		Long: `Serve binds the endpoint and answers each client with the READY event.
It runs until interrupted (SIGINT or SIGTERM); sessions in progress end
at their next read.`,
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			flags.apply(command.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := newLogger(command.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	flags.register(command.Flags())
	return command
}

// loadConfig reads the file named by --config, then RPCREADY_CONFIG,
// and otherwise returns the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// serve runs the server, the identity watcher, and the metrics server
// until ctx is cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	endpointPath := cfg.EndpointPath()
	logger.Info("starting rpcready",
		"version", version.Info(),
		"endpoint", endpointPath,
		"concurrent", cfg.Server.Concurrent,
		"user_id", cfg.Identity.User.ID,
	)

	identity := handshake.NewSwappable(cfg.Identity)

	var sink audit.Sink
	if cfg.Audit.Path != "" {
		fileSink, err := openAuditFile(cfg.Audit, logger)
		if err != nil {
			return err
		}
		defer fileSink.Close()
		sink = fileSink
		logger.Info("auditing messages", "path", cfg.Audit.Path, "format", cfg.Audit.Format)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server, err := ipcserver.New(ipcserver.Options{
		Transport: transport.New(transport.Options{
			Path:        endpointPath,
			Permissions: os.FileMode(cfg.Endpoint.Permissions),
		}),
		Identity:    identity,
		Audit:       sink,
		Logger:      logger,
		Metrics:     metrics.New(registry),
		Concurrent:  cfg.Server.Concurrent,
		MaxSessions: cfg.Server.MaxSessions,
		ReadTimeout: cfg.Server.ReadTimeout,
		RetryDelay:  cfg.Server.RetryDelay,
	})
	if err != nil {
		return err
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Run(groupContext)
	})
	if cfg.IdentityFile != "" {
		group.Go(func() error {
			return config.WatchIdentity(groupContext, cfg.IdentityFile, identity, logger)
		})
	}
	if cfg.Metrics.Listen != "" {
		group.Go(func() error {
			return metrics.Serve(groupContext, cfg.Metrics.Listen, metrics.Handler(registry, server.Status), logger)
		})
	}
	return group.Wait()
}

func openAuditFile(settings config.AuditConfig, logger *slog.Logger) (*audit.FileSink, error) {
	format, err := audit.ParseFormat(settings.Format)
	if err != nil {
		return nil, err
	}
	compression, err := audit.ParseCompression(settings.Compression)
	if err != nil {
		return nil, err
	}
	return audit.OpenFile(audit.FileOptions{
		Path:        settings.Path,
		Format:      format,
		MaxBytes:    settings.MaxBytes,
		Compression: compression,
		Logger:      logger,
	})
}
