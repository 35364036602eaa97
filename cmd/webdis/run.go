package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/webdis/pkg/cli"
	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/maintenance"
	webdistls "mercator-hq/webdis/pkg/security/tls"
	"mercator-hq/webdis/pkg/server"
	"mercator-hq/webdis/pkg/telemetry/logging"
	"mercator-hq/webdis/pkg/telemetry/metrics"
	"mercator-hq/webdis/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run [config]",
	Short: "Start the gateway",
	Long: `Start the gateway with the specified configuration.

The configuration file is read first, then WEBDIS_* environment variables
(including those from --env-file) override it, then the flags below.

Examples:
  # Start with webdis.json from the working directory
  webdis run

  # Start with a custom config
  webdis run --config /etc/webdis/webdis.json

  # Override listen address
  webdis run --listen 0.0.0.0:7379

  # Validate config and set up logging without starting the server
  webdis run --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address (host:port)")
		cmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
		cmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath(args))
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg); err != nil {
		return err
	}

	logOut, err := logging.Setup(cfg)
	if err != nil {
		return cli.NewConfigError("logfile", err.Error())
	}
	defer func() { _ = logOut.Close() }()

	if runFlags.dryRun {
		slog.Info("configuration valid", "listen", cfg.ListenAddress(), "backend", cfg.BackendAddress())
		return nil
	}

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.IsEnabled() {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		collector.RegisterRuntime()
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	backendTLS, reloader, err := webdistls.ClientConfig(&cfg.SSL, cfg.RedisHost)
	if err != nil {
		return cli.NewConfigError("ssl", err.Error())
	}
	if reloader != nil {
		defer func() { _ = reloader.Close() }()
	}

	srv, err := server.NewServer(cfg, server.Options{
		Metrics:    collector,
		Tracer:     tracer,
		BackendTLS: backendTLS,
		Build:      buildInfo(),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	removePidfile, err := writePidfile(cfg.Pidfile)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer removePidfile()

	ctx := cli.SetupSignalHandler()

	scheduler := maintenance.NewScheduler()
	for _, job := range maintenance.Jobs(cfg, srv.Pools(), logOut) {
		if err := scheduler.Add(job); err != nil {
			return cli.NewCommandError("run", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	slog.Info("webdis starting",
		"version", Version,
		"listen", cfg.ListenAddress(),
		"backend", cfg.BackendAddress(),
		"backend_tls", backendTLS != nil,
		"metrics", collector != nil,
		"tracing", tracer.Enabled(),
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// applyRunFlags applies command-line overrides on top of the loaded
// configuration.
func applyRunFlags(cfg *config.Config) error {
	if runFlags.listenAddress != "" {
		host, port, err := net.SplitHostPort(runFlags.listenAddress)
		if err != nil {
			return cli.NewConfigError("listen", err.Error())
		}
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return cli.NewConfigError("listen", fmt.Sprintf("invalid port %q", port))
		}
		cfg.HTTPHost = host
		cfg.HTTPPort = p
	}
	if runFlags.logLevel != "" {
		if _, err := logging.ParseLevel(runFlags.logLevel); err != nil {
			return cli.NewConfigError("log-level", err.Error())
		}
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	return nil
}
