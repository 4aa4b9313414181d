package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/learnwithjiji/jiji/internal/api"
)

// NewServeCmd creates the 'serve' command for running the HTTP API.
func NewServeCmd(opts *GlobalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the Learn with Jiji HTTP API.

Endpoints (under /api/<version>):
  • POST /ask-jiji  - answer a learning query
  • GET  /history   - recent queries of the authenticated user
  • GET  /health    - liveness

Prometheus metrics are served on /metrics. SIGHUP reloads the log level
from the config file; SIGINT and SIGTERM shut down gracefully.`,
		Example: `  jiji serve
  jiji serve --port 8080 --store postgres --dsn postgres://localhost/jiji`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config and PORT)")

	return cmd
}

// runServe starts the HTTP server and blocks until a shutdown signal.
func runServe(ctx context.Context, opts *GlobalOptions, port int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if port > 0 {
		cfg.Server.Port = port
	}

	resolver, err := a.resolver()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	if a.index != nil {
		go a.index.Refresh(ctx, cfg.RefreshInterval())
	}

	server := api.New(a.svc,
		api.WithLogger(a.log.Logger),
		api.WithResolver(resolver),
		api.WithMetrics(a.metrics),
		api.WithProduction(cfg.IsProduction()),
		api.WithAPIVersion(cfg.Server.APIVersion),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		api.WithBodyLimit(cfg.Server.BodyLimitBytes),
		api.WithRateLimit(cfg.RateWindow(), cfg.RateLimit.MaxRequests),
		api.WithTimeouts(
			time.Duration(cfg.Server.ReadTimeoutSeconds)*time.Second,
			time.Duration(cfg.Server.WriteTimeoutSeconds)*time.Second,
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second,
		),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	a.log.Info("jiji started",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Environment),
		zap.String("store", cfg.Store.Driver),
		zap.String("catalog", cfg.Catalog.Mode),
	)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reloadLogLevel(a, opts)
				continue
			}
			a.log.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
			return <-errChan

		case err := <-errChan:
			return err
		}
	}
}

// reloadLogLevel applies the log level of a freshly loaded config.
func reloadLogLevel(a *app, opts *GlobalOptions) {
	cfg, err := loadConfig(opts)
	if err != nil {
		a.log.Warn("config reload failed", zap.Error(err))
		return
	}
	if err := a.log.SetLevel(cfg.Log.Level); err != nil {
		a.log.Warn("invalid log level", zap.Error(err))
		return
	}
	a.log.Info("log level reloaded", zap.String("level", a.log.Level()))
}
