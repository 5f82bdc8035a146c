package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/apiclient"
	"github.com/pitabwire/workdesk/internal/capability"
	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/internal/lookup"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/internal/openapi"
	"github.com/pitabwire/workdesk/internal/transport"
	"github.com/pitabwire/workdesk/internal/workorder"
	"github.com/pitabwire/workdesk/model"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(app.ConfigPath)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("configuration error: %w", err))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return serve(ctx, cfg, app.Version, app.Commit)
		},
	}
}

// serve wires every dependency and runs the HTTP server until ctx is done.
func serve(ctx context.Context, cfg *config.Config, version, commit string) error {
	// Step 1: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer logger.Sync()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "workdesk", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return err
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 2: Maintenance API client, checked against its contract.
	api := apiclient.New(cfg.Backend, metrics, logger)

	var engineOpts []workorder.Option
	if cfg.Backend.SpecFile != "" {
		contract, err := openapi.Load(ctx, cfg.Backend.SpecFile)
		if err != nil {
			logger.Error("API contract load failed", zap.Error(err))
			return err
		}
		missing := apiclient.MissingOperations(contract)
		metrics.SetContractMissing(len(missing))
		for _, op := range missing {
			logger.Warn("API contract does not declare operation",
				zap.String("operation", op.ID),
				zap.String("method", op.Method),
				zap.String("path", op.Path),
			)
		}
		title, apiVersion := contract.Title()
		logger.Info("API contract loaded",
			zap.String("title", title),
			zap.String("version", apiVersion),
			zap.Int("operations", contract.Len()),
		)
		engineOpts = append(engineOpts, workorder.WithValidator(contract))
	}
	engineOpts = append(engineOpts, workorder.WithMetrics(metrics), workorder.WithLogger(logger))

	// Step 3: Capability resolver.
	evaluator, err := capability.NewStaticPolicyEvaluator(cfg.Capability.StaticPolicyFile)
	if err != nil {
		logger.Error("capability policy load failed", zap.Error(err))
		return err
	}
	capResolver := capability.NewResolver(evaluator, cfg.Capability.Cache.TTL, metrics)

	// Step 4: Lookup cache for the technician, asset and spare-part pickers.
	store, err := lookup.NewStore(cfg.Lookup.Store, cfg.Lookup.Cache.MaxEntries)
	if err != nil {
		logger.Error("lookup store initialization failed", zap.Error(err))
		return err
	}
	lookups := lookup.NewCache(store, api, cfg.Lookup.Store.Prefix, cfg.Lookup.Cache.TTL, metrics, logger)

	// Step 5: Per-session work-order engines.
	registry := workorder.NewRegistry(cfg.Sessions, func(s *model.Session) (*workorder.Engine, error) {
		caps, err := capResolver.Resolve(s)
		if err != nil {
			return nil, err
		}
		return workorder.New(api, lookups, s, caps, engineOpts...), nil
	}, metrics)

	// Step 6: Build HTTP router.
	keys, err := transport.NewKeyFunc(cfg.Identity)
	if err != nil {
		logger.Error("token verification key unavailable", zap.Error(err))
		return err
	}

	readinessChecks := observability.ReadinessChecks{"maintenance_api": api}
	if hc, ok := store.(observability.HealthChecker); ok {
		readinessChecks["lookup_store"] = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:             cfg,
		Logger:             logger,
		Metrics:            metrics,
		Gatherer:           prometheus.DefaultGatherer,
		Authenticate:       transport.JWTAuthenticator(cfg.Identity, keys),
		CapabilityResolver: capResolver,
		Engines:            registry,
		Dashboard:          api,
		Readiness:          readinessChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 7: Start background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	go runSessionSweeper(bgCtx, registry, cfg.Sessions.IdleTTL, logger)

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)
	go reloadOnSignal(bgCtx, hangup, capResolver, logger)

	// Step 8: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("api", api.BaseURL()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return err
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Dashboard streams hold their connections open, so Shutdown may run
	// into the deadline; Close then drops whatever is left.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
		_ = srv.Close()
	}

	bgCancel()

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// runSessionSweeper periodically drops idle session engines.
func runSessionSweeper(ctx context.Context, registry *workorder.Registry, idleTTL time.Duration, logger *zap.Logger) {
	interval := idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := registry.Len()
			registry.Sweep()
			if dropped := before - registry.Len(); dropped > 0 {
				logger.Debug("idle sessions dropped", zap.Int("sessions", dropped))
			}
		}
	}
}

type policyReloader interface {
	Reload() error
}

// reloadOnSignal re-reads the capability policy on every signal. Engines
// already built keep the capabilities they were built with.
func reloadOnSignal(ctx context.Context, signals <-chan os.Signal, policy policyReloader, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			if err := policy.Reload(); err != nil {
				logger.Error("capability policy reload failed", zap.Error(err))
				continue
			}
			logger.Info("capability policy reloaded")
		}
	}
}
