package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
	infra_config "github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/infra/logging"
	"github.com/spounge-ai/auditchain/internal/wiring"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := infra_config.Load(os.Getenv("AUDITCHAIN_CONFIG_PATH"))
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		bootLogger.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logCloser.Close() }()
	logger = logger.With("service_version", cfg.ServiceVersion, "build_commit", cfg.BuildCommit)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("auditchain exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *infra_config.Config, logger *slog.Logger) error {
	container := wiring.NewContainer(cfg, logger)
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error("failed to close container", "error", err)
		}
	}()

	deps, err := container.GetDependencies(ctx)
	if err != nil {
		return err
	}
	port, err := container.AddServers(deps)
	if err != nil {
		return err
	}

	logger.Info("starting application resources")
	if err := deps.Resources.Start(ctx); err != nil {
		return err
	}
	logger.Info("application started successfully", "grpc_port", port, "http_port", cfg.Server.HTTPPort)
	deps.Recorder.Record(ctx, &domain.IngestRequest{
		EventType: string(domain.EventSystemMaintenance),
		Action:    "auditchain started",
		Metadata:  map[string]any{"version": cfg.ServiceVersion, "mode": cfg.Server.Mode},
	})

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-signalChan:
		logger.Info("received shutdown signal", "signal", s.String())
	case <-ctx.Done():
		logger.Info("context cancelled, initiating shutdown")
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	deps.Recorder.Record(shutdownCtx, &domain.IngestRequest{
		EventType: string(domain.EventSystemMaintenance),
		Action:    "auditchain stopping",
	})

	logger.Info("shutting down application resources")
	if err := deps.Resources.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping resources", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
