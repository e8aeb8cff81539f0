package wiring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gorilla/mux"

	app_grpc "github.com/spounge-ai/auditchain/internal/app/grpc"
	"github.com/spounge-ai/auditchain/internal/app/rest"
	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/audit"
	infra_aws "github.com/spounge-ai/auditchain/internal/infra/aws"
	"github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/infra/persistence"
	infra_secrets "github.com/spounge-ai/auditchain/internal/infra/secrets"
	"github.com/spounge-ai/auditchain/internal/secrets"
	"github.com/spounge-ai/auditchain/internal/service"
	"github.com/spounge-ai/auditchain/internal/validation"
	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

const defaultHealthCheckPeriod = time.Minute

// Dependencies is everything built from one Config.
type Dependencies struct {
	Repository domain.AuditRepository
	Service    service.AuditService
	// Recorder is the fail-open entry point for the process's own events.
	Recorder   domain.AuditLogger
	Classifier *app_errors.ErrorClassifier
	// Resources holds the background pieces (store monitor, async recorder). Servers are added
	// by AddServers.
	Resources *lifecycle.Group
}

type Container struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
}

func NewContainer(cfg *config.Config, logger *slog.Logger) *Container {
	return &Container{cfg: cfg, logger: logger}
}

// GetDependencies opens the store, resolves the signing secret and assembles the service.
func (c *Container) GetDependencies(ctx context.Context) (*Dependencies, error) {
	awsCfg, err := c.loadAWS(ctx)
	if err != nil {
		return nil, err
	}

	secret, err := c.signingSecret(ctx, awsCfg)
	if err != nil {
		return nil, err
	}
	signer, err := core.NewSigner(secret)
	if err != nil {
		return nil, err
	}

	store, err := persistence.OpenRepository(ctx, c.cfg.Persistence, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	c.closers = append(c.closers, store.Repository)

	sink, err := c.archiveSink(awsCfg)
	if err != nil {
		return nil, err
	}

	requestValidator, err := validation.NewRequestValidator()
	if err != nil {
		return nil, err
	}

	resources := lifecycle.NewGroup()
	if store.Pinger != nil {
		interval := c.cfg.Persistence.Database.Connection.HealthCheckPeriod
		if interval <= 0 {
			interval = defaultHealthCheckPeriod
		}
		resources.Add("store", persistence.NewConnectionMonitor(store.Pinger, interval, c.logger))
	}

	ledger := audit.NewLedger(
		store.Repository,
		signer,
		requestValidator,
		audit.NewStructuredAuditLogger(c.logger),
		c.logger,
		audit.LedgerConfig{MaxConflictRetries: c.cfg.Ingest.MaxConflictRetries},
	)

	var recorder domain.AuditLogger
	if async := c.cfg.Ingest.Asynchronous; async.Enabled {
		r := audit.NewAsyncRecorder(c.logger, ledger, audit.AsyncRecorderConfig{
			ChannelBufferSize: async.ChannelBufferSize,
			WorkerCount:       async.WorkerCount,
			BatchSize:         async.BatchSize,
			BatchTimeout:      async.BatchTimeout,
		})
		resources.Add("recorder", r)
		recorder = r
	} else {
		recorder = audit.NewRecorder(c.logger, ledger)
	}

	svc := service.NewAuditService(service.Config{
		AnomalyWindow: c.cfg.Anomaly.Window,
		Detector: core.DetectorConfig{
			BruteForceThreshold:      c.cfg.Anomaly.BruteForceThreshold,
			ExcessiveAccessThreshold: c.cfg.Anomaly.ExcessiveAccessThreshold,
		},
		ExportLimit:   c.cfg.Ingest.ExportLimit,
		RetentionDays: c.cfg.Archive.RetentionDays,
	}, ledger, store.Repository, signer, sink, c.logger)

	return &Dependencies{
		Repository: store.Repository,
		Service:    svc,
		Recorder:   recorder,
		Classifier: app_errors.NewErrorClassifier(c.logger),
		Resources:  resources,
	}, nil
}

// AddServers builds the gRPC and HTTP servers and appends them to deps.Resources. It returns
// the bound gRPC port.
func (c *Container) AddServers(deps *Dependencies) (int, error) {
	grpcServer, port, err := app_grpc.New(c.cfg, deps.Service, c.logger, deps.Classifier)
	if err != nil {
		return 0, fmt.Errorf("failed to create gRPC server: %w", err)
	}
	deps.Resources.Add("grpc", grpcServer)

	health := func(r *http.Request) (bool, map[string]lifecycle.HealthStatus) {
		return deps.Resources.Health(r.Context())
	}
	metricsPath := ""
	if c.cfg.Metrics.Enabled {
		metricsPath = c.cfg.Metrics.Path
	}
	router := mux.NewRouter()
	rest.SetupRoutes(router, rest.NewHandler(deps.Service, health, deps.Classifier), metricsPath)
	deps.Resources.Add("http", rest.NewServer(c.cfg.Server.HTTPPort, router, c.logger))

	return port, nil
}

func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) loadAWS(ctx context.Context) (*aws.Config, error) {
	if !c.cfg.AWS.Enabled {
		return nil, nil
	}
	awsCfg, err := infra_aws.LoadConfig(ctx, c.cfg.AWS.Region)
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}

func (c *Container) signingSecret(ctx context.Context, awsCfg *aws.Config) ([]byte, error) {
	var (
		params    secrets.BootstrapSecretProvider
		decrypter secrets.Decrypter
	)
	if awsCfg != nil {
		params = infra_secrets.NewParameterStore(*awsCfg)
		decrypter = infra_aws.NewKMSAdapter(*awsCfg)
	}
	return infra_secrets.ResolveSigningSecret(ctx, c.cfg.Signing, params, decrypter)
}

func (c *Container) archiveSink(awsCfg *aws.Config) (domain.ArchiveSink, error) {
	if c.cfg.Archive.S3Bucket == "" {
		return nil, nil
	}
	if awsCfg == nil {
		return nil, fmt.Errorf("archive bucket %s configured but aws.enabled is false", c.cfg.Archive.S3Bucket)
	}
	return persistence.NewS3ArchiveSink(*awsCfg, c.cfg.Archive.S3Bucket, c.cfg.Archive.S3Prefix, c.logger), nil
}
