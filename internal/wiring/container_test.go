package wiring_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/wiring"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func baseConfig() *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{Mode: "test"},
		Signing:     config.SigningConfig{Secret: "wiring-test-secret-0123456789abcdef"},
		Persistence: config.PersistenceConfig{Type: config.StorageMemory},
		Anomaly:     config.AnomalyConfig{Window: time.Hour, BruteForceThreshold: 5, ExcessiveAccessThreshold: 100},
		Ingest:      config.IngestConfig{MaxConflictRetries: 5, ExportLimit: 100},
		Metrics:     config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestContainerBuildsWorkingService(t *testing.T) {
	container := wiring.NewContainer(baseConfig(), testLogger)
	t.Cleanup(func() { require.NoError(t, container.Close()) })

	deps, err := container.GetDependencies(context.Background())
	require.NoError(t, err)

	deps.Recorder.Record(context.Background(), &domain.IngestRequest{EventType: "SYSTEM_MAINTENANCE", Action: "startup"})
	_, err = deps.Service.Ingest(context.Background(), &domain.IngestRequest{EventType: "LOGOUT", Action: "logout"})
	require.NoError(t, err)

	report, err := deps.Service.VerifyChain(context.Background(), time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.True(t, report.Intact())
}

func TestContainerAsyncRecorderAndServers(t *testing.T) {
	cfg := baseConfig()
	cfg.Persistence = config.PersistenceConfig{
		Type: config.StorageSQLite,
		URL:  filepath.Join(t.TempDir(), "audit.db"),
	}
	cfg.Ingest.Asynchronous = config.AsynchronousAuditingConfig{Enabled: true, BatchTimeout: 10 * time.Millisecond}

	container := wiring.NewContainer(cfg, testLogger)
	t.Cleanup(func() { require.NoError(t, container.Close()) })

	deps, err := container.GetDependencies(context.Background())
	require.NoError(t, err)
	port, err := container.AddServers(deps)
	require.NoError(t, err)
	assert.NotZero(t, port)

	require.NoError(t, deps.Resources.Start(context.Background()))
	deps.Recorder.Record(context.Background(), &domain.IngestRequest{EventType: "SYSTEM_MAINTENANCE", Action: "startup"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, deps.Resources.Stop(ctx))

	entries, err := deps.Service.Query(context.Background(), domain.QueryFilter{}, domain.Page{}, domain.Sort{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventSystemMaintenance, entries[0].EventType)
}

func TestContainerRejectsUnusableConfig(t *testing.T) {
	t.Run("no signing secret", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Signing = config.SigningConfig{}
		_, err := wiring.NewContainer(cfg, testLogger).GetDependencies(context.Background())
		assert.ErrorIs(t, err, app_errors.ErrMissingSigningSecret)
	})

	t.Run("parameter store without aws", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Signing = config.SigningConfig{SSMParameter: "/auditchain/signing"}
		_, err := wiring.NewContainer(cfg, testLogger).GetDependencies(context.Background())
		assert.Error(t, err)
	})

	t.Run("archive bucket without aws", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Archive.S3Bucket = "audit-archive"
		c := wiring.NewContainer(cfg, testLogger)
		t.Cleanup(func() { _ = c.Close() })
		_, err := c.GetDependencies(context.Background())
		assert.ErrorContains(t, err, "aws.enabled")
	})
}
