// Command auditctl operates on an audit chain, either directly against the configured store or
// through a running auditchain server (--addr).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/client"
	"github.com/spounge-ai/auditchain/internal/domain"
	infra_config "github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/infra/logging"
	"github.com/spounge-ai/auditchain/internal/service"
	"github.com/spounge-ai/auditchain/internal/wiring"
)

var rootCmd = &cobra.Command{
	Use:   "auditctl",
	Short: "Inspect and maintain a tamper-evident audit chain",
	Long: `auditctl verifies, queries, exports and archives audit entries.

Without --addr it opens the store named in the config file. With --addr it talks to a
running auditchain server over gRPC.`,
	SilenceUsage: true,
}

var (
	configPath string
	serverAddr string
	actorID    string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("AUDITCHAIN_CONFIG_PATH"), "config file path")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "auditchain gRPC address; empty opens the store directly")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "", "actor id recorded for remote calls")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// auditAPI is the part of the audit service reachable both locally and over gRPC.
type auditAPI interface {
	Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.AuditEntry, error)
	Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error)
	VerifyChain(ctx context.Context, start, end time.Time) (*core.VerificationReport, error)
	DetectAnomalies(ctx context.Context, window time.Duration) ([]core.AnomalyRecord, error)
	ArchiveOldLogs(ctx context.Context, daysOld int) (*service.ArchiveResult, error)
	GetStats(ctx context.Context, start, end time.Time, topN int) (*core.Stats, error)
	AggregateForCompliance(ctx context.Context, start, end time.Time) (*core.ComplianceReport, error)
}

// session is an opened backend plus whatever must be released afterwards.
type session struct {
	api    auditAPI
	local  service.AuditService
	cfg    *infra_config.Config
	logger *slog.Logger
	close  func() error
}

func cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(logging.NewHandler(os.Stderr, "text", level))
}

func openSession(ctx context.Context) (*session, error) {
	logger := cliLogger()

	if serverAddr != "" {
		c, err := client.Dial(serverAddr)
		if err != nil {
			return nil, err
		}
		return &session{api: c, logger: logger, close: c.Close}, nil
	}

	cfg, err := infra_config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	container := wiring.NewContainer(cfg, logger)
	deps, err := container.GetDependencies(ctx)
	if err != nil {
		_ = container.Close()
		return nil, err
	}
	return &session{api: deps.Service, local: deps.Service, cfg: cfg, logger: logger, close: container.Close}, nil
}

// withSession opens a backend for the duration of fn.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if actorID != "" {
		ctx = client.WithActor(ctx, domain.Actor{UserID: actorID})
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()
	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
