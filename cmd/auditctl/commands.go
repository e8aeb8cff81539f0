package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/validation"
)

var errChainNotIntact = errors.New("audit chain failed verification")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify signatures and hash links over a time range",
	Long: `Recomputes every entry's signature and checks that each entry links to its
predecessor. Exits non-zero when anything is wrong.`,
	RunE: runVerify,
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Report brute-force, excessive-access and escalation patterns",
	RunE:  runAnomalies,
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Flag entries older than the retention period as archived",
	RunE:  runArchive,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize entries by type, severity, category, actor and hour",
	RunE:  runStats,
}

var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Aggregate a time range for compliance reporting",
	RunE:  runCompliance,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search entries",
	RunE:  runQuery,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest EVENT_TYPE ACTION",
	Short: "Append one entry to the chain",
	Args:  cobra.ExactArgs(2),
	RunE:  runIngest,
}

var (
	rangeStart time.Time
	rangeEnd   time.Time
	since      time.Duration
	startFlag  string
	endFlag    string

	anomalyWindow time.Duration
	archiveDays   int
	statsTopN     int

	filterFlags     domain.QueryFilter
	sortField       string
	sortAscending   bool
	pageLimit       int
	pageOffset      int
	ingestResource  string
	ingestResID     string
	ingestMetadata  string
	ingestActorMail string
)

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "range length ending now, used when --start is empty")
	cmd.Flags().StringVar(&startFlag, "start", "", "range start (RFC 3339)")
	cmd.Flags().StringVar(&endFlag, "end", "", "range end (RFC 3339); defaults to now")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar((*string)(&filterFlags.EventType), "event-type", "", "only this event type")
	cmd.Flags().StringVar((*string)(&filterFlags.Category), "category", "", "only this event category")
	cmd.Flags().StringVar((*string)(&filterFlags.Severity), "severity", "", "only this severity")
	cmd.Flags().StringVar(&filterFlags.ActorID, "actor-id", "", "only entries by this actor")
	cmd.Flags().StringVar(&filterFlags.IPAddress, "ip", "", "only entries from this IP address")
	cmd.Flags().StringVar(&filterFlags.Search, "search", "", "case-insensitive match on action and actor email")
	cmd.Flags().StringVar(&filterFlags.ArchiveID, "archive-id", "", "only entries from this archive batch")
	cmd.Flags().BoolVar(&filterFlags.ExcludeArchived, "exclude-archived", false, "skip archived entries")
	cmd.Flags().StringVar(&startFlag, "start", "", "earliest timestamp (RFC 3339)")
	cmd.Flags().StringVar(&endFlag, "end", "", "latest timestamp (RFC 3339)")
	cmd.Flags().StringVar(&sortField, "sort", "timestamp", "sort field: timestamp, severity or eventType")
	cmd.Flags().BoolVar(&sortAscending, "asc", false, "sort ascending")
}

func init() {
	for _, cmd := range []*cobra.Command{verifyCmd, statsCmd, complianceCmd} {
		addRangeFlags(cmd)
	}
	anomaliesCmd.Flags().DurationVar(&anomalyWindow, "window", 0, "lookback window; 0 uses the configured window")
	archiveCmd.Flags().IntVar(&archiveDays, "days", 0, "archive entries older than this many days; 0 uses the configured retention")
	statsCmd.Flags().IntVar(&statsTopN, "top", 10, "number of top actors to list")

	addFilterFlags(queryCmd)
	queryCmd.Flags().IntVar(&pageLimit, "limit", validation.DefaultQueryLimit, "page size")
	queryCmd.Flags().IntVar(&pageOffset, "offset", 0, "page offset")

	ingestCmd.Flags().StringVar(&ingestResource, "resource", "", "resource name")
	ingestCmd.Flags().StringVar(&ingestResID, "resource-id", "", "resource id")
	ingestCmd.Flags().StringVar(&ingestActorMail, "actor-email", "", "actor email; requires --actor")
	ingestCmd.Flags().StringVar(&ingestMetadata, "metadata", "", "metadata as a JSON object")

	rootCmd.AddCommand(verifyCmd, anomaliesCmd, archiveCmd, statsCmd, complianceCmd, queryCmd, ingestCmd)
}

// resolveRange turns --start/--end/--since into a concrete range.
func resolveRange() error {
	rangeEnd = time.Now().UTC()
	if endFlag != "" {
		t, err := time.Parse(time.RFC3339Nano, endFlag)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		rangeEnd = t
	}
	rangeStart = rangeEnd.Add(-since)
	if startFlag != "" {
		t, err := time.Parse(time.RFC3339Nano, startFlag)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		rangeStart = t
	}
	return nil
}

// queryFilter applies --start/--end on top of the filter flags.
func queryFilter() (domain.QueryFilter, error) {
	f := filterFlags
	parse := func(v string) (*time.Time, error) {
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", v, err)
		}
		return &t, nil
	}
	var err error
	if f.Start, err = parse(startFlag); err != nil {
		return f, err
	}
	if f.End, err = parse(endFlag); err != nil {
		return f, err
	}
	return f, nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	if err := resolveRange(); err != nil {
		return err
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		report, err := s.api.VerifyChain(ctx, rangeStart, rangeEnd)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if !report.Intact() {
			return fmt.Errorf("%w: %d of %d entries invalid", errChainNotIntact, report.Invalid, report.Total)
		}
		return nil
	})
}

func runAnomalies(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		records, err := s.api.DetectAnomalies(ctx, anomalyWindow)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), records)
	})
}

func runArchive(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		result, err := s.api.ArchiveOldLogs(ctx, archiveDays)
		if result != nil {
			if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
				return perr
			}
		}
		return err
	})
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := resolveRange(); err != nil {
		return err
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		stats, err := s.api.GetStats(ctx, rangeStart, rangeEnd, statsTopN)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	})
}

func runCompliance(cmd *cobra.Command, _ []string) error {
	if err := resolveRange(); err != nil {
		return err
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		report, err := s.api.AggregateForCompliance(ctx, rangeStart, rangeEnd)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	})
}

func runQuery(cmd *cobra.Command, _ []string) error {
	filter, err := queryFilter()
	if err != nil {
		return err
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		entries, err := s.api.Query(ctx, filter,
			domain.Page{Limit: pageLimit, Offset: pageOffset},
			domain.Sort{Field: domain.SortField(sortField), Ascending: sortAscending})
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []*domain.AuditEntry{}
		}
		return printJSON(cmd.OutOrStdout(), entries)
	})
}

func runIngest(cmd *cobra.Command, args []string) error {
	req := &domain.IngestRequest{
		EventType:  args[0],
		Action:     args[1],
		Resource:   ingestResource,
		ResourceID: ingestResID,
	}
	if actorID != "" {
		req.Actor = &domain.Actor{UserID: actorID, Email: ingestActorMail}
	}
	if ingestMetadata != "" {
		if err := json.Unmarshal([]byte(ingestMetadata), &req.Metadata); err != nil {
			return fmt.Errorf("invalid --metadata: %w", err)
		}
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		entry, err := s.api.Ingest(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), entry)
	})
}
