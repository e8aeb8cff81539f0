package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/metrics"
	"github.com/spounge-ai/auditchain/internal/validation"
	"go.opentelemetry.io/otel/attribute"
)

type ArchiveResult struct {
	ModifiedCount int64     `json:"modifiedCount"`
	ArchiveID     string    `json:"archiveId,omitempty"`
	Cutoff        time.Time `json:"cutoff"`
}

// ArchiveOldLogs flags every unarchived entry older than daysOld days with one new batch id.
// A daysOld of 0 uses the configured retention. Running it again with the same daysOld touches
// nothing. Entries are never deleted.
func (s *auditServiceImpl) ArchiveOldLogs(ctx context.Context, daysOld int) (*ArchiveResult, error) {
	ctx, span := tracer.Start(ctx, "ArchiveOldLogs")
	defer span.End()

	if daysOld < 0 {
		return nil, fmt.Errorf("%w: daysOld must not be negative, got %d", app_errors.ErrValidation, daysOld)
	}
	if daysOld == 0 {
		daysOld = s.cfg.RetentionDays
	}
	span.SetAttributes(attribute.Int("audit.days_old", daysOld))

	now := s.now()
	batch := domain.ArchiveBatch{
		ArchiveID:  uuid.New().String(),
		ArchivedAt: now,
		Cutoff:     now.Add(-time.Duration(daysOld) * 24 * time.Hour),
	}

	n, err := s.repo.MarkArchived(ctx, batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to archive audit entries", "cutoff", batch.Cutoff, "error", err)
		return nil, storageFailure("archive audit entries", err)
	}

	result := &ArchiveResult{ModifiedCount: n, Cutoff: batch.Cutoff}
	if n == 0 {
		s.logger.InfoContext(ctx, "no audit entries to archive", "cutoff", batch.Cutoff)
		return result, nil
	}
	result.ArchiveID = batch.ArchiveID
	metrics.EntriesArchived.Add(float64(n))

	s.logger.InfoContext(ctx, "audit entries archived",
		slog.String("archive_id", batch.ArchiveID),
		slog.Int64("count", n),
		slog.Time("cutoff", batch.Cutoff))

	if s.sink == nil {
		return result, nil
	}
	if err := s.writeManifest(ctx, batch, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to write archive manifest",
			slog.String("archive_id", batch.ArchiveID),
			slog.String("error", err.Error()))
		return result, fmt.Errorf("%w: %w", app_errors.ErrArchive, err)
	}
	return result, nil
}

func (s *auditServiceImpl) writeManifest(ctx context.Context, batch domain.ArchiveBatch, count int64) error {
	manifest := &domain.ArchiveManifest{
		ArchiveID:  batch.ArchiveID,
		ArchivedAt: batch.ArchivedAt,
		Cutoff:     batch.Cutoff,
		Entries:    make([]domain.ArchiveManifestEntry, 0, count),
	}

	filter := domain.QueryFilter{ArchiveID: batch.ArchiveID}
	sort := domain.Sort{Field: domain.SortByTimestamp, Ascending: true}
	for offset := 0; ; offset += validation.MaxQueryLimit {
		page, err := s.repo.Query(ctx, filter, domain.Page{Limit: validation.MaxQueryLimit, Offset: offset}, sort)
		if err != nil {
			return fmt.Errorf("failed to read archived entries: %w", err)
		}
		for _, e := range page {
			manifest.Entries = append(manifest.Entries, domain.ArchiveManifestEntry{
				ID:           e.ID,
				Timestamp:    e.Timestamp,
				Signature:    e.Signature,
				PreviousHash: e.PreviousHash,
			})
		}
		if len(page) < validation.MaxQueryLimit {
			break
		}
	}
	manifest.Count = len(manifest.Entries)

	return s.sink.PutManifest(ctx, manifest)
}
