package service

import (
	"context"
	"fmt"
	"io"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
)

func (s *auditServiceImpl) Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error) {
	page, sort, err := s.queries.NormalizeQuery(filter, page, sort)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.Query(ctx, filter, page, sort)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query audit log", "error", err)
		return nil, storageFailure("query audit log", err)
	}
	return entries, nil
}

// Export writes at most ExportLimit matching entries and returns how many were written.
func (s *auditServiceImpl) Export(ctx context.Context, w io.Writer, filter domain.QueryFilter, sort domain.Sort, format core.ExportFormat) (int, error) {
	if format != core.ExportJSON && format != core.ExportCSV {
		return 0, fmt.Errorf("%w: unsupported export format %q", app_errors.ErrValidation, format)
	}

	// Normalize against the regular page limit, then lift it to the export limit.
	_, sort, err := s.queries.NormalizeQuery(filter, domain.Page{}, sort)
	if err != nil {
		return 0, err
	}

	entries, err := s.repo.Query(ctx, filter, domain.Page{Limit: s.cfg.ExportLimit}, sort)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query audit log for export", "error", err)
		return 0, storageFailure("query audit log for export", err)
	}

	if err := core.Export(w, format, entries); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "audit log exported", "format", string(format), "count", len(entries))
	return len(entries), nil
}
