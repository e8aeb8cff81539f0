package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
)

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ParseExportFormat accepts "json" or "csv", case-insensitively. Empty means json.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ExportJSON):
		return ExportJSON, nil
	case string(ExportCSV):
		return ExportCSV, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", app_errors.ErrValidation, s)
	}
}

var csvHeader = []string{
	"id", "timestamp", "eventType", "eventCategory", "severity", "actorId", "actorEmail",
	"action", "resource", "resourceId", "ipAddress", "statusCode", "signature", "previousHash",
	"isArchived", "archiveId",
}

// Export writes entries to w in the given format.
func Export(w io.Writer, format ExportFormat, entries []*domain.AuditEntry) error {
	switch format {
	case ExportCSV:
		return exportCSV(w, entries)
	case ExportJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []*domain.AuditEntry{}
		}
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported export format %q", app_errors.ErrValidation, format)
	}
}

func exportCSV(w io.Writer, entries []*domain.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		var email string
		if e.Actor != nil {
			email = e.Actor.Email
		}
		status := ""
		if code := e.StatusCode(); code != 0 {
			status = strconv.Itoa(code)
		}
		row := []string{
			e.ID,
			FormatTimestamp(e.Timestamp),
			string(e.EventType),
			string(e.EventCategory),
			string(e.Severity),
			e.ActorID(),
			email,
			e.Action,
			e.Resource,
			e.ResourceID,
			e.Environment.IPAddress,
			status,
			e.Signature,
			e.PreviousHash,
			strconv.FormatBool(e.IsArchived),
			e.ArchiveID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
