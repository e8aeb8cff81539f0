package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
)

// storedTimeLayout is how text-typed stores keep timestamps: fixed width, so lexical order
// equals chronological order.
const storedTimeLayout = "2006-01-02T15:04:05.000Z"

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// dbTime scans timestamps from drivers that return time.Time (postgres) or text (sqlite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	parsed, err := time.Parse(storedTimeLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("failed to parse timestamp %q: %w", s, err)
		}
	}
	t.Time, t.Valid = parsed.UTC(), true
	return nil
}

func formatStoredTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// lowerBound rounds t up to the next stored millisecond. Timestamps are stored at millisecond
// precision, so "ts >= t" and "ts < t" select the same rows with either value.
func lowerBound(t time.Time) time.Time {
	if r := t.Truncate(time.Millisecond); !r.Equal(t) {
		return r.Add(time.Millisecond)
	}
	return t
}

// ScanEntry scans one row selected with constants.EntryColumns.
func ScanEntry(row rowScanner) (*domain.AuditEntry, error) {
	var (
		e                                   domain.AuditEntry
		ts, archivedAt                      dbTime
		actorRaw, requestRaw, changesRaw    []byte
		environmentRaw, tagsRaw, metadataRaw []byte
		eventType, category, severity       string
	)

	err := row.Scan(
		&e.Seq,
		&e.ID,
		&ts,
		&eventType,
		&category,
		&severity,
		&actorRaw,
		&e.Action,
		&e.Resource,
		&e.ResourceID,
		&e.ResourceType,
		&requestRaw,
		&changesRaw,
		&environmentRaw,
		&e.Signature,
		&e.PreviousHash,
		&e.IsArchived,
		&archivedAt,
		&e.ArchiveID,
		&e.CorrelationID,
		&tagsRaw,
		&metadataRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entry row: %w", err)
	}

	e.Timestamp = ts.Time
	e.EventType = domain.EventType(eventType)
	e.EventCategory = domain.Category(category)
	e.Severity = domain.Severity(severity)
	if archivedAt.Valid {
		at := archivedAt.Time
		e.ArchivedAt = &at
	}

	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"actor", actorRaw, &e.Actor},
		{"request_context", requestRaw, &e.Request},
		{"changes", changesRaw, &e.Changes},
		{"environment", environmentRaw, &e.Environment},
		{"tags", tagsRaw, &e.Tags},
		{"metadata", metadataRaw, &e.Metadata},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s of entry %s: %w", col.name, e.ID, err)
		}
	}

	return &e, nil
}

// decodeJSON keeps numbers as json.Number so re-encoding reproduces the stored text, which is
// what the signature was computed over.
func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

// encodeJSON returns nil for nil values so nullable columns stay NULL.
func encodeJSON(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *domain.Actor:
		if x == nil {
			return nil, nil
		}
	case *domain.RequestContext:
		if x == nil {
			return nil, nil
		}
	case *domain.Changes:
		if x == nil {
			return nil, nil
		}
	case map[string]any:
		if x == nil {
			return nil, nil
		}
	case []string:
		if x == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

// encodedEntry holds the column values shared by every SQL store.
type encodedEntry struct {
	actor, request, changes, environment, tags, metadata []byte
	actorID, actorEmail                                  string
}

func encodeEntry(e *domain.AuditEntry) (*encodedEntry, error) {
	out := &encodedEntry{actorID: e.ActorID()}
	if e.Actor != nil {
		out.actorEmail = e.Actor.Email
	}

	var err error
	for _, col := range []struct {
		name string
		src  any
		dst  *[]byte
	}{
		{"actor", e.Actor, &out.actor},
		{"request_context", e.Request, &out.request},
		{"changes", e.Changes, &out.changes},
		{"environment", e.Environment, &out.environment},
		{"tags", e.Tags, &out.tags},
		{"metadata", e.Metadata, &out.metadata},
	} {
		if *col.dst, err = encodeJSON(col.src); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", col.name, err)
		}
	}
	return out, nil
}
