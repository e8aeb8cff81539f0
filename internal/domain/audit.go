package domain

import (
	"context"
	"errors"
	"time"
)

// ErrChainConflict is returned by AuditRepository.Append when another entry already links to
// the same previous signature.
var ErrChainConflict = errors.New("chain head moved during append")

// AuditLogger is the fail-open entry point used by collaborators. Record never returns an
// error; failures are logged and counted by the implementation.
type AuditLogger interface {
	Record(ctx context.Context, req *IngestRequest)
}

// Actor identifies who performed an action. A nil Actor on an entry means the system.
type Actor struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
}

type RequestContext struct {
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	Query      any    `json:"query,omitempty"`
	Body       any    `json:"body,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// Changes is the before/after diff attached to a mutating action. It is part of the signed
// payload.
type Changes struct {
	Before any      `json:"before,omitempty"`
	After  any      `json:"after,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

type Geolocation struct {
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

type Environment struct {
	IPAddress   string       `json:"ipAddress,omitempty"`
	UserAgent   string       `json:"userAgent,omitempty"`
	Geolocation *Geolocation `json:"geolocation,omitempty"`
}

// AuditEntry is the only persisted entity. Everything except the archive fields is immutable
// once appended.
type AuditEntry struct {
	ID            string          `json:"id"`
	Seq           int64           `json:"seq,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	EventType     EventType       `json:"eventType"`
	EventCategory Category        `json:"eventCategory"`
	Severity      Severity        `json:"severity"`
	Actor         *Actor          `json:"actor,omitempty"`
	Action        string          `json:"action"`
	Resource      string          `json:"resource,omitempty"`
	ResourceID    string          `json:"resourceId,omitempty"`
	ResourceType  string          `json:"resourceType,omitempty"`
	Request       *RequestContext `json:"requestContext,omitempty"`
	Changes       *Changes        `json:"changes,omitempty"`
	Environment   Environment     `json:"environment"`
	Signature     string          `json:"signature"`
	PreviousHash  string          `json:"previousHash"`
	IsArchived    bool            `json:"isArchived"`
	ArchivedAt    *time.Time      `json:"archivedAt,omitempty"`
	ArchiveID     string          `json:"archiveId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// ActorID returns the actor's user id, or "" for system entries.
func (e *AuditEntry) ActorID() string {
	if e.Actor == nil {
		return ""
	}
	return e.Actor.UserID
}

// StatusCode returns the recorded response status, or 0 when absent.
func (e *AuditEntry) StatusCode() int {
	if e.Request == nil {
		return 0
	}
	return e.Request.StatusCode
}

// IngestRequest carries everything a collaborator supplies for a new entry. Derived fields
// (id, timestamp, classification, chain fields) are never accepted from callers.
type IngestRequest struct {
	EventType     string          `json:"eventType"     validate:"required,event_type"`
	Action        string          `json:"action"        validate:"required,max=1024"`
	Actor         *Actor          `json:"actor,omitempty"`
	Resource      string          `json:"resource,omitempty"     validate:"max=256"`
	ResourceID    string          `json:"resourceId,omitempty"   validate:"max=256"`
	ResourceType  string          `json:"resourceType,omitempty" validate:"max=128"`
	Request       *RequestContext `json:"requestContext,omitempty"`
	Changes       *Changes        `json:"changes,omitempty"`
	Environment   Environment     `json:"environment"`
	CorrelationID string          `json:"correlationId,omitempty" validate:"max=128"`
	Tags          []string        `json:"tags,omitempty"          validate:"max=32,dive,max=64"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// QueryFilter narrows Query results. Zero values mean "no constraint".
type QueryFilter struct {
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	EventType       EventType  `json:"eventType,omitempty"`
	Category        Category   `json:"eventCategory,omitempty"`
	Severity        Severity   `json:"severity,omitempty"`
	ActorID         string     `json:"actorId,omitempty"`
	IPAddress       string     `json:"ipAddress,omitempty"`
	Search          string     `json:"search,omitempty"`
	ArchiveID       string     `json:"archiveId,omitempty"`
	ExcludeArchived bool       `json:"excludeArchived,omitempty"`
}

type Page struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortBySeverity  SortField = "severity"
	SortByEventType SortField = "eventType"
)

type Sort struct {
	Field     SortField `json:"field,omitempty"`
	Ascending bool      `json:"ascending,omitempty"`
}

// ArchiveBatch describes one archiving pass.
type ArchiveBatch struct {
	ArchiveID  string
	ArchivedAt time.Time
	Cutoff     time.Time
}

// AuditRepository is the Log Store contract. Implementations order entries by
// (timestamp, seq).
type AuditRepository interface {
	// LatestEntry returns the chain head, or (nil, nil) for an empty store.
	LatestEntry(ctx context.Context) (*AuditEntry, error)
	// Append persists entry and assigns Seq. It fails with ErrChainConflict when an entry
	// with the same PreviousHash already exists.
	Append(ctx context.Context, entry *AuditEntry) error
	// ScanRange streams entries with timestamp in [start, end] in ascending order.
	ScanRange(ctx context.Context, start, end time.Time, fn func(*AuditEntry) error) error
	Query(ctx context.Context, filter QueryFilter, page Page, sort Sort) ([]*AuditEntry, error)
	// MarkArchived flags every unarchived entry older than batch.Cutoff and returns how many
	// rows changed.
	MarkArchived(ctx context.Context, batch ArchiveBatch) (int64, error)
	Close() error
}

// ArchiveManifestEntry is the per-entry record kept in an archive manifest.
type ArchiveManifestEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Signature    string    `json:"signature"`
	PreviousHash string    `json:"previousHash"`
}

type ArchiveManifest struct {
	ArchiveID  string                 `json:"archiveId"`
	ArchivedAt time.Time              `json:"archivedAt"`
	Cutoff     time.Time              `json:"cutoff"`
	Count      int                    `json:"count"`
	Entries    []ArchiveManifestEntry `json:"entries"`
}

// ArchiveSink receives a manifest for every archiving pass that touched at least one entry.
type ArchiveSink interface {
	PutManifest(ctx context.Context, manifest *ArchiveManifest) error
}
