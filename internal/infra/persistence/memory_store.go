package persistence

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
)

// MemoryStore is a process-local Log Store used in development and tests. Entries are
// handed out as copies so callers cannot mutate stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*domain.AuditEntry
	prevHash map[string]struct{}
	seq      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prevHash: make(map[string]struct{})}
}

func compareEntries(a, b *domain.AuditEntry) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

func (m *MemoryStore) LatestEntry(ctx context.Context) (*domain.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	return cloneEntry(slices.MaxFunc(m.entries, compareEntries)), nil
}

func (m *MemoryStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.prevHash[entry.PreviousHash]; taken {
		return domain.ErrChainConflict
	}
	m.seq++
	entry.Seq = m.seq
	m.prevHash[entry.PreviousHash] = struct{}{}
	m.entries = append(m.entries, cloneEntry(entry))
	return nil
}

func (m *MemoryStore) ScanRange(ctx context.Context, start, end time.Time, fn func(*domain.AuditEntry) error) error {
	m.mu.RLock()
	var matched []*domain.AuditEntry
	for _, e := range m.entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			matched = append(matched, cloneEntry(e))
		}
	}
	m.mu.RUnlock()

	slices.SortStableFunc(matched, compareEntries)
	for _, e := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var matched []*domain.AuditEntry
	for _, e := range m.entries {
		if matchesFilter(e, filter) {
			matched = append(matched, cloneEntry(e))
		}
	}
	m.mu.RUnlock()

	slices.SortStableFunc(matched, sortFunc(sort))

	if page.Offset >= len(matched) {
		return []*domain.AuditEntry{}, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, nil
}

func (m *MemoryStore) MarkArchived(ctx context.Context, batch domain.ArchiveBatch) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, e := range m.entries {
		if e.IsArchived || !e.Timestamp.Before(batch.Cutoff) {
			continue
		}
		at := batch.ArchivedAt
		e.IsArchived = true
		e.ArchivedAt = &at
		e.ArchiveID = batch.ArchiveID
		n++
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }

// Len reports how many entries are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func matchesFilter(e *domain.AuditEntry, f domain.QueryFilter) bool {
	switch {
	case f.Start != nil && e.Timestamp.Before(*f.Start):
		return false
	case f.End != nil && e.Timestamp.After(*f.End):
		return false
	case f.EventType != "" && e.EventType != f.EventType:
		return false
	case f.Category != "" && e.EventCategory != f.Category:
		return false
	case f.Severity != "" && e.Severity != f.Severity:
		return false
	case f.ActorID != "" && e.ActorID() != f.ActorID:
		return false
	case f.IPAddress != "" && e.Environment.IPAddress != f.IPAddress:
		return false
	case f.ArchiveID != "" && e.ArchiveID != f.ArchiveID:
		return false
	case f.ExcludeArchived && e.IsArchived:
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(e.Action), needle) {
		return true
	}
	return e.Actor != nil && strings.Contains(strings.ToLower(e.Actor.Email), needle)
}

// sortFunc mirrors orderBy for the SQL stores.
func sortFunc(s domain.Sort) func(a, b *domain.AuditEntry) int {
	dir := func(c int) int {
		if s.Ascending {
			return c
		}
		return -c
	}
	newestFirst := func(a, b *domain.AuditEntry) int { return -compareEntries(a, b) }

	switch s.Field {
	case domain.SortBySeverity:
		return func(a, b *domain.AuditEntry) int {
			if c := cmp.Compare(audit.SeverityRank(a.Severity), audit.SeverityRank(b.Severity)); c != 0 {
				return dir(c)
			}
			return newestFirst(a, b)
		}
	case domain.SortByEventType:
		return func(a, b *domain.AuditEntry) int {
			if c := cmp.Compare(a.EventType, b.EventType); c != 0 {
				return dir(c)
			}
			return newestFirst(a, b)
		}
	default:
		return func(a, b *domain.AuditEntry) int { return dir(compareEntries(a, b)) }
	}
}

// cloneEntry deep-copies the mutable parts of an entry. Payload values inside Changes,
// Request and Metadata are shared; they are never mutated after ingestion.
func cloneEntry(e *domain.AuditEntry) *domain.AuditEntry {
	c := *e
	if e.Actor != nil {
		a := *e.Actor
		c.Actor = &a
	}
	if e.Request != nil {
		r := *e.Request
		c.Request = &r
	}
	if e.Changes != nil {
		ch := *e.Changes
		ch.Fields = slices.Clone(e.Changes.Fields)
		c.Changes = &ch
	}
	if e.Environment.Geolocation != nil {
		g := *e.Environment.Geolocation
		c.Environment.Geolocation = &g
	}
	if e.ArchivedAt != nil {
		at := *e.ArchivedAt
		c.ArchivedAt = &at
	}
	c.Tags = slices.Clone(e.Tags)
	c.Metadata = maps.Clone(e.Metadata)
	return &c
}

var _ domain.AuditRepository = (*MemoryStore)(nil)
