package audit_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func loginFailures(ip string, n int) []*domain.AuditEntry {
	out := make([]*domain.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.AuditEntry{
			ID:          fmt.Sprintf("%s-%d", ip, i),
			Timestamp:   t0.Add(time.Duration(i) * time.Second),
			EventType:   domain.EventLoginFailed,
			Actor:       &domain.Actor{UserID: fmt.Sprintf("u%d", i%2)},
			Environment: domain.Environment{IPAddress: ip},
		})
	}
	return out
}

func dataReads(actor string, n int) []*domain.AuditEntry {
	out := make([]*domain.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.AuditEntry{
			ID:        fmt.Sprintf("%s-%d", actor, i),
			Timestamp: t0,
			EventType: domain.EventDataRead,
			Actor:     &domain.Actor{UserID: actor},
			Resource:  fmt.Sprintf("doc-%d", i%10),
		})
	}
	return out
}

func TestBruteForceThreshold(t *testing.T) {
	d := audit.NewDetector(audit.DetectorConfig{})

	records := d.Detect(loginFailures("10.0.0.1", 5))
	require.Len(t, records, 1)
	assert.Equal(t, audit.AnomalyBruteForce, records[0].Type)
	require.Len(t, records[0].Details, 1)
	assert.Equal(t, "10.0.0.1", records[0].Details[0].IP)
	assert.Equal(t, 5, records[0].Details[0].Count)
	assert.Equal(t, 2, records[0].Details[0].DistinctActors)

	assert.Empty(t, d.Detect(loginFailures("10.0.0.1", 4)))
}

func TestExcessiveDataAccessThreshold(t *testing.T) {
	d := audit.NewDetector(audit.DetectorConfig{})

	records := d.Detect(dataReads("bob", 100))
	require.Len(t, records, 1)
	assert.Equal(t, audit.AnomalyExcessiveDataAccess, records[0].Type)
	assert.Equal(t, "bob", records[0].Details[0].Actor)
	assert.Equal(t, 100, records[0].Details[0].Count)
	assert.Equal(t, 10, records[0].Details[0].DistinctResources)

	assert.Empty(t, d.Detect(dataReads("bob", 99)))
}

func TestSystemDataAccessIsNotGrouped(t *testing.T) {
	d := audit.NewDetector(audit.DetectorConfig{ExcessiveAccessThreshold: 1})
	entries := []*domain.AuditEntry{{ID: "s", EventType: domain.EventDataExport}}
	assert.Empty(t, d.Detect(entries))
}

func TestPrivilegeEscalationDetails(t *testing.T) {
	d := audit.NewDetector(audit.DetectorConfig{})
	entries := []*domain.AuditEntry{
		{ID: "late", Timestamp: t0.Add(time.Minute), EventType: domain.EventUnauthorizedAccess, Actor: &domain.Actor{UserID: "m"}, Resource: "/admin"},
		{ID: "early", Timestamp: t0, EventType: domain.EventUnauthorizedAccess, Environment: domain.Environment{IPAddress: "1.2.3.4"}},
	}

	records := d.Detect(entries)
	require.Len(t, records, 1)
	assert.Equal(t, audit.AnomalyPrivilegeEscalation, records[0].Type)
	require.Len(t, records[0].Details, 2)
	assert.Equal(t, "early", records[0].Details[0].EntryID)
	assert.Equal(t, "1.2.3.4", records[0].Details[0].IP)
	assert.Equal(t, "late", records[0].Details[1].EntryID)
	assert.Equal(t, "m", records[0].Details[1].Actor)
	assert.Equal(t, "/admin", records[0].Details[1].Resource)
}

func TestDetectOrderingAndCustomThresholds(t *testing.T) {
	d := audit.NewDetector(audit.DetectorConfig{BruteForceThreshold: 2, ExcessiveAccessThreshold: 3})

	var entries []*domain.AuditEntry
	entries = append(entries, loginFailures("b-ip", 3)...)
	entries = append(entries, loginFailures("a-ip", 3)...)
	entries = append(entries, loginFailures("c-ip", 4)...)
	entries = append(entries, loginFailures("d-ip", 1)...)
	entries = append(entries, dataReads("zed", 3)...)
	entries = append(entries, &domain.AuditEntry{ID: "x", EventType: domain.EventUnauthorizedAccess, Timestamp: t0})

	records := d.Detect(entries)
	require.Len(t, records, 3)
	assert.Equal(t, audit.AnomalyBruteForce, records[0].Type)
	assert.Equal(t, audit.AnomalyExcessiveDataAccess, records[1].Type)
	assert.Equal(t, audit.AnomalyPrivilegeEscalation, records[2].Type)

	ips := make([]string, 0, len(records[0].Details))
	for _, det := range records[0].Details {
		ips = append(ips, det.IP)
	}
	assert.Equal(t, []string{"c-ip", "a-ip", "b-ip"}, ips)
}

func TestDetectEmpty(t *testing.T) {
	assert.Empty(t, audit.NewDetector(audit.DetectorConfig{}).Detect(nil))
}
