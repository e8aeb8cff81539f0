package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
)

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		name   string
		event  domain.EventType
		status int
		want   domain.Severity
	}{
		{"data delete", domain.EventDataDelete, 0, domain.SeverityCritical},
		{"user deleted", domain.EventUserDeleted, 0, domain.SeverityCritical},
		{"breach", domain.EventBreachAttempt, 0, domain.SeverityCritical},
		{"security category", domain.EventIPBlocked, 0, domain.SeverityHigh},
		{"server error", domain.EventDataRead, 503, domain.SeverityHigh},
		{"update", domain.EventDataUpdate, 200, domain.SeverityMedium},
		{"role change", domain.EventUserRoleChanged, 0, domain.SeverityMedium},
		{"create", domain.EventDataCreate, 201, domain.SeverityLow},
		{"report created", domain.EventReportCreated, 0, domain.SeverityLow},
		{"login", domain.EventLoginSuccess, 0, domain.SeverityInfo},
		{"client error", domain.EventDataRead, 404, domain.SeverityInfo},
		{"unknown", domain.EventType("NOPE"), 0, domain.SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, audit.SeverityOf(tt.event, tt.status))
		})
	}
}

func TestIsSecurityEvent(t *testing.T) {
	assert.True(t, audit.IsSecurityEvent(domain.EventLoginFailed))
	assert.True(t, audit.IsSecurityEvent(domain.EventUserBanned))
	assert.True(t, audit.IsSecurityEvent(domain.EventPermissionRevoked))
	assert.False(t, audit.IsSecurityEvent(domain.EventRateLimitExceeded))
	assert.False(t, audit.IsSecurityEvent(domain.EventLoginSuccess))
	assert.False(t, audit.IsSecurityEvent(domain.EventType("NOPE")))
}

func TestClassify(t *testing.T) {
	e := &domain.AuditEntry{
		EventType: domain.EventDataRead,
		Request:   &domain.RequestContext{StatusCode: 500},
	}
	audit.Classify(e)
	assert.Equal(t, domain.CategoryData, e.EventCategory)
	assert.Equal(t, domain.SeverityHigh, e.Severity)
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, audit.SeverityRank(domain.SeverityCritical), audit.SeverityRank(domain.SeverityHigh))
	assert.Greater(t, audit.SeverityRank(domain.SeverityLow), audit.SeverityRank(domain.SeverityInfo))
}
