package audit

import "github.com/spounge-ai/auditchain/internal/domain"

var criticalEvents = map[domain.EventType]struct{}{
	domain.EventDataDelete:    {},
	domain.EventUserDeleted:   {},
	domain.EventBreachAttempt: {},
}

var mediumEvents = map[domain.EventType]struct{}{
	domain.EventDataUpdate:          {},
	domain.EventUserUpdated:         {},
	domain.EventUserRoleChanged:     {},
	domain.EventPermissionGranted:   {},
	domain.EventPermissionRevoked:   {},
	domain.EventSystemConfigChanged: {},
}

var lowEvents = map[domain.EventType]struct{}{
	domain.EventDataCreate:    {},
	domain.EventUserCreated:   {},
	domain.EventReportCreated: {},
}

var securityEvents = map[domain.EventType]struct{}{
	domain.EventLoginFailed:        {},
	domain.EventUnauthorizedAccess: {},
	domain.EventBreachAttempt:      {},
	domain.EventSuspiciousActivity: {},
	domain.EventSecurityAlert:      {},
	domain.EventIPBlocked:          {},
	domain.EventUserBanned:         {},
	domain.EventPermissionRevoked:  {},
}

// SeverityOf classifies an event. statusCode 0 means no response status was recorded.
// Unknown event types fall through to info.
func SeverityOf(t domain.EventType, statusCode int) domain.Severity {
	if _, ok := criticalEvents[t]; ok {
		return domain.SeverityCritical
	}
	if t.Category() == domain.CategorySecurity || statusCode >= 500 {
		return domain.SeverityHigh
	}
	if _, ok := mediumEvents[t]; ok {
		return domain.SeverityMedium
	}
	if _, ok := lowEvents[t]; ok {
		return domain.SeverityLow
	}
	return domain.SeverityInfo
}

// IsSecurityEvent reports whether t is an auth failure, breach, ban or permission revocation.
func IsSecurityEvent(t domain.EventType) bool {
	_, ok := securityEvents[t]
	return ok
}

// CategoryOf returns the category of t, or "" for unknown types.
func CategoryOf(t domain.EventType) domain.Category {
	return t.Category()
}

// Classify fills in the derived category and severity of entry.
func Classify(entry *domain.AuditEntry) {
	entry.EventCategory = CategoryOf(entry.EventType)
	entry.Severity = SeverityOf(entry.EventType, entry.StatusCode())
}

var severityRank = map[domain.Severity]int{
	domain.SeverityCritical: 4,
	domain.SeverityHigh:     3,
	domain.SeverityMedium:   2,
	domain.SeverityLow:      1,
	domain.SeverityInfo:     0,
}

// SeverityRank orders severities from info (0) to critical (4).
func SeverityRank(s domain.Severity) int {
	return severityRank[s]
}
