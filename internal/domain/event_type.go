package domain

import "fmt"

// EventType identifies what happened. The set is closed; anything outside it is rejected
// at ingestion.
type EventType string

const (
	EventLoginSuccess           EventType = "LOGIN_SUCCESS"
	EventLoginFailed            EventType = "LOGIN_FAILED"
	EventLogout                 EventType = "LOGOUT"
	EventPasswordChanged        EventType = "PASSWORD_CHANGED"
	EventPasswordResetRequested EventType = "PASSWORD_RESET_REQUESTED"
	EventPasswordResetCompleted EventType = "PASSWORD_RESET_COMPLETED"
	EventTwoFactorEnabled       EventType = "TWO_FACTOR_ENABLED"
	EventTwoFactorDisabled      EventType = "TWO_FACTOR_DISABLED"
	EventSessionExpired         EventType = "SESSION_EXPIRED"
	EventTokenRefreshed         EventType = "TOKEN_REFRESHED"

	EventDataCreate EventType = "DATA_CREATE"
	EventDataRead   EventType = "DATA_READ"
	EventDataUpdate EventType = "DATA_UPDATE"
	EventDataDelete EventType = "DATA_DELETE"
	EventDataExport EventType = "DATA_EXPORT"
	EventDataImport EventType = "DATA_IMPORT"

	EventUserCreated       EventType = "USER_CREATED"
	EventUserUpdated       EventType = "USER_UPDATED"
	EventUserDeleted       EventType = "USER_DELETED"
	EventUserBanned        EventType = "USER_BANNED"
	EventUserUnbanned      EventType = "USER_UNBANNED"
	EventUserSuspended     EventType = "USER_SUSPENDED"
	EventUserRoleChanged   EventType = "USER_ROLE_CHANGED"
	EventPermissionGranted EventType = "PERMISSION_GRANTED"
	EventPermissionRevoked EventType = "PERMISSION_REVOKED"

	EventReportCreated   EventType = "REPORT_CREATED"
	EventReportResolved  EventType = "REPORT_RESOLVED"
	EventReportDismissed EventType = "REPORT_DISMISSED"
	EventReportEscalated EventType = "REPORT_ESCALATED"

	EventSystemConfigChanged EventType = "SYSTEM_CONFIG_CHANGED"
	EventSystemBackup        EventType = "SYSTEM_BACKUP"
	EventSystemRestore       EventType = "SYSTEM_RESTORE"
	EventSystemMaintenance   EventType = "SYSTEM_MAINTENANCE"
	EventSystemError         EventType = "SYSTEM_ERROR"

	EventSecurityAlert       EventType = "SECURITY_ALERT"
	EventUnauthorizedAccess  EventType = "UNAUTHORIZED_ACCESS"
	EventSuspiciousActivity  EventType = "SUSPICIOUS_ACTIVITY"
	EventRateLimitExceeded   EventType = "RATE_LIMIT_EXCEEDED"
	EventBreachAttempt       EventType = "BREACH_ATTEMPT"
	EventIPBlocked           EventType = "IP_BLOCKED"
)

// Category groups event types for filtering and compliance reporting.
type Category string

const (
	CategoryAuth           Category = "auth"
	CategoryData           Category = "data"
	CategoryUserManagement Category = "user_management"
	CategoryReport         Category = "report"
	CategorySystem         Category = "system"
	CategorySecurity       Category = "security"
)

// Severity is the derived urgency of an entry.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var eventCategories = map[EventType]Category{
	EventLoginSuccess:           CategoryAuth,
	EventLoginFailed:            CategoryAuth,
	EventLogout:                 CategoryAuth,
	EventPasswordChanged:        CategoryAuth,
	EventPasswordResetRequested: CategoryAuth,
	EventPasswordResetCompleted: CategoryAuth,
	EventTwoFactorEnabled:       CategoryAuth,
	EventTwoFactorDisabled:      CategoryAuth,
	EventSessionExpired:         CategoryAuth,
	EventTokenRefreshed:         CategoryAuth,

	EventDataCreate: CategoryData,
	EventDataRead:   CategoryData,
	EventDataUpdate: CategoryData,
	EventDataDelete: CategoryData,
	EventDataExport: CategoryData,
	EventDataImport: CategoryData,

	EventUserCreated:       CategoryUserManagement,
	EventUserUpdated:       CategoryUserManagement,
	EventUserDeleted:       CategoryUserManagement,
	EventUserBanned:        CategoryUserManagement,
	EventUserUnbanned:      CategoryUserManagement,
	EventUserSuspended:     CategoryUserManagement,
	EventUserRoleChanged:   CategoryUserManagement,
	EventPermissionGranted: CategoryUserManagement,
	EventPermissionRevoked: CategoryUserManagement,

	EventReportCreated:   CategoryReport,
	EventReportResolved:  CategoryReport,
	EventReportDismissed: CategoryReport,
	EventReportEscalated: CategoryReport,

	EventSystemConfigChanged: CategorySystem,
	EventSystemBackup:        CategorySystem,
	EventSystemRestore:       CategorySystem,
	EventSystemMaintenance:   CategorySystem,
	EventSystemError:         CategorySystem,

	EventSecurityAlert:      CategorySecurity,
	EventUnauthorizedAccess: CategorySecurity,
	EventSuspiciousActivity: CategorySecurity,
	EventRateLimitExceeded:  CategorySecurity,
	EventBreachAttempt:      CategorySecurity,
	EventIPBlocked:          CategorySecurity,
}

// ParseEventType returns the EventType for s, or an error when s is not a member of the
// closed set.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventCategories[t]
	return ok
}

// Category returns the category of t, or "" for unknown types.
func (t EventType) Category() Category {
	return eventCategories[t]
}

func (t EventType) String() string {
	return string(t)
}

// EventTypes returns every known event type.
func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventCategories))
	for t := range eventCategories {
		out = append(out, t)
	}
	return out
}

func (c Category) Valid() bool {
	switch c {
	case CategoryAuth, CategoryData, CategoryUserManagement, CategoryReport, CategorySystem, CategorySecurity:
		return true
	}
	return false
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}
