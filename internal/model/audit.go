package model

import "time"

// AuditKind classifies audit trail entries.
type AuditKind string

const (
	AuditAuthenticated         AuditKind = "authenticated"
	AuditCheckedOut            AuditKind = "checked_out"
	AuditProfileDownloaded     AuditKind = "profile_downloaded"
	AuditCommandCompleted      AuditKind = "command_completed"
	AuditCommandFailed         AuditKind = "command_failed"
	AuditSecurityInfo          AuditKind = "security_info"
	AuditProhibitedApps        AuditKind = "prohibited_apps_detected"
	AuditRestrictionViolations AuditKind = "restriction_violations"
	AuditWakeFailed            AuditKind = "wake_failed"
)

// AuditEvent is one append-only audit trail entry.
type AuditEvent struct {
	ID        uint64    `json:"id"`
	UDID      string    `json:"udid"`
	Kind      AuditKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditFilter describes query parameters for audit searching.
type AuditFilter struct {
	UDID      string
	Kind      AuditKind
	BeginTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// AuditPage is a paginated audit query result.
type AuditPage struct {
	Data     []*AuditEvent `json:"data"`
	Total    int           `json:"total"`
	Pages    int           `json:"pages"`
	PageNum  int           `json:"pageNum"`
	PageSize int           `json:"pageSize"`
}
