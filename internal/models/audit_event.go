package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types (lowercase wire tokens).
const (
	AuditAuthSuccess    = "auth_success"
	AuditAuthFailure    = "auth_failure"
	AuditAccessDenied   = "access_denied"
	AuditResourceCreate = "resource_create"
	AuditResourceUpdate = "resource_update"
	AuditResourceDelete = "resource_delete"
	AuditKeyCreated     = "api_key_created"
	AuditKeyRevoked     = "api_key_revoked"
	AuditBudgetDecision = "budget_decision"
)

// Audit outcomes.
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
	AuditOutcomeDenied  = "denied"
)

// Audit severities.
const (
	AuditSeverityInfo     = "info"
	AuditSeverityWarning  = "warning"
	AuditSeverityCritical = "critical"
)

// AuditEvent is one append-only trail entry. Never updated or deleted,
// except by the retention pruning job.
type AuditEvent struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	Actor      string    `gorm:"size:128;index;not null" json:"actor"`
	ActorType  string    `gorm:"size:20;not null" json:"actor_type"` // user, api_key, system
	TenantID   string    `gorm:"size:128;index" json:"tenant_id,omitempty"`
	EventType  string    `gorm:"size:50;index;not null" json:"event_type"`
	Resource   string    `gorm:"size:50" json:"resource,omitempty"`
	ResourceID string    `gorm:"size:128" json:"resource_id,omitempty"`
	Action     string    `gorm:"size:30" json:"action,omitempty"`
	Outcome    string    `gorm:"size:20;not null" json:"outcome"`
	Severity   string    `gorm:"size:20;default:info" json:"severity"`
	ClientIP   string    `gorm:"size:64" json:"client_ip,omitempty"`
	UserAgent  string    `gorm:"size:500" json:"user_agent,omitempty"`
	HTTPMethod string    `gorm:"size:10" json:"http_method,omitempty"`
	HTTPPath   string    `gorm:"size:500" json:"http_path,omitempty"`
	Metadata   JSONMap   `gorm:"type:text" json:"metadata,omitempty"`
}

func (AuditEvent) TableName() string { return "audit_events" }
