package models

import (
	"time"

	"github.com/google/uuid"
)

// DLQ item statuses.
const (
	DlqStatusPending   = "pending"
	DlqStatusInFlight  = "in_flight"
	DlqStatusSucceeded = "succeeded"
	DlqStatusFailed    = "failed"
	DlqStatusExpired   = "expired"
	DlqStatusArchived  = "archived"
)

// DLQ failure reasons. Validation and authorization failures are not
// retryable and short-circuit to failed.
const (
	DlqReasonValidation    = "validation_error"
	DlqReasonAuthorization = "authorization_error"
	DlqReasonNetwork       = "network_error"
	DlqReasonTimeout       = "timeout"
	DlqReasonStorage       = "storage_error"
	DlqReasonDownstream    = "service_unavailable"
	DlqReasonInternal      = "internal_error"
)

// DlqItem is one failed operation held for retry.
type DlqItem struct {
	ID            uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID      string     `gorm:"size:128;index;not null" json:"tenant_id"`
	Payload       string     `gorm:"type:text;not null" json:"payload"`
	ItemType      string     `gorm:"size:50;not null" json:"item_type"`
	Source        string     `gorm:"size:50" json:"source,omitempty"`
	CorrelationID string     `gorm:"size:128" json:"correlation_id,omitempty"`
	FailureReason string     `gorm:"size:50;not null" json:"failure_reason"`
	ErrorMessage  string     `gorm:"size:2000" json:"error_message"`
	Status        string     `gorm:"size:20;index;default:pending" json:"status"`
	AttemptCount  int        `gorm:"default:0" json:"attempt_count"`
	MaxRetries    int        `json:"max_retries"`
	NextRetryAt   *time.Time `gorm:"index" json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RetryHistory  JSONMap    `gorm:"type:text" json:"retry_history,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (DlqItem) TableName() string { return "dlq_items" }

// Retryable reports whether the failure reason permits another attempt.
func DlqReasonRetryable(reason string) bool {
	switch reason {
	case DlqReasonValidation, DlqReasonAuthorization:
		return false
	default:
		return true
	}
}
