package models

import (
	"time"

	"github.com/google/uuid"
)

// Ingestion source descriptors.
const (
	SourceAPI     = "api"
	SourceWebhook = "webhook"
	SourceBatch   = "batch"
	SourceStream  = "stream"
)

// UsageRecord is one LLM request's token usage as reported by an upstream
// source. Immutable once ingested.
type UsageRecord struct {
	ID               uuid.UUID   `gorm:"type:char(36);primaryKey" json:"id"`
	RequestID        string      `gorm:"size:128;uniqueIndex:idx_usage_tenant_request;not null" json:"request_id"`
	TenantID         string      `gorm:"size:128;uniqueIndex:idx_usage_tenant_request;index;not null" json:"tenant_id"`
	ProjectID        string      `gorm:"size:128;index" json:"project_id,omitempty"`
	UserID           string      `gorm:"size:128" json:"user_id,omitempty"`
	Provider         string      `gorm:"size:50;index;not null" json:"provider"`
	Model            string      `gorm:"size:100;index;not null" json:"model"`
	ModelVersion     string      `gorm:"size:50" json:"model_version,omitempty"`
	ContextWindow    int         `json:"context_window,omitempty"`
	PromptTokens     int64       `json:"prompt_tokens"`
	CompletionTokens int64       `json:"completion_tokens"`
	TotalTokens      int64       `json:"total_tokens"`
	CachedTokens     *int64      `json:"cached_tokens,omitempty"`
	ReasoningTokens  *int64      `json:"reasoning_tokens,omitempty"`
	LatencyMs        *int64      `json:"latency_ms,omitempty"`
	TTFTMs           *int64      `json:"time_to_first_token_ms,omitempty"`
	Tags             StringSlice `gorm:"type:text" json:"tags,omitempty"`
	Metadata         JSONMap     `gorm:"type:text" json:"metadata,omitempty"`
	Source           string      `gorm:"size:20;default:api" json:"source"`
	Timestamp        time.Time   `gorm:"index;not null" json:"timestamp"`
	IngestedAt       time.Time   `gorm:"index" json:"ingested_at"`
}

func (UsageRecord) TableName() string { return "usage_records" }
