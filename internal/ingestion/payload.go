package ingestion

import (
	"time"

	"github.com/costwatch/costwatch/internal/models"
)

// Ingestion response statuses (lowercase wire tokens).
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// MaxBatchSize bounds one batch submission.
const MaxBatchSize = 1000

// UsageWebhookPayload is the inbound shape for one usage event.
// request_id is optional; the server generates one when absent.
type UsageWebhookPayload struct {
	RequestID        string            `json:"request_id,omitempty"`
	TenantID         string            `json:"tenant_id"`
	ProjectID        string            `json:"project_id,omitempty"`
	UserID           string            `json:"user_id,omitempty"`
	Provider         string            `json:"provider"`
	Model            string            `json:"model"`
	ModelVersion     string            `json:"model_version,omitempty"`
	PromptTokens     int64             `json:"prompt_tokens"`
	CompletionTokens int64             `json:"completion_tokens"`
	TotalTokens      int64             `json:"total_tokens"`
	CachedTokens     *int64            `json:"cached_tokens,omitempty"`
	ReasoningTokens  *int64            `json:"reasoning_tokens,omitempty"`
	LatencyMs        *int64            `json:"latency_ms,omitempty"`
	TTFTMs           *int64            `json:"time_to_first_token_ms,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Source           string            `json:"source,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// BatchIngestionRequest wraps 1..MaxBatchSize payloads.
type BatchIngestionRequest struct {
	Records []UsageWebhookPayload `json:"records"`
}

// IngestError reports one failed payload. Index is the position in the
// submitted batch (always 0 for single submissions).
type IngestError struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IngestionResponse is the aggregate outcome of a submission.
type IngestionResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Status    string        `json:"status"`
	Accepted  int           `json:"accepted"`
	Rejected  int           `json:"rejected"`
	Errors    []IngestError `json:"errors,omitempty"`
}

// toRecord converts a validated payload into the persistence model.
func (p *UsageWebhookPayload) toRecord(ingestedAt time.Time) *models.UsageRecord {
	source := p.Source
	if source == "" {
		source = models.SourceWebhook
	}
	var meta models.JSONMap
	if len(p.Metadata) > 0 {
		meta = make(models.JSONMap, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
	}
	return &models.UsageRecord{
		RequestID:        p.RequestID,
		TenantID:         p.TenantID,
		ProjectID:        p.ProjectID,
		UserID:           p.UserID,
		Provider:         p.Provider,
		Model:            p.Model,
		ModelVersion:     p.ModelVersion,
		PromptTokens:     p.PromptTokens,
		CompletionTokens: p.CompletionTokens,
		TotalTokens:      p.TotalTokens,
		CachedTokens:     p.CachedTokens,
		ReasoningTokens:  p.ReasoningTokens,
		LatencyMs:        p.LatencyMs,
		TTFTMs:           p.TTFTMs,
		Tags:             models.StringSlice(p.Tags),
		Metadata:         meta,
		Source:           source,
		Timestamp:        p.Timestamp.UTC(),
		IngestedAt:       ingestedAt,
	}
}
