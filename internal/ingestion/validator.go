package ingestion

import (
	"fmt"
	"time"
)

// Field length bounds for inbound payloads.
const (
	maxTenantIDLen  = 128
	maxRequestIDLen = 128
	maxProviderLen  = 50
	maxModelLen     = 100
	maxTagLen       = 100
	maxTags         = 20

	// Clock skew tolerated before a timestamp counts as "in the future".
	futureSkew = 5 * time.Minute
)

// FieldError is one validation failure with the offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }

// Validator performs structural and semantic checks on usage payloads.
// It never touches storage.
type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// Validate returns every problem found, not just the first.
func (v *Validator) Validate(p *UsageWebhookPayload) []FieldError {
	var errs []FieldError

	// Structural checks.
	if p.TenantID == "" {
		errs = append(errs, FieldError{"tenant_id", "is required"})
	} else if len(p.TenantID) > maxTenantIDLen {
		errs = append(errs, FieldError{"tenant_id", fmt.Sprintf("exceeds %d characters", maxTenantIDLen)})
	}
	if len(p.RequestID) > maxRequestIDLen {
		errs = append(errs, FieldError{"request_id", fmt.Sprintf("exceeds %d characters", maxRequestIDLen)})
	}
	if p.Provider == "" {
		errs = append(errs, FieldError{"provider", "is required"})
	} else if len(p.Provider) > maxProviderLen {
		errs = append(errs, FieldError{"provider", fmt.Sprintf("exceeds %d characters", maxProviderLen)})
	}
	if p.Model == "" {
		errs = append(errs, FieldError{"model", "is required"})
	} else if len(p.Model) > maxModelLen {
		errs = append(errs, FieldError{"model", fmt.Sprintf("exceeds %d characters", maxModelLen)})
	}
	if len(p.Tags) > maxTags {
		errs = append(errs, FieldError{"tags", fmt.Sprintf("exceeds %d entries", maxTags)})
	}
	for i, tag := range p.Tags {
		if len(tag) > maxTagLen {
			errs = append(errs, FieldError{fmt.Sprintf("tags[%d]", i), fmt.Sprintf("exceeds %d characters", maxTagLen)})
		}
	}

	// Semantic checks.
	if p.PromptTokens < 0 {
		errs = append(errs, FieldError{"prompt_tokens", "must not be negative"})
	}
	if p.CompletionTokens < 0 {
		errs = append(errs, FieldError{"completion_tokens", "must not be negative"})
	}
	if p.TotalTokens <= 0 {
		errs = append(errs, FieldError{"total_tokens", "must be positive"})
	}
	if p.PromptTokens >= 0 && p.CompletionTokens >= 0 && p.TotalTokens != p.PromptTokens+p.CompletionTokens {
		errs = append(errs, FieldError{"total_tokens", "must equal prompt_tokens + completion_tokens"})
	}
	if p.CachedTokens != nil {
		if *p.CachedTokens < 0 {
			errs = append(errs, FieldError{"cached_tokens", "must not be negative"})
		} else if *p.CachedTokens > p.PromptTokens {
			errs = append(errs, FieldError{"cached_tokens", "must not exceed prompt_tokens"})
		}
	}
	if p.Timestamp.IsZero() {
		errs = append(errs, FieldError{"timestamp", "is required"})
	} else if p.Timestamp.After(v.now().Add(futureSkew)) {
		errs = append(errs, FieldError{"timestamp", "must not be in the future"})
	}

	return errs
}
