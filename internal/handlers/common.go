package handlers

import (
	"context"

	"github.com/costwatch/costwatch/internal/models"
)

// auditRecorder is the slice of the audit service handlers need.
type auditRecorder interface {
	Record(ctx context.Context, event *models.AuditEvent) error
}
