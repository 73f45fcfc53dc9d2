package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/pkg/logger"
)

// AuditService writes the append-only audit trail and prunes it past the
// retention window. Entries are never updated.
type AuditService struct {
	db            *gorm.DB
	retentionDays int
	cron          *cron.Cron
}

func NewAuditService(db *gorm.DB, retentionDays int) *AuditService {
	return &AuditService{db: db, retentionDays: retentionDays}
}

// Record appends one audit event. Timestamp and ID are filled if unset.
func (s *AuditService) Record(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = models.AuditSeverityInfo
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		// Audit must not take the request down with it.
		logger.Error().Err(err).Str("event_type", event.EventType).Msg("failed to write audit event")
		return err
	}
	return nil
}

// RecordAccessDenied captures a denied authorization check with the actor
// and the requested resource, action, and scope.
func (s *AuditService) RecordAccessDenied(ctx context.Context, actor, actorType, tenantID string, resource Resource, action Action, scope string) {
	_ = s.Record(ctx, &models.AuditEvent{
		Actor:     actor,
		ActorType: actorType,
		TenantID:  tenantID,
		EventType: models.AuditAccessDenied,
		Resource:  string(resource),
		Action:    string(action),
		Outcome:   models.AuditOutcomeDenied,
		Severity:  models.AuditSeverityWarning,
		Metadata:  models.JSONMap{"scope": scope},
	})
}

// AuditFilter narrows a trail query.
type AuditFilter struct {
	TenantID  string
	Actor     string
	EventType string
	From      time.Time
	To        time.Time
}

// List returns matching events, newest first, with offset pagination.
func (s *AuditService) List(ctx context.Context, filter AuditFilter, offset, limit int) ([]models.AuditEvent, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditEvent{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Actor != "" {
		q = q.Where("actor = ?", filter.Actor)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if !filter.From.IsZero() {
		q = q.Where("timestamp >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("timestamp < ?", filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []models.AuditEvent
	err := q.Order("timestamp DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, total, err
}

// StartPruning schedules a daily job deleting events older than the
// retention window.
func (s *AuditService) StartPruning() error {
	if s.retentionDays <= 0 {
		return nil
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc("@daily", func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
		res := s.db.Where("timestamp < ?", cutoff).Delete(&models.AuditEvent{})
		if res.Error != nil {
			logger.Error().Err(res.Error).Msg("audit pruning failed")
			return
		}
		if res.RowsAffected > 0 {
			logger.Info().Int64("pruned", res.RowsAffected).Time("cutoff", cutoff).Msg("audit events pruned")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	logger.Info().Int("retention_days", s.retentionDays).Msg("audit pruning scheduler started")
	return nil
}

// Stop halts the pruning scheduler.
func (s *AuditService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
