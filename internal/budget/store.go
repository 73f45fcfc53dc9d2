package budget

import (
	"context"

	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/models"
)

// GormDecisionStore persists decision events to the relational store.
type GormDecisionStore struct {
	db *gorm.DB
}

func NewGormDecisionStore(db *gorm.DB) *GormDecisionStore {
	return &GormDecisionStore{db: db}
}

func (s *GormDecisionStore) SaveDecision(ctx context.Context, event *models.DecisionEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// ListDecisions returns the most recent decisions for a tenant.
func (s *GormDecisionStore) ListDecisions(ctx context.Context, tenantID string, limit int) ([]models.DecisionEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []models.DecisionEvent
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
