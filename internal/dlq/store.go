package dlq

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/models"
)

// Store persists DLQ items. Ownership of an item during an attempt is
// expressed by the in_flight status: ClaimDue only hands out items it
// could transition from pending, so no two workers attempt the same item.
type Store interface {
	Enqueue(ctx context.Context, item *models.DlqItem) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.DlqItem, error)
	Update(ctx context.Context, item *models.DlqItem) error
	Get(ctx context.Context, id uuid.UUID) (*models.DlqItem, error)
	List(ctx context.Context, tenant, status string, offset, limit int) ([]models.DlqItem, int64, error)
}

// GormStore is the database-backed DLQ store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Enqueue(ctx context.Context, item *models.DlqItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(item).Error
}

// ClaimDue atomically moves due pending items to in_flight and returns
// them. The conditional update is the claim: a row already claimed by a
// concurrent worker no longer matches the WHERE clause.
func (s *GormStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.DlqItem, error) {
	var due []models.DlqItem
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.DlqStatusPending, now).
		Order("next_retry_at asc").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	claimed := due[:0]
	for i := range due {
		res := s.db.WithContext(ctx).Model(&models.DlqItem{}).
			Where("id = ? AND status = ?", due[i].ID, models.DlqStatusPending).
			Updates(map[string]interface{}{"status": models.DlqStatusInFlight, "updated_at": now})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			due[i].Status = models.DlqStatusInFlight
			claimed = append(claimed, due[i])
		}
	}
	return claimed, nil
}

func (s *GormStore) Update(ctx context.Context, item *models.DlqItem) error {
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*models.DlqItem, error) {
	var item models.DlqItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *GormStore) List(ctx context.Context, tenant, status string, offset, limit int) ([]models.DlqItem, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.DlqItem{})
	if tenant != "" {
		q = q.Where("tenant_id = ?", tenant)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.DlqItem
	err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}
