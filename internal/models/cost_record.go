package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostRecord is the priced counterpart of a UsageRecord. Created once at
// pricing time and never mutated; the pricing structure is snapshotted so
// later pricing changes cannot alter history.
type CostRecord struct {
	ID              uuid.UUID        `gorm:"type:char(36);primaryKey" json:"id"`
	UsageRecordID   uuid.UUID        `gorm:"type:char(36);uniqueIndex;not null" json:"usage_record_id"`
	TenantID        string           `gorm:"size:128;index;not null" json:"tenant_id"`
	ProjectID       string           `gorm:"size:128;index" json:"project_id,omitempty"`
	Provider        string           `gorm:"size:50;index;not null" json:"provider"`
	Model           string           `gorm:"size:100;index;not null" json:"model"`
	InputCost       decimal.Decimal  `gorm:"type:decimal(38,12);not null" json:"input_cost"`
	OutputCost      decimal.Decimal  `gorm:"type:decimal(38,12);not null" json:"output_cost"`
	TotalCost       decimal.Decimal  `gorm:"type:decimal(38,12);not null" json:"total_cost"`
	Currency        string           `gorm:"size:3;not null" json:"currency"`
	PricingTableID  uuid.UUID        `gorm:"type:char(36);not null" json:"pricing_table_id"`
	PricingSnapshot PricingStructure `gorm:"type:text" json:"pricing_snapshot"`
	Timestamp       time.Time        `gorm:"index;not null" json:"timestamp"`
	CalculatedAt    time.Time        `json:"calculated_at"`
}

func (CostRecord) TableName() string { return "cost_records" }
