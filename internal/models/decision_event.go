package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DecisionEvent is the persisted record of a budget agent evaluation.
// Advisory only; consumers decide whether to enforce.
type DecisionEvent struct {
	ID             uuid.UUID        `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID       string           `gorm:"size:128;index;not null" json:"tenant_id"`
	AgentName      string           `gorm:"size:100;not null" json:"agent_name"`
	Severity       string           `gorm:"size:20;not null" json:"severity"`
	BudgetLimit    decimal.Decimal  `gorm:"type:decimal(38,12)" json:"budget_limit"`
	CurrentSpend   decimal.Decimal  `gorm:"type:decimal(38,12)" json:"current_spend"`
	SpendRatio     decimal.Decimal  `gorm:"type:decimal(12,6)" json:"spend_ratio"`
	ProjectedSpend *decimal.Decimal `gorm:"type:decimal(38,12)" json:"projected_spend,omitempty"`
	Currency       string           `gorm:"size:3" json:"currency"`
	PeriodStart    time.Time        `json:"period_start"`
	PeriodEnd      time.Time        `json:"period_end"`
	Reason         string           `gorm:"size:1000" json:"reason"`
	CreatedAt      time.Time        `gorm:"index" json:"created_at"`
}

func (DecisionEvent) TableName() string { return "decision_events" }
