package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pricing structure kinds (lowercase wire tokens).
const (
	PricingKindPerToken   = "per_token"
	PricingKindPerRequest = "per_request"
	PricingKindTiered     = "tiered"
)

// PricingTier is one band of a tiered pricing structure. MaxTokens absent
// means the tier is open-ended.
type PricingTier struct {
	MinTokens             int64           `json:"min_tokens"`
	MaxTokens             *int64          `json:"max_tokens,omitempty"`
	InputPricePerMillion  decimal.Decimal `json:"input_price_per_million"`
	OutputPricePerMillion decimal.Decimal `json:"output_price_per_million"`
}

// PricingStructure is the closed sum of supported pricing shapes. Kind
// selects which field group is meaningful.
type PricingStructure struct {
	Kind string `json:"kind"`

	// per_token
	InputPricePerMillion  decimal.Decimal  `json:"input_price_per_million,omitempty"`
	OutputPricePerMillion decimal.Decimal  `json:"output_price_per_million,omitempty"`
	CachedInputDiscount   *decimal.Decimal `json:"cached_input_discount,omitempty"`

	// per_request
	PricePerRequest        decimal.Decimal `json:"price_per_request,omitempty"`
	IncludedTokens         int64           `json:"included_tokens,omitempty"`
	OveragePricePerMillion decimal.Decimal `json:"overage_price_per_million,omitempty"`

	// tiered
	Tiers []PricingTier `json:"tiers,omitempty"`
}

func (p PricingStructure) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PricingStructure) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		return nil
	default:
		return errors.New("unsupported type for PricingStructure")
	}
}

// Validate checks the structural invariants of the pricing shape.
func (p PricingStructure) Validate() error {
	switch p.Kind {
	case PricingKindPerToken:
		if p.InputPricePerMillion.IsNegative() || p.OutputPricePerMillion.IsNegative() {
			return errors.New("per-token prices must be non-negative")
		}
		if p.CachedInputDiscount != nil {
			d := *p.CachedInputDiscount
			if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
				return errors.New("cached_input_discount must be within [0,1]")
			}
		}
	case PricingKindPerRequest:
		if p.PricePerRequest.IsNegative() || p.OveragePricePerMillion.IsNegative() {
			return errors.New("per-request prices must be non-negative")
		}
		if p.IncludedTokens < 0 {
			return errors.New("included_tokens must be non-negative")
		}
	case PricingKindTiered:
		if len(p.Tiers) == 0 {
			return errors.New("tiered pricing requires at least one tier")
		}
		if p.Tiers[0].MinTokens != 0 {
			return errors.New("first tier must start at 0 tokens")
		}
		for i, tier := range p.Tiers {
			if tier.MaxTokens != nil && *tier.MaxTokens < tier.MinTokens {
				return fmt.Errorf("tier %d: max_tokens below min_tokens", i)
			}
			if i > 0 {
				prev := p.Tiers[i-1]
				if prev.MaxTokens == nil {
					return fmt.Errorf("tier %d: previous tier is open-ended", i)
				}
				if tier.MinTokens <= *prev.MaxTokens {
					return fmt.Errorf("tier %d: overlaps previous tier", i)
				}
			}
		}
	default:
		return fmt.Errorf("unknown pricing kind %q", p.Kind)
	}
	return nil
}

// PricingTable is one versioned price entry for a (provider, model, region)
// triple, active over [EffectiveFrom, EffectiveUntil).
type PricingTable struct {
	ID             uuid.UUID        `gorm:"type:char(36);primaryKey" json:"id"`
	Provider       string           `gorm:"size:50;uniqueIndex:idx_pricing_window;index;not null" json:"provider"`
	Model          string           `gorm:"size:100;uniqueIndex:idx_pricing_window;index;not null" json:"model"`
	Region         string           `gorm:"size:50;uniqueIndex:idx_pricing_window" json:"region,omitempty"`
	EffectiveFrom  time.Time        `gorm:"uniqueIndex:idx_pricing_window;index;not null" json:"effective_from"`
	EffectiveUntil *time.Time       `json:"effective_until,omitempty"`
	Structure      PricingStructure `gorm:"type:text;not null" json:"pricing"`
	Currency       string           `gorm:"size:3;default:USD" json:"currency"`
	Metadata       JSONMap          `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (PricingTable) TableName() string { return "pricing_tables" }

// IsActiveAt reports whether the table covers t:
// effective_from <= t < effective_until (open-ended if until is absent).
func (p *PricingTable) IsActiveAt(t time.Time) bool {
	if t.Before(p.EffectiveFrom) {
		return false
	}
	if p.EffectiveUntil != nil && !t.Before(*p.EffectiveUntil) {
		return false
	}
	return true
}

// Overlaps reports whether two effective windows intersect.
func (p *PricingTable) Overlaps(other *PricingTable) bool {
	if p.EffectiveUntil != nil && !other.EffectiveFrom.Before(*p.EffectiveUntil) {
		return false
	}
	if other.EffectiveUntil != nil && !p.EffectiveFrom.Before(*other.EffectiveUntil) {
		return false
	}
	return true
}
