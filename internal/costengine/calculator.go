package costengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/costwatch/costwatch/internal/models"
)

var (
	// ErrInvalidUsage means the usage record violates a semantic invariant.
	ErrInvalidUsage = errors.New("invalid usage record")
	// ErrPricingMisconfigured means the pricing structure cannot price the
	// record (for example a gap between tiers).
	ErrPricingMisconfigured = errors.New("pricing structure misconfigured")
	// ErrCurrencyMismatch is returned when costs of different currencies
	// are composed.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

var million = decimal.NewFromInt(1_000_000)

// costScale is the number of decimal places kept after the final
// quantization step. Rounding is banker's.
const costScale = 10

// Calculator prices usage records. Pure: no I/O, identical inputs give
// identical outputs.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate produces a CostRecord from a usage record and a pricing table
// active at the record's timestamp.
func (c *Calculator) Calculate(usage *models.UsageRecord, pricing *models.PricingTable) (*models.CostRecord, error) {
	if usage.Provider != pricing.Provider {
		return nil, fmt.Errorf("%w: provider mismatch usage=%s pricing=%s",
			ErrInvalidUsage, usage.Provider, pricing.Provider)
	}
	if usage.TotalTokens <= 0 {
		return nil, fmt.Errorf("%w: total_tokens must be positive", ErrInvalidUsage)
	}

	var inputCost, outputCost decimal.Decimal
	var err error

	switch pricing.Structure.Kind {
	case models.PricingKindPerToken:
		inputCost, outputCost = perTokenCost(usage,
			pricing.Structure.InputPricePerMillion,
			pricing.Structure.OutputPricePerMillion,
			pricing.Structure.CachedInputDiscount)
	case models.PricingKindPerRequest:
		inputCost, outputCost = perRequestCost(usage,
			pricing.Structure.PricePerRequest,
			pricing.Structure.IncludedTokens,
			pricing.Structure.OveragePricePerMillion)
	case models.PricingKindTiered:
		inputCost, outputCost, err = tieredCost(usage, pricing.Structure.Tiers)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrPricingMisconfigured, pricing.Structure.Kind)
	}

	inputCost = inputCost.RoundBank(costScale)
	outputCost = outputCost.RoundBank(costScale)

	return &models.CostRecord{
		ID:              uuid.New(),
		UsageRecordID:   usage.ID,
		TenantID:        usage.TenantID,
		ProjectID:       usage.ProjectID,
		Provider:        usage.Provider,
		Model:           usage.Model,
		InputCost:       inputCost,
		OutputCost:      outputCost,
		TotalCost:       inputCost.Add(outputCost),
		Currency:        pricing.Currency,
		PricingTableID:  pricing.ID,
		PricingSnapshot: pricing.Structure,
		Timestamp:       usage.Timestamp,
		CalculatedAt:    time.Now().UTC(),
	}, nil
}

// perTokenCost prices cached prompt tokens separately: they are subtracted
// from the billable prompt and charged at (1 - discount) of the input rate.
// Without a discount, cached tokens cost the full rate.
func perTokenCost(usage *models.UsageRecord, inputPerM, outputPerM decimal.Decimal, cacheDiscount *decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	var cached int64
	if usage.CachedTokens != nil {
		cached = *usage.CachedTokens
	}
	billablePrompt := usage.PromptTokens - cached
	if billablePrompt < 0 {
		billablePrompt = 0
	}

	uncached := decimal.NewFromInt(billablePrompt).Mul(inputPerM).Div(million)

	cachedRate := inputPerM
	if cacheDiscount != nil {
		cachedRate = inputPerM.Mul(decimal.NewFromInt(1).Sub(*cacheDiscount))
	}
	cachedCost := decimal.NewFromInt(cached).Mul(cachedRate).Div(million)

	inputCost := uncached.Add(cachedCost)
	outputCost := decimal.NewFromInt(usage.CompletionTokens).Mul(outputPerM).Div(million)
	return inputCost, outputCost
}

// perRequestCost attributes the base price as input cost and any overage
// as output cost.
func perRequestCost(usage *models.UsageRecord, base decimal.Decimal, included int64, overagePerM decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	overage := decimal.Zero
	if usage.TotalTokens > included {
		overTokens := usage.TotalTokens - included
		overage = decimal.NewFromInt(overTokens).Mul(overagePerM).Div(million)
	}
	return base, overage
}

// tieredCost selects the unique tier covering total_tokens and applies the
// per-token formula at that tier's rates.
func tieredCost(usage *models.UsageRecord, tiers []models.PricingTier) (decimal.Decimal, decimal.Decimal, error) {
	for _, tier := range tiers {
		if usage.TotalTokens < tier.MinTokens {
			continue
		}
		if tier.MaxTokens != nil && usage.TotalTokens > *tier.MaxTokens {
			continue
		}
		in, out := perTokenCost(usage, tier.InputPricePerMillion, tier.OutputPricePerMillion, nil)
		return in, out, nil
	}
	return decimal.Zero, decimal.Zero,
		fmt.Errorf("%w: no tier covers %d tokens", ErrPricingMisconfigured, usage.TotalTokens)
}
