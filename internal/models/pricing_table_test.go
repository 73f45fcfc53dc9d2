package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestPricingTableIsActiveAt(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	table := &PricingTable{EffectiveFrom: from, EffectiveUntil: timePtr(until)}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{from.Add(-time.Second), false},
		{from, true}, // inclusive lower bound
		{from.Add(time.Hour), true},
		{until.Add(-time.Second), true},
		{until, false}, // exclusive upper bound
		{until.Add(time.Hour), false},
	}
	for _, tc := range cases {
		if got := table.IsActiveAt(tc.at); got != tc.want {
			t.Errorf("IsActiveAt(%s) = %v, expected %v", tc.at, got, tc.want)
		}
	}
}

func TestPricingTableIsActiveAt_OpenEnded(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := &PricingTable{EffectiveFrom: from}

	if !table.IsActiveAt(from.AddDate(10, 0, 0)) {
		t.Error("open-ended table should cover any time after effective_from")
	}
	if table.IsActiveAt(from.Add(-time.Second)) {
		t.Error("open-ended table must not cover times before effective_from")
	}
}

func TestPricingTableOverlaps(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	a := &PricingTable{EffectiveFrom: jan, EffectiveUntil: timePtr(apr)}
	b := &PricingTable{EffectiveFrom: apr, EffectiveUntil: timePtr(jul)}
	if a.Overlaps(b) || b.Overlaps(a) {
		t.Error("adjacent windows sharing a boundary must not overlap")
	}

	c := &PricingTable{EffectiveFrom: jan.AddDate(0, 2, 0), EffectiveUntil: timePtr(jul)}
	if !a.Overlaps(c) || !c.Overlaps(a) {
		t.Error("intersecting windows should overlap")
	}

	openEnded := &PricingTable{EffectiveFrom: jan}
	if !openEnded.Overlaps(b) {
		t.Error("open-ended window overlaps anything starting after its from")
	}
	early := &PricingTable{EffectiveFrom: jan.AddDate(-1, 0, 0), EffectiveUntil: timePtr(jan)}
	if early.Overlaps(openEnded) {
		t.Error("window ending exactly at the open-ended start must not overlap")
	}
}

func TestPricingStructureValidate(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	two := decimal.NewFromInt(2)
	half := decimal.RequireFromString("0.5")
	maxTokens := int64(1000)

	cases := []struct {
		name    string
		in      PricingStructure
		wantErr bool
	}{
		{
			"valid per_token",
			PricingStructure{Kind: PricingKindPerToken, InputPricePerMillion: decimal.NewFromInt(30), OutputPricePerMillion: decimal.NewFromInt(60), CachedInputDiscount: &half},
			false,
		},
		{
			"negative input price",
			PricingStructure{Kind: PricingKindPerToken, InputPricePerMillion: neg},
			true,
		},
		{
			"discount above one",
			PricingStructure{Kind: PricingKindPerToken, CachedInputDiscount: &two},
			true,
		},
		{
			"valid per_request",
			PricingStructure{Kind: PricingKindPerRequest, PricePerRequest: decimal.RequireFromString("0.01"), IncludedTokens: 1000, OveragePricePerMillion: decimal.NewFromInt(5)},
			false,
		},
		{
			"negative included tokens",
			PricingStructure{Kind: PricingKindPerRequest, IncludedTokens: -1},
			true,
		},
		{
			"tiered without tiers",
			PricingStructure{Kind: PricingKindTiered},
			true,
		},
		{
			"first tier not at zero",
			PricingStructure{Kind: PricingKindTiered, Tiers: []PricingTier{{MinTokens: 100}}},
			true,
		},
		{
			"valid tiered",
			PricingStructure{Kind: PricingKindTiered, Tiers: []PricingTier{
				{MinTokens: 0, MaxTokens: &maxTokens},
				{MinTokens: 1001},
			}},
			false,
		},
		{
			"tier after open-ended tier",
			PricingStructure{Kind: PricingKindTiered, Tiers: []PricingTier{
				{MinTokens: 0},
				{MinTokens: 1001},
			}},
			true,
		},
		{
			"overlapping tiers",
			PricingStructure{Kind: PricingKindTiered, Tiers: []PricingTier{
				{MinTokens: 0, MaxTokens: &maxTokens},
				{MinTokens: 500},
			}},
			true,
		},
		{
			"unknown kind",
			PricingStructure{Kind: "flat"},
			true,
		},
	}

	for _, tc := range cases {
		err := tc.in.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
