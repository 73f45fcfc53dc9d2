package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/costwatch/costwatch/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.PricingTable{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM pricing_tables")
	})
	return db
}

func perTokenStructure(input, output string) models.PricingStructure {
	return models.PricingStructure{
		Kind:                  models.PricingKindPerToken,
		InputPricePerMillion:  decimal.RequireFromString(input),
		OutputPricePerMillion: decimal.RequireFromString(output),
	}
}

func newTable(provider, model string, from time.Time, until *time.Time, input string) *models.PricingTable {
	return &models.PricingTable{
		Provider:       provider,
		Model:          model,
		EffectiveFrom:  from,
		EffectiveUntil: until,
		Structure:      perTokenStructure(input, "60"),
		Currency:       "USD",
	}
}

func TestCatalogResolveLatestWins(t *testing.T) {
	db := testDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := catalog.Add(newTable("openai", "gpt-4", jan, nil, "30")); err != nil {
		t.Fatalf("Add(jan) error = %v", err)
	}
	if err := catalog.Add(newTable("openai", "gpt-4", jun, nil, "25")); err != nil {
		t.Fatalf("Add(jun) error = %v", err)
	}

	// Before the June table takes effect the January price applies.
	got, err := catalog.Resolve("openai", "gpt-4", jun.Add(-time.Hour), "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !got.Structure.InputPricePerMillion.Equal(decimal.RequireFromString("30")) {
		t.Errorf("resolved input price %s, expected 30", got.Structure.InputPricePerMillion)
	}

	// On and after June 1 the newer table wins.
	got, err = catalog.Resolve("openai", "gpt-4", jun, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !got.Structure.InputPricePerMillion.Equal(decimal.RequireFromString("25")) {
		t.Errorf("resolved input price %s, expected 25", got.Structure.InputPricePerMillion)
	}
}

func TestCatalogAddClosesOpenEndedPredecessor(t *testing.T) {
	db := testDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := catalog.Add(newTable("openai", "gpt-4", jan, nil, "30")); err != nil {
		t.Fatal(err)
	}
	if err := catalog.Add(newTable("openai", "gpt-4", jun, nil, "25")); err != nil {
		t.Fatal(err)
	}

	var first models.PricingTable
	if err := db.Where("effective_from = ?", jan).First(&first).Error; err != nil {
		t.Fatalf("load january table: %v", err)
	}
	if first.EffectiveUntil == nil || !first.EffectiveUntil.Equal(jun) {
		t.Errorf("predecessor window should be closed at the newcomer's start, got %v", first.EffectiveUntil)
	}
}

func TestCatalogAddRejectsOverlap(t *testing.T) {
	db := testDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	closed := newTable("openai", "gpt-4", jan, &jun, "30")
	if err := catalog.Add(closed); err != nil {
		t.Fatal(err)
	}

	// A table starting inside the closed window conflicts.
	err = catalog.Add(newTable("openai", "gpt-4", mar, nil, "25"))
	if !errors.Is(err, ErrPricingConflict) {
		t.Errorf("error = %v, expected ErrPricingConflict", err)
	}

	// Duplicate effective_from conflicts too.
	err = catalog.Add(newTable("openai", "gpt-4", jan, nil, "25"))
	if !errors.Is(err, ErrPricingConflict) {
		t.Errorf("error = %v, expected ErrPricingConflict", err)
	}
}

func TestCatalogResolveNotFound(t *testing.T) {
	db := testDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	_, err = catalog.Resolve("openai", "gpt-4", time.Now(), "")
	if !errors.Is(err, ErrPricingNotFound) {
		t.Errorf("error = %v, expected ErrPricingNotFound", err)
	}

	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if err := catalog.Add(newTable("openai", "gpt-4", jun, &jul, "30")); err != nil {
		t.Fatal(err)
	}

	// Outside the only window.
	_, err = catalog.Resolve("openai", "gpt-4", jul.Add(time.Hour), "")
	if !errors.Is(err, ErrPricingNotFound) {
		t.Errorf("error = %v, expected ErrPricingNotFound", err)
	}
}

func TestCatalogRegionFallback(t *testing.T) {
	db := testDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	global := newTable("openai", "gpt-4", jan, nil, "30")
	if err := catalog.Add(global); err != nil {
		t.Fatal(err)
	}
	regional := newTable("openai", "gpt-4", jan, nil, "35")
	regional.Region = "eu-west-1"
	if err := catalog.Add(regional); err != nil {
		t.Fatal(err)
	}

	got, err := catalog.Resolve("openai", "gpt-4", jan.Add(time.Hour), "eu-west-1")
	if err != nil {
		t.Fatalf("Resolve(eu-west-1) error = %v", err)
	}
	if !got.Structure.InputPricePerMillion.Equal(decimal.RequireFromString("35")) {
		t.Errorf("regional price should win, got %s", got.Structure.InputPricePerMillion)
	}

	// Unknown regions fall back to the global entry.
	got, err = catalog.Resolve("openai", "gpt-4", jan.Add(time.Hour), "ap-south-1")
	if err != nil {
		t.Fatalf("Resolve(ap-south-1) error = %v", err)
	}
	if !got.Structure.InputPricePerMillion.Equal(decimal.RequireFromString("30")) {
		t.Errorf("fallback price should be global, got %s", got.Structure.InputPricePerMillion)
	}
}

func TestCatalogList(t *testing.T) {
	db := testDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := catalog.Add(newTable("openai", "gpt-4", jan, nil, "30")); err != nil {
		t.Fatal(err)
	}
	if err := catalog.Add(newTable("anthropic", "claude-sonnet", jan, nil, "15")); err != nil {
		t.Fatal(err)
	}

	all := catalog.List("", "")
	if len(all) != 2 {
		t.Fatalf("List() = %d tables, expected 2", len(all))
	}
	if all[0].Provider != "anthropic" {
		t.Errorf("List() should sort by provider, got %s first", all[0].Provider)
	}

	only := catalog.List("openai", "")
	if len(only) != 1 || only[0].Provider != "openai" {
		t.Errorf("List(openai) = %v", only)
	}
}
