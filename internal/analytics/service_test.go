package analytics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/costwatch/costwatch/internal/forecasting"
	"github.com/costwatch/costwatch/internal/models"
)

func analyticsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.CostRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM cost_records")
	})
	return db
}

func newAnalyticsService(t *testing.T, db *gorm.DB, minDataPoints int) *Service {
	t.Helper()
	return NewService(db, forecasting.NewRegistry(0.95), minDataPoints)
}

// seedDailyCosts writes one cost record per value, one day apart starting
// at start, timestamped midday so each lands in its own daily bucket.
func seedDailyCosts(t *testing.T, db *gorm.DB, tenant string, start time.Time, values []int64) {
	t.Helper()
	for i, v := range values {
		record := &models.CostRecord{
			ID:             uuid.New(),
			UsageRecordID:  uuid.New(),
			TenantID:       tenant,
			Provider:       "openai",
			Model:          "gpt-4",
			InputCost:      decimal.Zero,
			OutputCost:     decimal.NewFromInt(v),
			TotalCost:      decimal.NewFromInt(v),
			Currency:       "USD",
			PricingTableID: uuid.New(),
			Timestamp:      start.AddDate(0, 0, i).Add(12 * time.Hour),
			CalculatedAt:   time.Now().UTC(),
		}
		if err := db.Create(record).Error; err != nil {
			t.Fatalf("seed cost record %d: %v", i, err)
		}
	}
}

func TestAnomaliesFlagsSpendSpike(t *testing.T) {
	db := analyticsTestDB(t)
	svc := newAnalyticsService(t, db, 10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Fourteen quiet days and one 10x spike on the last.
	values := make([]int64, 15)
	for i := range values {
		values[i] = 10
	}
	values[14] = 100
	seedDailyCosts(t, db, "acme", start, values)

	anomalies, err := svc.Anomalies(context.Background(), Query{TenantID: "acme"}, forecasting.MethodZScore)
	if err != nil {
		t.Fatalf("Anomalies() error = %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %d, expected only the spike day", len(anomalies))
	}
	if anomalies[0].Index != 14 {
		t.Errorf("Index = %d, expected 14", anomalies[0].Index)
	}
	if anomalies[0].Method != forecasting.MethodZScore {
		t.Errorf("Method = %s, expected zscore", anomalies[0].Method)
	}
	if !anomalies[0].Point.Value.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Point.Value = %s, expected 100", anomalies[0].Point.Value)
	}
}

func TestAnomaliesHonorsMinDataPoints(t *testing.T) {
	db := analyticsTestDB(t)
	svc := newAnalyticsService(t, db, 10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// A wild swing over too few days must not be flagged.
	seedDailyCosts(t, db, "acme", start, []int64{10, 10, 10, 10, 500})

	anomalies, err := svc.Anomalies(context.Background(), Query{TenantID: "acme"}, forecasting.MethodZScore)
	if err != nil {
		t.Fatalf("Anomalies() error = %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("anomalies = %d, series below the minimum must yield none", len(anomalies))
	}
}

func TestAnomaliesScopedToTenant(t *testing.T) {
	db := analyticsTestDB(t)
	svc := newAnalyticsService(t, db, 10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	spiky := make([]int64, 15)
	for i := range spiky {
		spiky[i] = 10
	}
	spiky[7] = 200
	seedDailyCosts(t, db, "acme", start, spiky)

	flat := make([]int64, 15)
	for i := range flat {
		flat[i] = 10
	}
	seedDailyCosts(t, db, "globex", start, flat)

	anomalies, err := svc.Anomalies(context.Background(), Query{TenantID: "globex"}, forecasting.MethodZScore)
	if err != nil {
		t.Fatalf("Anomalies() error = %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("anomalies = %d, another tenant's spike must not leak in", len(anomalies))
	}
}

func TestForecastSpendLinearTrend(t *testing.T) {
	db := analyticsTestDB(t)
	svc := newAnalyticsService(t, db, 10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Spend climbs by exactly 1 per day: 20, 21, ... 34.
	values := make([]int64, 15)
	for i := range values {
		values[i] = int64(20 + i)
	}
	seedDailyCosts(t, db, "acme", start, values)

	result, err := svc.ForecastSpend(context.Background(), Query{TenantID: "acme"}, forecasting.ModelLinearTrend, 5)
	if err != nil {
		t.Fatalf("ForecastSpend() error = %v", err)
	}
	if result.Forecast == nil || len(result.Forecast.Points) != 5 {
		t.Fatalf("forecast points = %+v, expected 5", result.Forecast)
	}
	if result.Forecast.Trend != forecasting.TrendIncreasing {
		t.Errorf("Trend = %s, expected increasing", result.Forecast.Trend)
	}
	for i, p := range result.Forecast.Points {
		want := float64(35 + i)
		if got := p.Value.InexactFloat64(); math.Abs(got-want) > 1e-6 {
			t.Errorf("point %d: Value = %v, expected %v", i, got, want)
		}
	}

	// 15 points leave a 3-day holdout; the line fits it perfectly.
	if result.Accuracy == nil {
		t.Fatal("expected a backtest accuracy report")
	}
	if result.Accuracy.Grade != forecasting.GradeExcellent {
		t.Errorf("Grade = %s, expected excellent for an exact fit", result.Accuracy.Grade)
	}
	if result.Accuracy.MAE > 1e-6 {
		t.Errorf("MAE = %v, expected ~0", result.Accuracy.MAE)
	}
}

func TestForecastSpendInsufficientData(t *testing.T) {
	db := analyticsTestDB(t)
	svc := newAnalyticsService(t, db, 10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seedDailyCosts(t, db, "acme", start, []int64{10, 11, 12})

	_, err := svc.ForecastSpend(context.Background(), Query{TenantID: "acme"}, forecasting.ModelLinearTrend, 7)
	if !errors.Is(err, forecasting.ErrInsufficientData) {
		t.Fatalf("error = %v, expected ErrInsufficientData", err)
	}
}
