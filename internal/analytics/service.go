package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/costengine"
	"github.com/costwatch/costwatch/internal/forecasting"
	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/pkg/response"
)

// Supported time-series intervals.
const (
	IntervalHour = "hour"
	IntervalDay  = "day"
	IntervalWeek = "week"
)

var intervalHours = map[string]int64{
	IntervalHour: 1,
	IntervalDay:  24,
	IntervalWeek: 168,
}

// Query narrows an analytics request. From/To are half-open [From, To).
type Query struct {
	TenantID  string
	ProjectID string
	Provider  string
	Model     string
	From      time.Time
	To        time.Time
}

// SeriesPoint is one bucket of the cost time series.
type SeriesPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// Service answers read-only analytic queries over cost records and runs
// the forecasting models against daily spend.
type Service struct {
	db        *gorm.DB
	agg       *costengine.Aggregator
	registry  *forecasting.Registry
	detector  *forecasting.AnomalyDetector
	minPoints int
}

func NewService(db *gorm.DB, registry *forecasting.Registry, minDataPoints int) *Service {
	detector := forecasting.NewAnomalyDetector(minDataPoints)
	return &Service{
		db:        db,
		agg:       costengine.NewAggregator(),
		registry:  registry,
		detector:  detector,
		minPoints: detector.MinDataPoints,
	}
}

func (s *Service) scoped(ctx context.Context, q Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.CostRecord{}).
		Where("tenant_id = ?", q.TenantID)
	if q.ProjectID != "" {
		tx = tx.Where("project_id = ?", q.ProjectID)
	}
	if q.Provider != "" {
		tx = tx.Where("provider = ?", q.Provider)
	}
	if q.Model != "" {
		tx = tx.Where("model = ?", q.Model)
	}
	if !q.From.IsZero() {
		tx = tx.Where("timestamp >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("timestamp < ?", q.To)
	}
	return tx
}

// Summary aggregates all matching cost records into one CostSummary.
func (s *Service) Summary(ctx context.Context, q Query) (*costengine.CostSummary, error) {
	var records []models.CostRecord
	if err := s.scoped(ctx, q).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load cost records: %w", err)
	}
	summary := s.agg.Summarize(records, q.From, q.To)
	return &summary, nil
}

// TimeSeries buckets matching records by the given interval, returning
// points sorted ascending. Empty buckets are omitted.
func (s *Service) TimeSeries(ctx context.Context, q Query, interval string) ([]SeriesPoint, error) {
	hours, ok := intervalHours[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	var records []models.CostRecord
	if err := s.scoped(ctx, q).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load cost records: %w", err)
	}

	buckets := s.agg.GroupByTimeWindow(records, hours)
	points := make([]SeriesPoint, 0, len(buckets))
	for ts, total := range buckets {
		points = append(points, SeriesPoint{Timestamp: ts, TotalCost: total})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// ListCostRecords returns one page of matching records, newest first.
func (s *Service) ListCostRecords(ctx context.Context, q Query, params response.PageParams) (*response.Page, error) {
	base := s.scoped(ctx, q)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count cost records: %w", err)
	}

	order := "timestamp DESC"
	if params.SortOrder == "asc" {
		order = "timestamp ASC"
	}
	var records []models.CostRecord
	if err := base.Order(order).
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load cost records: %w", err)
	}
	page := response.NewPage(records, params, total)
	return &page, nil
}

// SpendSeries converts daily spend into a forecasting-ready series,
// summing per day in UTC.
func (s *Service) SpendSeries(ctx context.Context, q Query) ([]SeriesPoint, error) {
	return s.TimeSeries(ctx, q, IntervalDay)
}

func toTimeSeries(points []SeriesPoint) *forecasting.TimeSeries {
	series := &forecasting.TimeSeries{
		Points:   make([]forecasting.DataPoint, len(points)),
		Interval: 24 * time.Hour,
	}
	for i, p := range points {
		series.Points[i] = forecasting.DataPoint{Timestamp: p.Timestamp, Value: p.TotalCost}
	}
	return series
}

// Anomalies flags unusual days in the tenant's daily spend. Method is
// forecasting.MethodZScore or forecasting.MethodIQR; a series shorter than
// the configured minimum yields an empty result.
func (s *Service) Anomalies(ctx context.Context, q Query, method string) ([]forecasting.Anomaly, error) {
	points, err := s.SpendSeries(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.detector.Detect(toTimeSeries(points), method), nil
}

// SpendForecast is a model's spend projection plus, when enough history
// exists to hold some out, a backtest grading its accuracy.
type SpendForecast struct {
	Forecast *forecasting.Forecast       `json:"forecast"`
	Accuracy *forecasting.AccuracyReport `json:"accuracy,omitempty"`
}

// ForecastSpend trains the requested model on daily spend and projects
// horizon days ahead.
func (s *Service) ForecastSpend(ctx context.Context, q Query, kind forecasting.ModelKind, horizon int) (*SpendForecast, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	points, err := s.SpendSeries(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(points) < s.minPoints {
		return nil, fmt.Errorf("%w: %d daily spend points, need at least %d",
			forecasting.ErrInsufficientData, len(points), s.minPoints)
	}

	series := toTimeSeries(points)
	model, err := s.registry.New(kind)
	if err != nil {
		return nil, err
	}
	if err := model.Train(series); err != nil {
		return nil, fmt.Errorf("train %s: %w", kind, err)
	}
	forecast, err := model.Forecast(horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", kind, err)
	}

	return &SpendForecast{
		Forecast: forecast,
		Accuracy: s.backtest(series, kind),
	}, nil
}

// backtest holds out the series tail, refits the model on the head and
// grades its predictions against the held-out actuals. Any failure along
// the way means no grade, not an error.
func (s *Service) backtest(series *forecasting.TimeSeries, kind forecasting.ModelKind) *forecasting.AccuracyReport {
	holdout := series.Len() / 5
	if holdout < 2 || series.Len()-holdout < s.minPoints {
		return nil
	}
	head := &forecasting.TimeSeries{
		Points:   series.Points[:series.Len()-holdout],
		Interval: series.Interval,
	}

	model, err := s.registry.New(kind)
	if err != nil {
		return nil
	}
	if err := model.Train(head); err != nil {
		return nil
	}
	forecast, err := model.Forecast(holdout)
	if err != nil {
		return nil
	}

	actual := make([]float64, holdout)
	predicted := make([]float64, holdout)
	for i := 0; i < holdout; i++ {
		actual[i] = series.Points[series.Len()-holdout+i].Value.InexactFloat64()
		predicted[i] = forecast.Points[i].Value.InexactFloat64()
	}
	report, err := forecasting.EvaluateAccuracy(actual, predicted)
	if err != nil {
		return nil
	}
	return report
}
