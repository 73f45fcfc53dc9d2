package forecasting

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientData means the series is too short for the model.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNotTrained means Forecast was called before Train.
	ErrNotTrained = errors.New("model must be trained before forecasting")
	// ErrCalculation means a metric is undefined for the given inputs.
	ErrCalculation = errors.New("calculation error")
)

// DataPoint is one observation of a time series.
type DataPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// TimeSeries is an ordered sequence of data points, ascending by timestamp.
type TimeSeries struct {
	Points   []DataPoint       `json:"points"`
	Interval time.Duration     `json:"interval,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *TimeSeries) Len() int { return len(s.Points) }

// Values returns the point values as float64 for model math.
func (s *TimeSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value.InexactFloat64()
	}
	return out
}

// DetectInterval infers the sampling interval from the median gap between
// consecutive points. Returns 1h when the series is too short.
func (s *TimeSeries) DetectInterval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	if len(s.Points) < 2 {
		return time.Hour
	}
	gaps := make([]time.Duration, 0, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		gaps = append(gaps, s.Points[i].Timestamp.Sub(s.Points[i-1].Timestamp))
	}
	// Median without a full sort: small slices, insertion is fine.
	for i := 1; i < len(gaps); i++ {
		for j := i; j > 0 && gaps[j] < gaps[j-1]; j-- {
			gaps[j], gaps[j-1] = gaps[j-1], gaps[j]
		}
	}
	return gaps[len(gaps)/2]
}

// TrendDirection classifies the slope of a trained model.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
	TrendUnknown    TrendDirection = "unknown"
)

// ForecastPoint is one predicted value with its confidence interval.
type ForecastPoint struct {
	Timestamp  time.Time       `json:"timestamp"`
	Value      decimal.Decimal `json:"value"`
	LowerBound decimal.Decimal `json:"lower_bound"`
	UpperBound decimal.Decimal `json:"upper_bound"`
}

// Forecast is a model's prediction for a horizon of future periods.
type Forecast struct {
	Model           string          `json:"model"`
	Points          []ForecastPoint `json:"points"`
	ConfidenceLevel float64         `json:"confidence_level"`
	Trend           TrendDirection  `json:"trend"`
}
