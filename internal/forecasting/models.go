package forecasting

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Model is the capability contract every forecasting variant implements.
type Model interface {
	Name() string
	Train(series *TimeSeries) error
	Forecast(horizon int) (*Forecast, error)
	Trend() TrendDirection
}

// zScore maps common confidence levels to two-sided normal quantiles.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.576
	case confidence >= 0.95:
		return 1.960
	case confidence >= 0.90:
		return 1.645
	case confidence >= 0.80:
		return 1.282
	default:
		return 1.0
	}
}

// residualStdDev is the standard deviation of fit residuals, used to width
// the prediction interval.
func residualStdDev(actual, fitted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sum float64
	for i := range actual {
		d := actual[i] - fitted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual)))
}

func buildForecast(name string, lastTS time.Time, interval time.Duration, values []float64, stddev, confidence float64, trend TrendDirection) *Forecast {
	z := zScore(confidence)
	points := make([]ForecastPoint, len(values))
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		lower := v - z*stddev
		if lower < 0 {
			lower = 0
		}
		points[i] = ForecastPoint{
			Timestamp:  lastTS.Add(time.Duration(i+1) * interval),
			Value:      decimal.NewFromFloat(v),
			LowerBound: decimal.NewFromFloat(lower),
			UpperBound: decimal.NewFromFloat(v + z*stddev),
		}
	}
	return &Forecast{
		Model:           name,
		Points:          points,
		ConfidenceLevel: confidence,
		Trend:           trend,
	}
}

// --- Linear trend ---

// LinearTrendModel fits ordinary least-squares on (index, value) pairs and
// extrapolates the line.
type LinearTrendModel struct {
	confidence float64

	slope     float64
	intercept float64
	n         int
	stddev    float64
	lastTS    time.Time
	interval  time.Duration
	trained   bool
}

func NewLinearTrendModel(confidence float64) *LinearTrendModel {
	return &LinearTrendModel{confidence: confidence}
}

func (m *LinearTrendModel) Name() string { return "linear_trend" }

func (m *LinearTrendModel) Train(series *TimeSeries) error {
	if series.Len() < 2 {
		return fmt.Errorf("%w: linear trend requires at least 2 data points", ErrInsufficientData)
	}

	values := series.Values()
	n := float64(len(values))
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return fmt.Errorf("%w: degenerate series", ErrInsufficientData)
	}
	m.slope = (n*sumXY - sumX*sumY) / denom
	m.intercept = (sumY - m.slope*sumX) / n

	fitted := make([]float64, len(values))
	for i := range values {
		fitted[i] = m.slope*float64(i) + m.intercept
	}
	m.stddev = residualStdDev(values, fitted)
	m.n = len(values)
	m.lastTS = series.Points[series.Len()-1].Timestamp
	m.interval = series.DetectInterval()
	m.trained = true
	return nil
}

func (m *LinearTrendModel) Forecast(horizon int) (*Forecast, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	values := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		values[i] = m.slope*float64(m.n+i) + m.intercept
	}
	return buildForecast(m.Name(), m.lastTS, m.interval, values, m.stddev, m.confidence, m.Trend()), nil
}

func (m *LinearTrendModel) Trend() TrendDirection {
	if !m.trained {
		return TrendUnknown
	}
	switch {
	case m.slope > 0.01:
		return TrendIncreasing
	case m.slope < -0.01:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// --- Moving average ---

// MovingAverageModel forecasts a constant equal to the mean of the last
// window values.
type MovingAverageModel struct {
	window     int
	confidence float64

	values   []float64
	stddev   float64
	lastTS   time.Time
	interval time.Duration
	trained  bool
}

func NewMovingAverageModel(window int, confidence float64) *MovingAverageModel {
	return &MovingAverageModel{window: window, confidence: confidence}
}

func (m *MovingAverageModel) Name() string { return "moving_average" }

func (m *MovingAverageModel) Train(series *TimeSeries) error {
	if series.Len() < m.window {
		return fmt.Errorf("%w: moving average requires at least %d data points", ErrInsufficientData, m.window)
	}
	m.values = series.Values()

	avg := mean(m.values[len(m.values)-m.window:])
	fitted := make([]float64, len(m.values))
	for i := range fitted {
		fitted[i] = avg
	}
	m.stddev = residualStdDev(m.values, fitted)
	m.lastTS = series.Points[series.Len()-1].Timestamp
	m.interval = series.DetectInterval()
	m.trained = true
	return nil
}

func (m *MovingAverageModel) Forecast(horizon int) (*Forecast, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	avg := mean(m.values[len(m.values)-m.window:])
	values := make([]float64, horizon)
	for i := range values {
		values[i] = avg
	}
	return buildForecast(m.Name(), m.lastTS, m.interval, values, m.stddev, m.confidence, m.Trend()), nil
}

func (m *MovingAverageModel) Trend() TrendDirection {
	if len(m.values) < 2 {
		return TrendUnknown
	}
	mid := len(m.values) / 2
	first := mean(m.values[:mid])
	second := mean(m.values[mid:])
	switch {
	case second > first*1.05:
		return TrendIncreasing
	case second < first*0.95:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// --- Exponential smoothing ---

// ExponentialSmoothingModel applies s_t = alpha*x_t + (1-alpha)*s_{t-1}
// and forecasts a constant at the last smoothed value.
type ExponentialSmoothingModel struct {
	alpha      float64
	confidence float64

	smoothed float64
	slopeEst float64
	stddev   float64
	lastTS   time.Time
	interval time.Duration
	trained  bool
}

// DefaultAlpha is the smoothing factor used when none is configured.
const DefaultAlpha = 0.3

func NewExponentialSmoothingModel(alpha, confidence float64) *ExponentialSmoothingModel {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &ExponentialSmoothingModel{alpha: alpha, confidence: confidence}
}

func (m *ExponentialSmoothingModel) Name() string { return "exponential_smoothing" }

func (m *ExponentialSmoothingModel) Train(series *TimeSeries) error {
	if series.Len() < 1 {
		return fmt.Errorf("%w: exponential smoothing requires at least 1 data point", ErrInsufficientData)
	}
	values := series.Values()

	s := values[0]
	fitted := make([]float64, len(values))
	fitted[0] = s
	for i := 1; i < len(values); i++ {
		fitted[i] = s
		s = m.alpha*values[i] + (1-m.alpha)*s
	}
	m.smoothed = s
	if len(values) >= 2 {
		m.slopeEst = values[len(values)-1] - values[len(values)-2]
	}
	m.stddev = residualStdDev(values, fitted)
	m.lastTS = series.Points[series.Len()-1].Timestamp
	m.interval = series.DetectInterval()
	m.trained = true
	return nil
}

func (m *ExponentialSmoothingModel) Forecast(horizon int) (*Forecast, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	values := make([]float64, horizon)
	for i := range values {
		values[i] = m.smoothed
	}
	return buildForecast(m.Name(), m.lastTS, m.interval, values, m.stddev, m.confidence, m.Trend()), nil
}

func (m *ExponentialSmoothingModel) Trend() TrendDirection {
	if !m.trained {
		return TrendUnknown
	}
	switch {
	case m.slopeEst > 0.01:
		return TrendIncreasing
	case m.slopeEst < -0.01:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
