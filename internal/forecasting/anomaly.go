package forecasting

import (
	"math"
	"sort"
)

// Anomaly detection methods.
const (
	MethodZScore = "zscore"
	MethodIQR    = "iqr"
)

// Defaults for anomaly detection.
const (
	DefaultZScoreThreshold = 2.0
	DefaultIQRMultiplier   = 1.5
	DefaultMinDataPoints   = 10
)

// Anomaly is one flagged data point.
type Anomaly struct {
	Index    int       `json:"index"`
	Point    DataPoint `json:"point"`
	Score    float64   `json:"score"`
	Method   string    `json:"method"`
	Severity string    `json:"severity"` // low, medium, high
}

// AnomalyDetector flags outliers in a time series with either z-score or
// IQR fences.
type AnomalyDetector struct {
	ZScoreThreshold float64
	IQRMultiplier   float64
	MinDataPoints   int
}

func NewAnomalyDetector(minDataPoints int) *AnomalyDetector {
	if minDataPoints <= 0 {
		minDataPoints = DefaultMinDataPoints
	}
	return &AnomalyDetector{
		ZScoreThreshold: DefaultZScoreThreshold,
		IQRMultiplier:   DefaultIQRMultiplier,
		MinDataPoints:   minDataPoints,
	}
}

// Detect runs the selected method. A series shorter than MinDataPoints
// yields an empty result, not an error.
func (d *AnomalyDetector) Detect(series *TimeSeries, method string) []Anomaly {
	if series.Len() < d.MinDataPoints {
		return nil
	}
	switch method {
	case MethodIQR:
		return d.detectIQR(series)
	default:
		return d.detectZScore(series)
	}
}

func (d *AnomalyDetector) detectZScore(series *TimeSeries) []Anomaly {
	values := series.Values()
	mu := mean(values)
	sigma := stdDev(values, mu)
	if sigma == 0 {
		return nil
	}

	var anomalies []Anomaly
	for i, v := range values {
		z := (v - mu) / sigma
		if math.Abs(z) > d.ZScoreThreshold {
			anomalies = append(anomalies, Anomaly{
				Index:    i,
				Point:    series.Points[i],
				Score:    z,
				Method:   MethodZScore,
				Severity: zSeverity(math.Abs(z), d.ZScoreThreshold),
			})
		}
	}
	return anomalies
}

func (d *AnomalyDetector) detectIQR(series *TimeSeries) []Anomaly {
	values := series.Values()
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - d.IQRMultiplier*iqr
	upper := q3 + d.IQRMultiplier*iqr

	var anomalies []Anomaly
	for i, v := range values {
		if v >= lower && v <= upper {
			continue
		}
		// Score is the distance beyond the fence in IQR units.
		score := 0.0
		if iqr > 0 {
			if v < lower {
				score = (lower - v) / iqr
			} else {
				score = (v - upper) / iqr
			}
		}
		anomalies = append(anomalies, Anomaly{
			Index:    i,
			Point:    series.Points[i],
			Score:    score,
			Method:   MethodIQR,
			Severity: iqrSeverity(score),
		})
	}
	return anomalies
}

func zSeverity(absZ, threshold float64) string {
	switch {
	case absZ > threshold*2:
		return "high"
	case absZ > threshold*1.5:
		return "medium"
	default:
		return "low"
	}
}

func iqrSeverity(score float64) string {
	switch {
	case score > 3:
		return "high"
	case score > 1.5:
		return "medium"
	default:
		return "low"
	}
}

func stdDev(values []float64, mu float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += (v - mu) * (v - mu)
	}
	return math.Sqrt(sum / float64(len(values)))
}

// quantile interpolates linearly on a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
