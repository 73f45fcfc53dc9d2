package forecasting

import (
	"testing"
	"time"
)

func TestDetectShortSeriesYieldsNothing(t *testing.T) {
	d := NewAnomalyDetector(10)
	series := dailySeries(time.Now(), 1, 2, 3, 100)

	if got := d.Detect(series, MethodZScore); got != nil {
		t.Errorf("Detect on a short series = %v, expected nil", got)
	}
	if got := d.Detect(series, MethodIQR); got != nil {
		t.Errorf("Detect on a short series = %v, expected nil", got)
	}
}

func TestDetectZScoreFlagsOutlier(t *testing.T) {
	d := NewAnomalyDetector(10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// Eleven quiet days and one spike.
	series := dailySeries(start, 10, 11, 10, 9, 10, 11, 10, 9, 10, 11, 10, 100)

	anomalies := d.Detect(series, MethodZScore)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %d, expected 1", len(anomalies))
	}
	a := anomalies[0]
	if a.Index != 11 {
		t.Errorf("Index = %d, expected 11", a.Index)
	}
	if a.Method != MethodZScore {
		t.Errorf("Method = %s, expected zscore", a.Method)
	}
	if a.Score <= d.ZScoreThreshold {
		t.Errorf("Score = %v, should exceed the threshold %v", a.Score, d.ZScoreThreshold)
	}
}

func TestDetectZScoreConstantSeries(t *testing.T) {
	d := NewAnomalyDetector(5)
	series := dailySeries(time.Now(), 5, 5, 5, 5, 5, 5)

	if got := d.Detect(series, MethodZScore); got != nil {
		t.Errorf("constant series has no outliers, got %v", got)
	}
}

func TestDetectIQRFlagsOutlier(t *testing.T) {
	d := NewAnomalyDetector(10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(start, 10, 12, 11, 13, 10, 12, 11, 13, 10, 12, 11, 200)

	anomalies := d.Detect(series, MethodIQR)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %d, expected 1", len(anomalies))
	}
	a := anomalies[0]
	if a.Index != 11 {
		t.Errorf("Index = %d, expected 11", a.Index)
	}
	if a.Method != MethodIQR {
		t.Errorf("Method = %s, expected iqr", a.Method)
	}
	if a.Severity != "high" {
		t.Errorf("Severity = %s, a value this far out should be high", a.Severity)
	}
}

func TestDetectDefaultsToZScore(t *testing.T) {
	d := NewAnomalyDetector(10)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(start, 10, 11, 10, 9, 10, 11, 10, 9, 10, 11, 10, 100)

	anomalies := d.Detect(series, "unknown-method")
	if len(anomalies) != 1 || anomalies[0].Method != MethodZScore {
		t.Errorf("unknown method should fall back to zscore, got %+v", anomalies)
	}
}

func TestNewAnomalyDetectorDefaults(t *testing.T) {
	d := NewAnomalyDetector(0)
	if d.MinDataPoints != DefaultMinDataPoints {
		t.Errorf("MinDataPoints = %d, expected default %d", d.MinDataPoints, DefaultMinDataPoints)
	}
	if d.ZScoreThreshold != DefaultZScoreThreshold {
		t.Errorf("ZScoreThreshold = %v, expected default %v", d.ZScoreThreshold, DefaultZScoreThreshold)
	}
	if d.IQRMultiplier != DefaultIQRMultiplier {
		t.Errorf("IQRMultiplier = %v, expected default %v", d.IQRMultiplier, DefaultIQRMultiplier)
	}
}
