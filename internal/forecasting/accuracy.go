package forecasting

import (
	"fmt"
	"math"
)

// AccuracyGrade buckets forecast quality by MAPE.
type AccuracyGrade string

const (
	GradeExcellent  AccuracyGrade = "excellent"
	GradeGood       AccuracyGrade = "good"
	GradeAcceptable AccuracyGrade = "acceptable"
	GradePoor       AccuracyGrade = "poor"
)

// AccuracyReport holds forecast error metrics over aligned actual and
// predicted series.
type AccuracyReport struct {
	MAE      float64       `json:"mae"`
	RMSE     float64       `json:"rmse"`
	MAPE     float64       `json:"mape"`
	RSquared float64       `json:"r_squared"`
	Grade    AccuracyGrade `json:"grade"`
}

// EvaluateAccuracy computes MAE, RMSE, MAPE and R-squared for equal-length,
// non-empty series. MAPE is undefined when every actual is zero.
func EvaluateAccuracy(actual, predicted []float64) (*AccuracyReport, error) {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return nil, fmt.Errorf("%w: series must be aligned and non-empty", ErrCalculation)
	}

	n := float64(len(actual))
	var absSum, sqSum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}
	mae := absSum / n
	rmse := math.Sqrt(sqSum / n)

	mape, err := computeMAPE(actual, predicted)
	if err != nil {
		return nil, err
	}

	r2 := computeRSquared(actual, predicted)

	return &AccuracyReport{
		MAE:      mae,
		RMSE:     rmse,
		MAPE:     mape,
		RSquared: r2,
		Grade:    gradeMAPE(mape),
	}, nil
}

// computeMAPE averages |a-p|/|a| over non-zero actuals.
func computeMAPE(actual, predicted []float64) (float64, error) {
	var sum float64
	count := 0
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs(actual[i]-predicted[i]) / math.Abs(actual[i]) * 100
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: MAPE undefined when all actuals are zero", ErrCalculation)
	}
	return sum / float64(count), nil
}

// computeRSquared returns 1.0 for zero-variance actuals by convention.
func computeRSquared(actual, predicted []float64) float64 {
	m := mean(actual)
	var ssRes, ssTot float64
	for i := range actual {
		ssRes += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
		ssTot += (actual[i] - m) * (actual[i] - m)
	}
	if ssTot == 0 {
		return 1.0
	}
	return 1 - ssRes/ssTot
}

func gradeMAPE(mape float64) AccuracyGrade {
	switch {
	case mape < 10:
		return GradeExcellent
	case mape < 20:
		return GradeGood
	case mape < 50:
		return GradeAcceptable
	default:
		return GradePoor
	}
}
