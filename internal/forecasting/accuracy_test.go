package forecasting

import (
	"errors"
	"testing"
)

func TestEvaluateAccuracyPerfectForecast(t *testing.T) {
	actual := []float64{10, 20, 30, 40}
	report, err := EvaluateAccuracy(actual, actual)
	if err != nil {
		t.Fatalf("EvaluateAccuracy() error = %v", err)
	}
	if report.MAE != 0 || report.RMSE != 0 || report.MAPE != 0 {
		t.Errorf("perfect forecast should have zero error: %+v", report)
	}
	if report.RSquared != 1 {
		t.Errorf("RSquared = %v, expected 1", report.RSquared)
	}
	if report.Grade != GradeExcellent {
		t.Errorf("Grade = %s, expected excellent", report.Grade)
	}
}

func TestEvaluateAccuracyKnownValues(t *testing.T) {
	actual := []float64{100, 100, 100, 100}
	predicted := []float64{90, 110, 90, 110}

	report, err := EvaluateAccuracy(actual, predicted)
	if err != nil {
		t.Fatalf("EvaluateAccuracy() error = %v", err)
	}
	if !approxEqual(report.MAE, 10, 1e-9) {
		t.Errorf("MAE = %v, expected 10", report.MAE)
	}
	if !approxEqual(report.RMSE, 10, 1e-9) {
		t.Errorf("RMSE = %v, expected 10", report.RMSE)
	}
	if !approxEqual(report.MAPE, 10, 1e-9) {
		t.Errorf("MAPE = %v, expected 10", report.MAPE)
	}
	// Zero-variance actuals: RSquared is 1 by convention.
	if report.RSquared != 1 {
		t.Errorf("RSquared = %v, expected 1 for zero-variance actuals", report.RSquared)
	}
	if report.Grade != GradeGood {
		t.Errorf("Grade = %s, expected good at MAPE 10", report.Grade)
	}
}

func TestEvaluateAccuracyRejectsMisalignedSeries(t *testing.T) {
	if _, err := EvaluateAccuracy(nil, nil); !errors.Is(err, ErrCalculation) {
		t.Errorf("empty series: error = %v, expected ErrCalculation", err)
	}
	if _, err := EvaluateAccuracy([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrCalculation) {
		t.Errorf("length mismatch: error = %v, expected ErrCalculation", err)
	}
}

func TestEvaluateAccuracyAllZeroActuals(t *testing.T) {
	_, err := EvaluateAccuracy([]float64{0, 0, 0}, []float64{1, 2, 3})
	if !errors.Is(err, ErrCalculation) {
		t.Errorf("error = %v, MAPE must be undefined for all-zero actuals", err)
	}
}

func TestEvaluateAccuracySkipsZeroActualsInMAPE(t *testing.T) {
	actual := []float64{0, 100, 100}
	predicted := []float64{5, 80, 80}

	report, err := EvaluateAccuracy(actual, predicted)
	if err != nil {
		t.Fatalf("EvaluateAccuracy() error = %v", err)
	}
	// Only the two non-zero actuals contribute: each 20% off.
	if !approxEqual(report.MAPE, 20, 1e-9) {
		t.Errorf("MAPE = %v, expected 20", report.MAPE)
	}
}

func TestGradeBuckets(t *testing.T) {
	cases := []struct {
		mape float64
		want AccuracyGrade
	}{
		{0, GradeExcellent},
		{9.99, GradeExcellent},
		{10, GradeGood},
		{19.99, GradeGood},
		{20, GradeAcceptable},
		{49.99, GradeAcceptable},
		{50, GradePoor},
		{500, GradePoor},
	}
	for _, tc := range cases {
		if got := gradeMAPE(tc.mape); got != tc.want {
			t.Errorf("gradeMAPE(%v) = %s, expected %s", tc.mape, got, tc.want)
		}
	}
}
