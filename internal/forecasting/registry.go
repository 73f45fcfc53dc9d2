package forecasting

import "fmt"

// ModelKind names a registered forecasting variant.
type ModelKind string

const (
	ModelLinearTrend          ModelKind = "linear_trend"
	ModelMovingAverage        ModelKind = "moving_average"
	ModelExponentialSmoothing ModelKind = "exponential_smoothing"
)

// Registry builds forecasting models by kind with shared defaults.
type Registry struct {
	confidence float64
	maWindow   int
	alpha      float64
}

func NewRegistry(confidence float64) *Registry {
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	return &Registry{
		confidence: confidence,
		maWindow:   7,
		alpha:      DefaultAlpha,
	}
}

// New returns a fresh untrained model of the given kind.
func (r *Registry) New(kind ModelKind) (Model, error) {
	switch kind {
	case ModelLinearTrend:
		return NewLinearTrendModel(r.confidence), nil
	case ModelMovingAverage:
		return NewMovingAverageModel(r.maWindow, r.confidence), nil
	case ModelExponentialSmoothing:
		return NewExponentialSmoothingModel(r.alpha, r.confidence), nil
	default:
		return nil, fmt.Errorf("unknown forecasting model %q", kind)
	}
}

// Kinds lists the registered model kinds.
func (r *Registry) Kinds() []ModelKind {
	return []ModelKind{ModelLinearTrend, ModelMovingAverage, ModelExponentialSmoothing}
}
