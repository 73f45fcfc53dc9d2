package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/costwatch/costwatch/internal/forecasting"
	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/pkg/logger"
)

// AgentName identifies this evaluator in persisted decision events.
const AgentName = "budget-enforcement"

// Severity orders constraint signals from informational to gating.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityGating   Severity = "gating"
)

func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	case SeverityGating:
		return 3
	}
	return -1
}

// atLeast returns the higher of the two severities.
func (s Severity) atLeast(floor Severity) Severity {
	if s.rank() < floor.rank() {
		return floor
	}
	return s
}

var ErrInvalidRequest = errors.New("invalid budget request")

// Request carries everything an evaluation needs. The agent holds no
// per-tenant state, so identical requests always produce identical signals.
type Request struct {
	TenantID          string                  `json:"tenant_id"`
	BudgetLimit       decimal.Decimal         `json:"budget_limit"`
	Currency          string                  `json:"currency"`
	PeriodStart       time.Time               `json:"period_start"`
	PeriodEnd         time.Time               `json:"period_end"`
	CurrentSpend      decimal.Decimal         `json:"current_spend"`
	WarningThreshold  float64                 `json:"warning_threshold,omitempty"`
	CriticalThreshold float64                 `json:"critical_threshold,omitempty"`
	GatingThreshold   float64                 `json:"gating_threshold,omitempty"`
	History           *forecasting.TimeSeries `json:"history,omitempty"`
}

// ConstraintSignal is the advisory outcome of a budget evaluation.
type ConstraintSignal struct {
	TenantID       string           `json:"tenant_id"`
	Severity       Severity         `json:"severity"`
	Ratio          decimal.Decimal  `json:"ratio"`
	CurrentSpend   decimal.Decimal  `json:"current_spend"`
	BudgetLimit    decimal.Decimal  `json:"budget_limit"`
	Currency       string           `json:"currency"`
	ProjectedSpend *decimal.Decimal `json:"projected_spend,omitempty"`
	ProjectedRatio *decimal.Decimal `json:"projected_ratio,omitempty"`
	Reason         string           `json:"reason"`
	PeriodStart    time.Time        `json:"period_start"`
	PeriodEnd      time.Time        `json:"period_end"`
}

// DecisionStore persists decision events for later review.
type DecisionStore interface {
	SaveDecision(ctx context.Context, event *models.DecisionEvent) error
}

// Agent evaluates spend against a budget and emits advisory signals.
// It never enforces anything itself.
type Agent struct {
	registry *forecasting.Registry
	store    DecisionStore

	defaultWarning  float64
	defaultCritical float64
	defaultGating   float64
}

func NewAgent(registry *forecasting.Registry, store DecisionStore, warning, critical, gating float64) *Agent {
	return &Agent{
		registry:        registry,
		store:           store,
		defaultWarning:  warning,
		defaultCritical: critical,
		defaultGating:   gating,
	}
}

func (a *Agent) validate(req *Request) error {
	if req.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidRequest)
	}
	if !req.BudgetLimit.IsPositive() {
		return fmt.Errorf("%w: budget_limit must be positive", ErrInvalidRequest)
	}
	if req.CurrentSpend.IsNegative() {
		return fmt.Errorf("%w: current_spend must not be negative", ErrInvalidRequest)
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return fmt.Errorf("%w: period end must be after period start", ErrInvalidRequest)
	}
	w, c, g := req.WarningThreshold, req.CriticalThreshold, req.GatingThreshold
	if !(w > 0 && w < c && c < g && g <= 1) {
		return fmt.Errorf("%w: thresholds must satisfy 0 < warning < critical < gating <= 1", ErrInvalidRequest)
	}
	return nil
}

// Evaluate classifies current spend against the budget, optionally elevates
// the severity based on a projection of the supplied history, persists a
// DecisionEvent, and returns the signal.
func (a *Agent) Evaluate(ctx context.Context, req *Request) (*ConstraintSignal, error) {
	if req.WarningThreshold == 0 {
		req.WarningThreshold = a.defaultWarning
	}
	if req.CriticalThreshold == 0 {
		req.CriticalThreshold = a.defaultCritical
	}
	if req.GatingThreshold == 0 {
		req.GatingThreshold = a.defaultGating
	}
	if err := a.validate(req); err != nil {
		return nil, err
	}

	ratio := req.CurrentSpend.Div(req.BudgetLimit).Round(6)
	severity := classify(ratio, req.WarningThreshold, req.CriticalThreshold, req.GatingThreshold)

	signal := &ConstraintSignal{
		TenantID:     req.TenantID,
		Severity:     severity,
		Ratio:        ratio,
		CurrentSpend: req.CurrentSpend,
		BudgetLimit:  req.BudgetLimit,
		Currency:     req.Currency,
		PeriodStart:  req.PeriodStart,
		PeriodEnd:    req.PeriodEnd,
		Reason: fmt.Sprintf("spend %s of %s %s (%s%% of budget)",
			req.CurrentSpend.StringFixed(2), req.BudgetLimit.StringFixed(2),
			req.Currency, ratio.Mul(decimal.NewFromInt(100)).StringFixed(1)),
	}

	if projected, ok := a.project(req); ok {
		projRatio := projected.Div(req.BudgetLimit).Round(6)
		signal.ProjectedSpend = &projected
		signal.ProjectedRatio = &projRatio
		gating := decimal.NewFromFloat(req.GatingThreshold)
		if projRatio.GreaterThanOrEqual(gating) {
			signal.Severity = signal.Severity.atLeast(SeverityCritical)
			signal.Reason = fmt.Sprintf("%s; projected spend %s %s would exceed the gating threshold",
				signal.Reason, projected.StringFixed(2), req.Currency)
		}
	}

	if a.store != nil {
		if err := a.store.SaveDecision(ctx, signalToEvent(signal)); err != nil {
			// The signal is still valid advice; persistence failure is logged
			// and not surfaced to the caller.
			logger.Warn().Err(err).Str("tenant_id", req.TenantID).Msg("failed to persist decision event")
		}
	}
	return signal, nil
}

// project extends the spend history to the end of the period with a linear
// trend model and returns current spend plus the summed future values.
func (a *Agent) project(req *Request) (decimal.Decimal, bool) {
	if req.History == nil || req.History.Len() < 2 || a.registry == nil {
		return decimal.Zero, false
	}
	model, err := a.registry.New(forecasting.ModelLinearTrend)
	if err != nil {
		return decimal.Zero, false
	}
	if err := model.Train(req.History); err != nil {
		return decimal.Zero, false
	}

	interval := req.History.DetectInterval()
	last := req.History.Points[req.History.Len()-1].Timestamp
	remaining := req.PeriodEnd.Sub(last)
	if remaining <= 0 || interval <= 0 {
		return decimal.Zero, false
	}
	horizon := int(remaining / interval)
	if horizon <= 0 {
		return decimal.Zero, false
	}

	fc, err := model.Forecast(horizon)
	if err != nil {
		return decimal.Zero, false
	}
	projected := req.CurrentSpend
	for _, p := range fc.Points {
		projected = projected.Add(p.Value)
	}
	return projected, true
}

func classify(ratio decimal.Decimal, warning, critical, gating float64) Severity {
	switch {
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(gating)):
		return SeverityGating
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(critical)):
		return SeverityCritical
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(warning)):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func signalToEvent(s *ConstraintSignal) *models.DecisionEvent {
	return &models.DecisionEvent{
		ID:             uuid.New(),
		TenantID:       s.TenantID,
		AgentName:      AgentName,
		Severity:       string(s.Severity),
		BudgetLimit:    s.BudgetLimit,
		CurrentSpend:   s.CurrentSpend,
		SpendRatio:     s.Ratio,
		ProjectedSpend: s.ProjectedSpend,
		Currency:       s.Currency,
		PeriodStart:    s.PeriodStart,
		PeriodEnd:      s.PeriodEnd,
		Reason:         s.Reason,
		CreatedAt:      time.Now().UTC(),
	}
}
