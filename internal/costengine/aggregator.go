package costengine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/costwatch/costwatch/internal/models"
)

// CostSummary is the aggregate view of a set of cost records over a period.
type CostSummary struct {
	TotalCost         decimal.Decimal            `json:"total_cost"`
	TotalRequests     int64                      `json:"total_requests"`
	AvgCostPerRequest decimal.Decimal            `json:"avg_cost_per_request"`
	PeriodStart       time.Time                  `json:"period_start"`
	PeriodEnd         time.Time                  `json:"period_end"`
	ByProvider        map[string]decimal.Decimal `json:"by_provider"`
	ByModel           map[string]decimal.Decimal `json:"by_model"`
	ByProject         map[string]decimal.Decimal `json:"by_project"`
}

// Aggregator reduces cost records into summaries and time buckets.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Summarize aggregates records over [start, end]. Empty input yields a
// zero-valued summary, not an error.
func (a *Aggregator) Summarize(records []models.CostRecord, start, end time.Time) CostSummary {
	summary := CostSummary{
		TotalCost:         decimal.Zero,
		AvgCostPerRequest: decimal.Zero,
		PeriodStart:       start,
		PeriodEnd:         end,
		ByProvider:        make(map[string]decimal.Decimal),
		ByModel:           make(map[string]decimal.Decimal),
		ByProject:         make(map[string]decimal.Decimal),
	}

	for i := range records {
		r := &records[i]
		summary.TotalCost = summary.TotalCost.Add(r.TotalCost)
		summary.ByProvider[r.Provider] = summary.ByProvider[r.Provider].Add(r.TotalCost)
		summary.ByModel[r.Model] = summary.ByModel[r.Model].Add(r.TotalCost)
		if r.ProjectID != "" {
			summary.ByProject[r.ProjectID] = summary.ByProject[r.ProjectID].Add(r.TotalCost)
		}
	}

	summary.TotalRequests = int64(len(records))
	if summary.TotalRequests > 0 {
		summary.AvgCostPerRequest = summary.TotalCost.Div(decimal.NewFromInt(summary.TotalRequests))
	}
	return summary
}

// GroupByTimeWindow buckets record costs by
// floor(timestamp_in_hours / window_hours) * window_hours.
func (a *Aggregator) GroupByTimeWindow(records []models.CostRecord, windowHours int64) map[time.Time]decimal.Decimal {
	grouped := make(map[time.Time]decimal.Decimal)
	for i := range records {
		r := &records[i]
		bucket := roundToWindow(r.Timestamp, windowHours)
		grouped[bucket] = grouped[bucket].Add(r.TotalCost)
	}
	return grouped
}

func roundToWindow(ts time.Time, windowHours int64) time.Time {
	hours := ts.Unix() / 3600
	windowStart := (hours / windowHours) * windowHours
	return time.Unix(windowStart*3600, 0).UTC()
}
