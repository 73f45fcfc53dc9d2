package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/analytics"
	"github.com/costwatch/costwatch/internal/forecasting"
	"github.com/costwatch/costwatch/pkg/response"
)

type AnalyticsHandler struct {
	svc *analytics.Service
}

func NewAnalyticsHandler(svc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// GetAnalytics returns a bucketed time series plus its summary.
// GET /api/v1/analytics?interval=hour|day|week
func (h *AnalyticsHandler) GetAnalytics(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	interval := c.DefaultQuery("interval", analytics.IntervalDay)
	series, err := h.svc.TimeSeries(c.Request.Context(), q, interval)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"interval": interval,
		"series":   series,
		"summary":  summary,
	})
}

// GetAnomalies flags unusual days in the tenant's daily spend.
// GET /api/v1/analytics/anomalies?method=zscore|iqr
func (h *AnalyticsHandler) GetAnomalies(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	method := c.DefaultQuery("method", forecasting.MethodZScore)
	if method != forecasting.MethodZScore && method != forecasting.MethodIQR {
		response.BadRequest(c, "method must be zscore or iqr")
		return
	}

	anomalies, err := h.svc.Anomalies(c.Request.Context(), q, method)
	if err != nil {
		response.Error(c, err)
		return
	}
	if anomalies == nil {
		anomalies = []forecasting.Anomaly{}
	}
	response.Success(c, gin.H{
		"method":    method,
		"anomalies": anomalies,
	})
}

// GetForecast projects daily spend ahead with the requested model.
// GET /api/v1/analytics/forecast?model=linear_trend&horizon=7
func (h *AnalyticsHandler) GetForecast(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	kind := forecasting.ModelKind(c.DefaultQuery("model", string(forecasting.ModelLinearTrend)))
	horizon, err := strconv.Atoi(c.DefaultQuery("horizon", "7"))
	if err != nil || horizon < 1 || horizon > 365 {
		response.BadRequest(c, "horizon must be an integer between 1 and 365")
		return
	}

	forecast, err := h.svc.ForecastSpend(c.Request.Context(), q, kind, horizon)
	if err != nil {
		if errors.Is(err, forecasting.ErrInsufficientData) {
			response.Fail(c, http.StatusUnprocessableEntity, response.CodeValidation, err.Error(), nil)
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, forecast)
}
