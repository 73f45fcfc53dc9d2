package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/analytics"
	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/pkg/response"
)

type CostsHandler struct {
	svc *analytics.Service
}

func NewCostsHandler(svc *analytics.Service) *CostsHandler {
	return &CostsHandler{svc: svc}
}

// queryFromRequest builds the tenant-scoped analytics query. The tenant
// always comes from the credential, never from the request.
func queryFromRequest(c *gin.Context) (analytics.Query, error) {
	q := analytics.Query{
		TenantID:  middleware.GetTenantID(c),
		ProjectID: c.Query("project_id"),
		Provider:  c.Query("provider"),
		Model:     c.Query("model"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, response.NewBadRequest("from must be RFC 3339")
		}
		q.From = t.UTC()
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, response.NewBadRequest("to must be RFC 3339")
		}
		q.To = t.UTC()
	}
	return q, nil
}

// GetCosts returns the aggregated cost summary for a range.
// GET /api/v1/costs
func (h *CostsHandler) GetCosts(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.svc.Summary(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// ListCosts returns one page of raw cost records.
// GET /api/v1/costs/records
func (h *CostsHandler) ListCosts(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	params, err := response.ParsePageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.svc.ListCostRecords(c.Request.Context(), q, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}
