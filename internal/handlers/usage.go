package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/ingestion"
	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/pkg/response"
)

// Request bodies above this size are rejected with 413.
const maxBodyBytes = 4 << 20

type UsageHandler struct {
	svc *ingestion.Service
}

func NewUsageHandler(svc *ingestion.Service) *UsageHandler {
	return &UsageHandler{svc: svc}
}

// PostUsage ingests a single usage record.
// POST /api/v1/usage
func (h *UsageHandler) PostUsage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var payload ingestion.UsageWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		if tooLarge(err) {
			response.Fail(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge,
				"request body exceeds size limit", nil)
			return
		}
		response.BadRequest(c, "malformed request body")
		return
	}

	// Callers may only ingest into their own tenant.
	if tenant := middleware.GetTenantID(c); tenant != "" {
		payload.TenantID = tenant
	}

	resp := h.svc.HandleSingle(c.Request.Context(), &payload)
	if resp.Status == ingestion.StatusFailed {
		status := http.StatusBadRequest
		for _, e := range resp.Errors {
			if e.Code == response.CodeStorageUnavailable {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, resp)
		return
	}
	response.Created(c, resp)
}

// PostUsageBatch ingests up to 1000 records in one call.
// POST /api/v1/usage/batch
func (h *UsageHandler) PostUsageBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req ingestion.BatchIngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			response.Fail(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge,
				"request body exceeds size limit", nil)
			return
		}
		response.BadRequest(c, "malformed request body")
		return
	}

	tenant := middleware.GetTenantID(c)
	for i := range req.Records {
		if tenant != "" {
			req.Records[i].TenantID = tenant
		}
	}

	resp, err := h.svc.HandleBatch(c.Request.Context(), &req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, resp)
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
