package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/costwatch/costwatch/internal/dlq"
	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/pkg/response"
)

type DlqHandler struct {
	store     dlq.Store
	processor *dlq.Processor
}

func NewDlqHandler(store dlq.Store, processor *dlq.Processor) *DlqHandler {
	return &DlqHandler{store: store, processor: processor}
}

// ListItems returns one page of the tenant's dead-letter items.
// GET /api/v1/admin/dlq?status=
func (h *DlqHandler) ListItems(c *gin.Context) {
	params, err := response.ParsePageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, total, err := h.store.List(c.Request.Context(),
		middleware.GetTenantID(c), c.Query("status"), params.Offset(), params.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewPage(items, params, total))
}

// RetryItem puts a failed or expired item back in the retry queue.
// POST /api/v1/admin/dlq/:id/retry
func (h *DlqHandler) RetryItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid dlq item id")
		return
	}

	err = h.processor.RetryNow(c.Request.Context(), id)
	if errors.Is(err, dlq.ErrItemNotFound) {
		response.NotFound(c, "dlq item not found")
		return
	}
	if errors.Is(err, dlq.ErrNotRetryable) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"queued": true})
}
