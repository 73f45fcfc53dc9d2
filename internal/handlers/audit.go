package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/auth"
	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/pkg/response"
)

type AuditHandler struct {
	svc *auth.AuditService
}

func NewAuditHandler(svc *auth.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// ListAudit returns one page of the tenant's audit trail, newest first.
// GET /api/v1/admin/audit
func (h *AuditHandler) ListAudit(c *gin.Context) {
	params, err := response.ParsePageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := auth.AuditFilter{
		TenantID:  middleware.GetTenantID(c),
		Actor:     c.Query("actor"),
		EventType: c.Query("event_type"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "from must be RFC 3339")
			return
		}
		filter.From = t.UTC()
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "to must be RFC 3339")
			return
		}
		filter.To = t.UTC()
	}

	events, total, err := h.svc.List(c.Request.Context(), filter, params.Offset(), params.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewPage(events, params, total))
}
