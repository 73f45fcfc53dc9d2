package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/internal/pricing"
	"github.com/costwatch/costwatch/pkg/response"
)

type PricingHandler struct {
	catalog *pricing.Catalog
	audit   auditRecorder
}

func NewPricingHandler(catalog *pricing.Catalog, audit auditRecorder) *PricingHandler {
	return &PricingHandler{catalog: catalog, audit: audit}
}

// ListPricing returns known pricing tables, optionally filtered.
// GET /api/v1/pricing?provider=&model=
func (h *PricingHandler) ListPricing(c *gin.Context) {
	tables := h.catalog.List(c.Query("provider"), c.Query("model"))
	response.Success(c, gin.H{"data": tables})
}

// CreatePricing registers a new pricing window. Overlapping windows for
// the same (provider, model, region) are rejected with 409.
// POST /api/v1/pricing
func (h *PricingHandler) CreatePricing(c *gin.Context) {
	var table models.PricingTable
	if err := c.ShouldBindJSON(&table); err != nil {
		response.BadRequest(c, "malformed pricing table")
		return
	}

	if err := h.catalog.Add(&table); err != nil {
		switch {
		case errors.Is(err, pricing.ErrPricingConflict):
			response.Error(c, response.NewConflict(response.CodePricingConflict, err.Error()))
		default:
			response.BadRequest(c, err.Error())
		}
		return
	}

	h.recordChange(c, models.AuditResourceCreate, "pricing_table", table.ID.String())
	response.Created(c, table)
}

func (h *PricingHandler) recordChange(c *gin.Context, eventType, resource, resourceID string) {
	if h.audit == nil {
		return
	}
	authCtx := middleware.GetAuthContext(c)
	actor, actorType := "system", "system"
	if authCtx != nil {
		actor, actorType = authCtx.Subject, authCtx.ActorType
	}
	_ = h.audit.Record(c.Request.Context(), &models.AuditEvent{
		Actor:      actor,
		ActorType:  actorType,
		TenantID:   middleware.GetTenantID(c),
		EventType:  eventType,
		Resource:   resource,
		ResourceID: resourceID,
		Outcome:    models.AuditOutcomeSuccess,
		HTTPMethod: c.Request.Method,
		HTTPPath:   c.FullPath(),
		ClientIP:   c.ClientIP(),
	})
}
