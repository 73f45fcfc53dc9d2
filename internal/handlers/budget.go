package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/budget"
	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/pkg/response"
)

type BudgetHandler struct {
	agent *budget.Agent
}

func NewBudgetHandler(agent *budget.Agent) *BudgetHandler {
	return &BudgetHandler{agent: agent}
}

// AnalyzeBudget runs one advisory budget evaluation.
// POST /api/v1/agents/budget-enforcement/analyze
func (h *BudgetHandler) AnalyzeBudget(c *gin.Context) {
	var req budget.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "malformed budget request")
		return
	}

	// The evaluation is always scoped to the caller's tenant.
	if tenant := middleware.GetTenantID(c); tenant != "" {
		req.TenantID = tenant
	}

	signal, err := h.agent.Evaluate(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, budget.ErrInvalidRequest) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, signal)
}
