package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/costwatch/costwatch/internal/auth"
	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/pkg/response"
)

type APIKeyHandler struct {
	svc   *auth.APIKeyService
	audit auditRecorder
}

func NewAPIKeyHandler(svc *auth.APIKeyService, audit auditRecorder) *APIKeyHandler {
	return &APIKeyHandler{svc: svc, audit: audit}
}

type createKeyRequest struct {
	Name        string     `json:"name" binding:"required"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateKey mints an API key. The raw key appears in this response only.
// POST /api/v1/admin/api-keys
func (h *APIKeyHandler) CreateKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	for _, p := range req.Permissions {
		if p == auth.Wildcard {
			continue
		}
		if _, err := auth.ParsePermission(p); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	tenant := middleware.GetTenantID(c)
	key, raw, err := h.svc.CreateKey(c.Request.Context(), tenant, req.Name, req.Permissions, req.ExpiresAt)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.recordKeyEvent(c, models.AuditKeyCreated, key.ID.String())
	response.Created(c, gin.H{
		"key":     key,
		"raw_key": raw,
	})
}

// ListKeys lists the tenant's keys without hashes.
// GET /api/v1/admin/api-keys
func (h *APIKeyHandler) ListKeys(c *gin.Context) {
	keys, err := h.svc.ListKeys(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"data": keys})
}

// RevokeKey permanently revokes one key.
// DELETE /api/v1/admin/api-keys/:id
func (h *APIKeyHandler) RevokeKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid key id")
		return
	}

	err = h.svc.RevokeKey(c.Request.Context(), middleware.GetTenantID(c), id)
	if errors.Is(err, auth.ErrKeyNotFound) {
		response.NotFound(c, "api key not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	h.recordKeyEvent(c, models.AuditKeyRevoked, id.String())
	response.Success(c, gin.H{"revoked": true})
}

func (h *APIKeyHandler) recordKeyEvent(c *gin.Context, eventType, keyID string) {
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
		Resource:   "api_key",
		ResourceID: keyID,
		Outcome:    models.AuditOutcomeSuccess,
		ClientIP:   c.ClientIP(),
		HTTPMethod: c.Request.Method,
		HTTPPath:   c.FullPath(),
	})
}
