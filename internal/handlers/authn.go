package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/auth"
	"github.com/costwatch/costwatch/pkg/response"
)

type AuthHandler struct {
	svc *auth.LoginService
}

func NewAuthHandler(svc *auth.LoginService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login exchanges username/password for a token pair.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	pair, user, err := h.svc.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"tokens": pair,
		"user": gin.H{
			"username":  user.Username,
			"tenant_id": user.TenantID,
			"role_id":   user.RoleID,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token into a new token pair.
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh_token is required")
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			response.Unauthorized(c, "invalid or expired refresh token")
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"tokens": pair})
}
