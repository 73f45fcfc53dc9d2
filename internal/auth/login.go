package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/internal/utils"
	"github.com/costwatch/costwatch/pkg/logger"
)

var ErrBadCredentials = errors.New("invalid username or password")

// LoginRequest is the console login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoginService authenticates console users and manages refresh-token
// rotation.
type LoginService struct {
	db             *gorm.DB
	accessExpHour  int
	refreshExpHour int
	audit          *AuditService
}

func NewLoginService(db *gorm.DB, accessExpHour, refreshExpHour int, audit *AuditService) *LoginService {
	return &LoginService{
		db:             db,
		accessExpHour:  accessExpHour,
		refreshExpHour: refreshExpHour,
		audit:          audit,
	}
}

// Login validates the password and issues a token pair.
func (s *LoginService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*TokenPair, *models.AdminUser, error) {
	var user models.AdminUser
	err := s.db.WithContext(ctx).Where("username = ? AND is_active = ?", req.Username, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.auditAuth(ctx, req.Username, models.AuditOutcomeFailure, clientIP, userAgent)
		return nil, nil, ErrBadCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		s.auditAuth(ctx, req.Username, models.AuditOutcomeFailure, clientIP, userAgent)
		return nil, nil, ErrBadCredentials
	}

	pair, err := s.issueTokens(ctx, &user, clientIP, userAgent)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Str("username", user.Username).Msg("failed to update last_login")
	}
	s.auditAuth(ctx, user.Username, models.AuditOutcomeSuccess, clientIP, userAgent)
	return pair, &user, nil
}

// Refresh rotates a refresh token: the old token is revoked and linked to
// its replacement. A revoked or expired token is rejected.
func (s *LoginService) Refresh(ctx context.Context, rawRefresh, clientIP, userAgent string) (*TokenPair, error) {
	claims, err := utils.ParseRefreshToken(rawRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	hash := HashKey(rawRefresh)
	var stored models.RefreshToken
	err = s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown refresh token", ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	now := time.Now().UTC()
	if stored.RevokedAt != nil || now.After(stored.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token revoked or expired", ErrUnauthenticated)
	}

	var user models.AdminUser
	if err := s.db.WithContext(ctx).Where("username = ? AND is_active = ?", claims.Subject, true).First(&user).Error; err != nil {
		return nil, fmt.Errorf("%w: user unavailable", ErrUnauthenticated)
	}

	pair, err := s.issueTokens(ctx, &user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	// Revoke the consumed token and point it at its successor.
	var replacement models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", HashKey(pair.RefreshToken)).First(&replacement).Error; err == nil {
		s.db.WithContext(ctx).Model(&stored).Updates(map[string]interface{}{
			"revoked_at":           now,
			"replaced_by_token_id": replacement.ID,
		})
	}
	return pair, nil
}

func (s *LoginService) issueTokens(ctx context.Context, user *models.AdminUser, clientIP, userAgent string) (*TokenPair, error) {
	perms, err := s.userPermissions(ctx, user)
	if err != nil {
		return nil, err
	}

	access, err := utils.GenerateToken(user.Username, user.TenantID, perms, s.accessExpHour)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := utils.GenerateRefreshToken(user.Username, user.TenantID, s.refreshExpHour)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	record := &models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   HashKey(refresh),
		ExpiresAt:   time.Now().UTC().Add(time.Duration(s.refreshExpHour) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessExpHour * 3600,
	}, nil
}

func (s *LoginService) userPermissions(ctx context.Context, user *models.AdminUser) ([]string, error) {
	if user.RoleID == "" {
		return nil, nil
	}
	var role models.Role
	err := s.db.WithContext(ctx).Where("id = ?", user.RoleID).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load role: %w", err)
	}
	return role.Permissions, nil
}

func (s *LoginService) auditAuth(ctx context.Context, actor, outcome, clientIP, userAgent string) {
	if s.audit == nil {
		return
	}
	eventType := models.AuditAuthSuccess
	severity := models.AuditSeverityInfo
	if outcome != models.AuditOutcomeSuccess {
		eventType = models.AuditAuthFailure
		severity = models.AuditSeverityWarning
	}
	_ = s.audit.Record(ctx, &models.AuditEvent{
		Actor:     actor,
		ActorType: ActorUser,
		EventType: eventType,
		Outcome:   outcome,
		Severity:  severity,
		ClientIP:  clientIP,
		UserAgent: userAgent,
	})
}
