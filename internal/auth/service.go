package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/internal/utils"
)

// Actor types carried in AuthContext and audit entries.
const (
	ActorUser   = "user"
	ActorAPIKey = "api_key"
	ActorSystem = "system"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// AuthContext is the resolved identity of a request, independent of which
// credential type produced it.
type AuthContext struct {
	Subject     string
	TenantID    string
	ActorType   string
	Permissions *PermissionSet
}

// Allows reports whether this caller may perform action on resource.
func (c *AuthContext) Allows(resource Resource, action Action, scope string) bool {
	return c.Permissions != nil && c.Permissions.Allows(resource, action, scope)
}

// Service resolves bearer JWTs and API keys into AuthContexts. Permissions
// accumulate across direct grants and bound roles.
type Service struct {
	db      *gorm.DB
	apiKeys *APIKeyService
}

func NewService(db *gorm.DB, apiKeys *APIKeyService) *Service {
	return &Service{db: db, apiKeys: apiKeys}
}

// AuthenticateJWT validates an access token and returns the caller context.
func (s *Service) AuthenticateJWT(ctx context.Context, token string) (*AuthContext, error) {
	claims, err := utils.ParseAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	rolePerms, err := s.rolePermissions(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return &AuthContext{
		Subject:     claims.Subject,
		TenantID:    claims.TenantID,
		ActorType:   ActorUser,
		Permissions: NewPermissionSet(append(rolePerms, claims.Permissions)...),
	}, nil
}

// AuthenticateAPIKey verifies a raw key and returns the caller context.
func (s *Service) AuthenticateAPIKey(ctx context.Context, raw string) (*AuthContext, error) {
	key, err := s.apiKeys.VerifyKey(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	rolePerms, err := s.rolePermissions(ctx, key.ID.String())
	if err != nil {
		return nil, err
	}
	return &AuthContext{
		Subject:     key.ID.String(),
		TenantID:    key.TenantID,
		ActorType:   ActorAPIKey,
		Permissions: NewPermissionSet(append(rolePerms, key.Permissions)...),
	}, nil
}

// rolePermissions collects the permission strings of every role bound to
// the subject.
func (s *Service) rolePermissions(ctx context.Context, subject string) ([][]string, error) {
	var bindings []models.RoleBinding
	if err := s.db.WithContext(ctx).Where("subject = ?", subject).Find(&bindings).Error; err != nil {
		return nil, fmt.Errorf("failed to load role bindings: %w", err)
	}
	if len(bindings) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(bindings))
	for _, b := range bindings {
		ids = append(ids, b.RoleID)
	}
	var roles []models.Role
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	perms := make([][]string, 0, len(roles))
	for _, r := range roles {
		perms = append(perms, r.Permissions)
	}
	return perms, nil
}

// BindRole assigns a role to a subject within a tenant.
func (s *Service) BindRole(ctx context.Context, subject, roleID, tenantID string) error {
	var role models.Role
	if err := s.db.WithContext(ctx).Where("id = ?", roleID).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("role %q does not exist", roleID)
		}
		return err
	}
	binding := &models.RoleBinding{
		ID:       uuid.New(),
		Subject:  subject,
		RoleID:   roleID,
		TenantID: tenantID,
	}
	return s.db.WithContext(ctx).Create(binding).Error
}
