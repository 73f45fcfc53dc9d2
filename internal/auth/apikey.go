package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/pkg/logger"
)

const minRandomLen = 16

var (
	ErrKeyNotFound  = errors.New("api key not found")
	ErrKeyUnusable  = errors.New("api key is expired or revoked")
	ErrKeyMalformed = errors.New("api key is malformed")
)

// APIKeyService issues and verifies API keys. Only the SHA-256 hash of a
// key is ever stored; the raw key is returned once at creation.
type APIKeyService struct {
	db     *gorm.DB
	prefix string
	keyLen int

	// read-mostly cache keyed by hash, invalidated on revoke
	mu    sync.RWMutex
	cache map[string]*models.APIKey
}

func NewAPIKeyService(db *gorm.DB, prefix string, keyLen int) *APIKeyService {
	if keyLen < minRandomLen {
		keyLen = minRandomLen
	}
	return &APIKeyService{
		db:     db,
		prefix: prefix,
		keyLen: keyLen,
		cache:  make(map[string]*models.APIKey),
	}
}

// HashKey returns the lowercase hex SHA-256 of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateKey mints a new key for the tenant and returns the record along
// with the raw key. The raw key is not recoverable afterwards.
func (s *APIKeyService) CreateKey(ctx context.Context, tenantID, name string, permissions []string, expiresAt *time.Time) (*models.APIKey, string, error) {
	buf := make([]byte, s.keyLen)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("failed to generate key material: %w", err)
	}
	raw := s.prefix + hex.EncodeToString(buf)

	key := &models.APIKey{
		ID:          uuid.New(),
		TenantID:    tenantID,
		KeyHash:     HashKey(raw),
		Prefix:      s.prefix,
		Name:        name,
		Permissions: permissions,
		IsActive:    true,
		ExpiresAt:   expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, "", fmt.Errorf("failed to store api key: %w", err)
	}
	logger.Info().Str("tenant_id", tenantID).Str("key_id", key.ID.String()).Msg("api key created")
	return key, raw, nil
}

// VerifyKey authenticates a raw key: format check, hash, constant-time
// compare, then expiry and revocation checks. On success last_used_at is
// updated asynchronously of the returned record.
func (s *APIKeyService) VerifyKey(ctx context.Context, raw string) (*models.APIKey, error) {
	if !strings.HasPrefix(raw, s.prefix) || len(raw) < len(s.prefix)+minRandomLen {
		return nil, ErrKeyMalformed
	}
	hash := HashKey(raw)

	key, err := s.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, ErrKeyNotFound
	}
	if !key.Usable(time.Now().UTC()) {
		return nil, ErrKeyUnusable
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", key.ID).
		Update("last_used_at", now).Error; err != nil {
		logger.Warn().Err(err).Str("key_id", key.ID.String()).Msg("failed to update api key last_used_at")
	}
	key.LastUsedAt = &now
	return key, nil
}

func (s *APIKeyService) lookup(ctx context.Context, hash string) (*models.APIKey, error) {
	s.mu.RLock()
	cached, ok := s.cache[hash]
	s.mu.RUnlock()
	if ok {
		copied := *cached
		return &copied, nil
	}

	var key models.APIKey
	err := s.db.WithContext(ctx).Where("key_hash = ?", hash).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}

	s.mu.Lock()
	s.cache[hash] = &key
	s.mu.Unlock()
	copied := key
	return &copied, nil
}

// RevokeKey marks a key revoked and drops it from the cache.
func (s *APIKeyService) RevokeKey(ctx context.Context, tenantID string, id uuid.UUID) error {
	var key models.APIKey
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&key).
		Updates(map[string]interface{}{"revoked": true, "is_active": false}).Error; err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	s.mu.Lock()
	delete(s.cache, key.KeyHash)
	s.mu.Unlock()
	logger.Info().Str("tenant_id", tenantID).Str("key_id", id.String()).Msg("api key revoked")
	return nil
}

// ListKeys returns a tenant's keys, newest first. Hashes are never exposed.
func (s *APIKeyService) ListKeys(ctx context.Context, tenantID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}
