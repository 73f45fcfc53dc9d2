package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret   []byte
	jwtIssuer   = "costwatch"
	jwtAudience = "costwatch-api"
)

// Token types carried in the "typ" claim. Refresh tokens are only accepted
// by the refresh endpoint.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenInvalid   = errors.New("invalid or expired token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims are the JWT claims issued for platform subjects.
type Claims struct {
	Subject     string   `json:"sub_id"`
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

// SetJWTSecret sets the signing secret. Must be called before issuing tokens.
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// SetJWTIssuerAudience overrides the issuer and audience checked on parse.
func SetJWTIssuerAudience(iss, aud string) {
	if iss != "" {
		jwtIssuer = iss
	}
	if aud != "" {
		jwtAudience = aud
	}
}

// GenerateToken creates a signed HS256 access token.
func GenerateToken(subject, tenantID string, permissions []string, expireHour int) (string, error) {
	return generate(subject, tenantID, permissions, TokenTypeAccess, expireHour)
}

// GenerateRefreshToken creates a signed HS256 refresh token. It carries no
// permissions; they are re-resolved when the token is exchanged.
func GenerateRefreshToken(subject, tenantID string, expireHour int) (string, error) {
	return generate(subject, tenantID, nil, TokenTypeRefresh, expireHour)
}

func generate(subject, tenantID string, permissions []string, tokenType string, expireHour int) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject:     subject,
		TenantID:    tenantID,
		Permissions: permissions,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    jwtIssuer,
			Audience:  jwt.ClaimStrings{jwtAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHour) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken validates the signature, expiry, issuer and audience, and
// returns the claims of an access or refresh token.
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return jwtSecret, nil
	},
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseAccessToken rejects anything that is not an access token.
func ParseAccessToken(tokenString string) (*Claims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ParseRefreshToken rejects anything that is not a refresh token.
func ParseRefreshToken(tokenString string) (*Claims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
