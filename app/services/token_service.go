// Package services provides technical concerns shared by flows and handlers: tokens and the tenant cache
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/estate-registry/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	subjectAdmin   = "admin"
	subjectCompany = "company"
)

// TokenService handles JWT token generation and validation
type TokenService interface {
	GenerateAdminTokens(adminID uint) (accessToken, refreshToken string, err error)
	ValidateAdminToken(token string) (*AdminTokenClaims, error)
	RefreshAdminToken(refreshToken string) (newAccessToken, newRefreshToken string, err error)
	// GenerateCompanyToken issues an access token scoped to one company. There is no refresh token;
	// the company exchanges its API key again.
	GenerateCompanyToken(companyID uint, slug string) (accessToken string, err error)
	ValidateCompanyToken(token string) (*CompanyTokenClaims, error)
	RevokeToken(token string) error
	IsTokenRevoked(tokenID string) bool
	AccessTokenTTL() time.Duration
	CompanyTokenTTL() time.Duration
}

// AdminTokenClaims represents claims for admin JWTs
type AdminTokenClaims struct {
	AdminID   uint      `json:"admin_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
	TokenID   string    `json:"jti"`
}

// CompanyTokenClaims represents claims for company JWTs
type CompanyTokenClaims struct {
	CompanyID   uint      `json:"company_id"`
	CompanySlug string    `json:"company_slug"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
	TokenID     string    `json:"jti"`
}

// TokenServiceImpl implements TokenService with HS256 signed tokens
type TokenServiceImpl struct {
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	companyTokenTTL time.Duration
	secretKey       []byte
	issuer          string
	audience        string

	mu            sync.RWMutex
	revokedTokens map[string]time.Time // jti -> expiry
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL, refreshTokenTTL, companyTokenTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if accessTokenTTL <= 0 || refreshTokenTTL <= 0 || companyTokenTTL <= 0 {
		return nil, fmt.Errorf("token ttls must be positive")
	}

	return &TokenServiceImpl{
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		companyTokenTTL: companyTokenTTL,
		secretKey:       []byte(secretKey),
		issuer:          issuer,
		audience:        audience,
		revokedTokens:   make(map[string]time.Time),
	}, nil
}

func (s *TokenServiceImpl) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

func (s *TokenServiceImpl) CompanyTokenTTL() time.Duration {
	return s.companyTokenTTL
}

// GenerateAdminTokens generates access and refresh tokens for an admin
func (s *TokenServiceImpl) GenerateAdminTokens(adminID uint) (accessToken, refreshToken string, err error) {
	now := utils.UTCNow()

	accessToken, err = s.sign(jwt.MapClaims{
		"admin_id":   adminID,
		"sub_type":   subjectAdmin,
		"token_type": tokenTypeAccess,
	}, now, s.accessTokenTTL)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = s.sign(jwt.MapClaims{
		"admin_id":   adminID,
		"sub_type":   subjectAdmin,
		"token_type": tokenTypeRefresh,
	}, now, s.refreshTokenTTL)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// ValidateAdminToken validates an admin JWT and returns admin-specific claims
func (s *TokenServiceImpl) ValidateAdminToken(token string) (*AdminTokenClaims, error) {
	claims, err := s.parse(token, subjectAdmin)
	if err != nil {
		return nil, err
	}

	adminID, ok := claims["admin_id"].(float64)
	if !ok || adminID <= 0 {
		return nil, ErrTokenInvalid
	}

	common, err := commonClaims(claims)
	if err != nil {
		return nil, err
	}

	return &AdminTokenClaims{
		AdminID:   uint(adminID),
		TokenType: common.tokenType,
		TokenID:   common.tokenID,
		IssuedAt:  common.issuedAt,
		ExpiresAt: common.expiresAt,
	}, nil
}

// RefreshAdminToken rotates an admin refresh token. The old refresh token is revoked.
func (s *TokenServiceImpl) RefreshAdminToken(refreshToken string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.ValidateAdminToken(refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", "", fmt.Errorf("token is not a refresh token: %w", ErrTokenInvalid)
	}

	s.revoke(claims.TokenID, claims.ExpiresAt)
	return s.GenerateAdminTokens(claims.AdminID)
}

func (s *TokenServiceImpl) GenerateCompanyToken(companyID uint, slug string) (string, error) {
	return s.sign(jwt.MapClaims{
		"company_id":   companyID,
		"company_slug": slug,
		"sub_type":     subjectCompany,
		"token_type":   tokenTypeAccess,
	}, utils.UTCNow(), s.companyTokenTTL)
}

func (s *TokenServiceImpl) ValidateCompanyToken(token string) (*CompanyTokenClaims, error) {
	claims, err := s.parse(token, subjectCompany)
	if err != nil {
		return nil, err
	}

	companyID, ok := claims["company_id"].(float64)
	if !ok || companyID <= 0 {
		return nil, ErrTokenInvalid
	}
	slug, _ := claims["company_slug"].(string)

	common, err := commonClaims(claims)
	if err != nil {
		return nil, err
	}
	if common.tokenType != tokenTypeAccess {
		return nil, ErrTokenInvalid
	}

	return &CompanyTokenClaims{
		CompanyID:   uint(companyID),
		CompanySlug: slug,
		TokenType:   common.tokenType,
		TokenID:     common.tokenID,
		IssuedAt:    common.issuedAt,
		ExpiresAt:   common.expiresAt,
	}, nil
}

// RevokeToken blocks token until it would have expired anyway
func (s *TokenServiceImpl) RevokeToken(token string) error {
	parsed, err := jwt.Parse(token, s.keyFunc, s.parserOptions()...)
	if err != nil || !parsed.Valid {
		return ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ErrTokenInvalid
	}
	common, err := commonClaims(claims)
	if err != nil {
		return err
	}

	s.revoke(common.tokenID, common.expiresAt)
	return nil
}

// IsTokenRevoked checks if the token with the given jti has been revoked
func (s *TokenServiceImpl) IsTokenRevoked(tokenID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, revoked := s.revokedTokens[tokenID]
	return revoked
}

func (s *TokenServiceImpl) revoke(tokenID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := utils.UTCNow()
	for id, exp := range s.revokedTokens {
		if now.After(exp) {
			delete(s.revokedTokens, id)
		}
	}
	s.revokedTokens[tokenID] = expiresAt
}

func (s *TokenServiceImpl) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secretKey, nil
}

func (s *TokenServiceImpl) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	}
}

// parse verifies signature, issuer, audience and expiry, and checks that the token was issued for subject
func (s *TokenServiceImpl) parse(token, subject string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, s.keyFunc, s.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	if sub, _ := claims["sub_type"].(string); sub != subject {
		return nil, ErrTokenInvalid
	}
	if jti, _ := claims["jti"].(string); jti != "" && s.IsTokenRevoked(jti) {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

type parsedClaims struct {
	tokenType string
	tokenID   string
	issuedAt  time.Time
	expiresAt time.Time
}

func commonClaims(claims jwt.MapClaims) (*parsedClaims, error) {
	tokenType, ok := claims["token_type"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return &parsedClaims{
		tokenType: tokenType,
		tokenID:   tokenID,
		issuedAt:  time.Unix(int64(issuedAt), 0),
		expiresAt: time.Unix(int64(expiresAt), 0),
	}, nil
}

// sign adds the registered claims to claims and signs the token
func (s *TokenServiceImpl) sign(claims jwt.MapClaims, now time.Time, ttl time.Duration) (string, error) {
	tokenID, err := generateTokenID()
	if err != nil {
		return "", err
	}

	claims["jti"] = tokenID
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	claims["iss"] = s.issuer
	claims["aud"] = s.audience

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// generateTokenID generates a unique token ID
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", bytes), nil
}
