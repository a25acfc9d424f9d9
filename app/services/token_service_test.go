package services

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(t *testing.T) TokenService {
	t.Helper()
	svc, err := NewTokenService(15*time.Minute, 7*24*time.Hour, time.Hour, "test-issuer", "test-audience", testSecret)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		access      time.Duration
		secretKey   string
		expectError bool
	}{
		{name: "valid configuration", access: 15 * time.Minute, secretKey: testSecret},
		{name: "missing secret key", access: 15 * time.Minute, secretKey: "", expectError: true},
		{name: "zero ttl", access: 0, secretKey: testSecret, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(tt.access, time.Hour, time.Hour, "issuer", "audience", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestAdminTokens(t *testing.T) {
	svc := createTestTokenService(t)

	access, refresh, err := svc.GenerateAdminTokens(7)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := svc.ValidateAdminToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AdminID)
	assert.Equal(t, tokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))

	refreshClaims, err := svc.ValidateAdminToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, tokenTypeRefresh, refreshClaims.TokenType)
}

func TestRefreshAdminToken(t *testing.T) {
	svc := createTestTokenService(t)

	access, refresh, err := svc.GenerateAdminTokens(3)
	require.NoError(t, err)

	_, _, err = svc.RefreshAdminToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	newAccess, newRefresh, err := svc.RefreshAdminToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	// the consumed refresh token cannot be replayed
	_, _, err = svc.RefreshAdminToken(refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestCompanyToken(t *testing.T) {
	svc := createTestTokenService(t)

	token, err := svc.GenerateCompanyToken(12, "lamba-property-limited")
	require.NoError(t, err)

	claims, err := svc.ValidateCompanyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(12), claims.CompanyID)
	assert.Equal(t, "lamba-property-limited", claims.CompanySlug)
	assert.Equal(t, time.Hour, svc.CompanyTokenTTL())
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	svc := createTestTokenService(t)

	adminAccess, _, err := svc.GenerateAdminTokens(1)
	require.NoError(t, err)
	companyToken, err := svc.GenerateCompanyToken(1, "acme")
	require.NoError(t, err)

	_, err = svc.ValidateCompanyToken(adminAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.ValidateAdminToken(companyToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRevokeToken(t *testing.T) {
	svc := createTestTokenService(t)

	token, err := svc.GenerateCompanyToken(5, "acme")
	require.NoError(t, err)

	claims, err := svc.ValidateCompanyToken(token)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(token))
	assert.True(t, svc.IsTokenRevoked(claims.TokenID))

	_, err = svc.ValidateCompanyToken(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	assert.ErrorIs(t, svc.RevokeToken("not-a-token"), ErrTokenInvalid)
}

func TestTokenExpiration(t *testing.T) {
	svc, err := NewTokenService(time.Second, time.Second, time.Second, "test-issuer", "test-audience", testSecret)
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id":   1,
		"sub_type":   subjectAdmin,
		"token_type": tokenTypeAccess,
		"jti":        "expired",
		"iat":        time.Now().Add(-2 * time.Hour).Unix(),
		"exp":        time.Now().Add(-time.Hour).Unix(),
		"iss":        "test-issuer",
		"aud":        "test-audience",
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateAdminToken(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenSecurity(t *testing.T) {
	svc := createTestTokenService(t)
	other, err := NewTokenService(time.Hour, time.Hour, time.Hour, "test-issuer", "test-audience", "another-secret-key-for-signing-tokens-32")
	require.NoError(t, err)

	token, err := other.GenerateCompanyToken(1, "acme")
	require.NoError(t, err)

	_, err = svc.ValidateCompanyToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	wrongAudience, err := NewTokenService(time.Hour, time.Hour, time.Hour, "test-issuer", "someone-else", testSecret)
	require.NoError(t, err)
	token, err = wrongAudience.GenerateCompanyToken(1, "acme")
	require.NoError(t, err)

	_, err = svc.ValidateCompanyToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenValidationEdgeCases(t *testing.T) {
	svc := createTestTokenService(t)

	for _, token := range []string{"", "invalid", "a.b.c", "Bearer x.y.z"} {
		_, err := svc.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, token)
	}
}

func TestConcurrentTokenGeneration(t *testing.T) {
	svc := createTestTokenService(t)

	const workers = 20
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			token, err := svc.GenerateCompanyToken(id, "acme")
			if !assert.NoError(t, err) {
				return
			}
			claims, err := svc.ValidateCompanyToken(token)
			if assert.NoError(t, err) {
				ids <- claims.TokenID
			}
		}(uint(i + 1))
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers)
}

func BenchmarkGenerateCompanyToken(b *testing.B) {
	svc, err := NewTokenService(time.Hour, time.Hour, time.Hour, "issuer", "audience", testSecret)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = svc.GenerateCompanyToken(1, "acme")
	}
}
