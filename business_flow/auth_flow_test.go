package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/services"
	"github.com/amirphl/estate-registry/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestTokenService(t *testing.T) services.TokenService {
	t.Helper()
	svc, err := services.NewTokenService(15*time.Minute, time.Hour, time.Hour, "estate-registry", "estate-registry-api", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	return svc
}

func TestAdminLogin(t *testing.T) {
	admins := &fakeAdminRepo{}
	audits := &fakeAuditRepo{}
	tokens := newTestTokenService(t)
	flow := NewAdminAuthFlow(admins, audits, tokens, bcrypt.MinCost, nil)
	ctx := context.Background()

	created, err := flow.EnsureBootstrapAdmin(ctx, "root", "s3cret-password")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = flow.EnsureBootstrapAdmin(ctx, "second", "another-password")
	require.NoError(t, err)
	assert.False(t, created, "bootstrap only runs on an empty table")

	resp, err := flow.Login(ctx, &dto.AdminLoginRequest{Username: "root", Password: "s3cret-password"}, NewClientMetadata("10.0.0.3", "test"))
	require.NoError(t, err)
	assert.Equal(t, "root", resp.Admin.Username)
	assert.Equal(t, "Bearer", resp.Session.TokenType)
	assert.Equal(t, int((15 * time.Minute).Seconds()), resp.Session.ExpiresIn)

	claims, err := tokens.ValidateAdminToken(resp.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Admin.ID, claims.AdminID)

	_, err = flow.Login(ctx, &dto.AdminLoginRequest{Username: "root", Password: "wrong-password"}, nil)
	assert.True(t, IsIncorrectPassword(err))

	_, err = flow.Login(ctx, &dto.AdminLoginRequest{Username: "nobody", Password: "whatever-password"}, nil)
	assert.True(t, IsAdminNotFound(err))

	assert.Equal(t, []string{
		models.AuditActionAdminLoginSuccess,
		models.AuditActionAdminLoginFailed,
		models.AuditActionAdminLoginFailed,
	}, audits.actions())

	refreshed, err := flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: resp.Session.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Session.AccessToken)

	require.NoError(t, flow.Logout(ctx, refreshed.Session.AccessToken))
	_, err = tokens.ValidateAdminToken(refreshed.Session.AccessToken)
	assert.ErrorIs(t, err, services.ErrTokenRevoked)
}

func TestAdminLogin_InactiveAdmin(t *testing.T) {
	admins := &fakeAdminRepo{}
	flow := NewAdminAuthFlow(admins, &fakeAuditRepo{}, newTestTokenService(t), bcrypt.MinCost, nil)
	ctx := context.Background()

	_, err := flow.EnsureBootstrapAdmin(ctx, "root", "s3cret-password")
	require.NoError(t, err)
	inactive := false
	admins.admins[0].IsActive = &inactive

	_, err = flow.Login(ctx, &dto.AdminLoginRequest{Username: "root", Password: "s3cret-password"}, nil)
	assert.True(t, IsAdminInactive(err))
}

func TestCompanyToken(t *testing.T) {
	f := newRegistryFixture(true)
	tokens := newTestTokenService(t)
	companies := newTestCompanyFlow(f)
	flow := NewCompanyAuthFlow(f.companies, f.audits, tokens, nil)
	ctx := context.Background()

	onboarded, err := companies.Onboard(ctx, &dto.OnboardCompanyRequest{CompanyName: "Acme"}, nil)
	require.NoError(t, err)

	resp, err := flow.IssueToken(ctx, &dto.CompanyTokenRequest{APIKey: onboarded.APIKey}, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Session.RefreshToken)
	assert.Equal(t, "acme", resp.Company.Slug)

	claims, err := tokens.ValidateCompanyToken(resp.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, onboarded.Company.ID, claims.CompanyID)
	assert.Equal(t, "acme", claims.CompanySlug)

	tests := []struct {
		name   string
		apiKey string
	}{
		{name: "garbage", apiKey: "not-a-key"},
		{name: "wrong secret", apiKey: onboarded.Company.UUID + "." + "0000000000000000000000000000000000000000000000000000000000000000"},
		{name: "unknown company", apiKey: "f47ac10b-58cc-4372-a567-0e02b2c3d479.0000000000000000000000000000000000000000000000000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.IssueToken(ctx, &dto.CompanyTokenRequest{APIKey: tt.apiKey}, nil)
			assert.True(t, IsInvalidAPIKey(err))
		})
	}

	_, err = companies.SetActive(ctx, onboarded.Company.ID, false, nil)
	require.NoError(t, err)
	_, err = flow.IssueToken(ctx, &dto.CompanyTokenRequest{APIKey: onboarded.APIKey}, nil)
	assert.True(t, IsCompanyInactive(err))

	assert.Contains(t, f.audits.actions(), models.AuditActionCompanyTokenIssued)
	assert.Contains(t, f.audits.actions(), models.AuditActionCompanyTokenDenied)
}
