package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/estate-registry/app/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnknownSlug = errors.New("unknown slug")

type stubResolver map[string]*services.TenantRef

func (s stubResolver) ResolveTenant(_ context.Context, slug string) (*services.TenantRef, error) {
	if ref, ok := s[slug]; ok {
		return ref, nil
	}
	return nil, errUnknownSlug
}

func newTestApp(t *testing.T) (*fiber.App, services.TokenService) {
	t.Helper()

	tokens, err := services.NewTokenService(time.Minute, time.Hour, time.Minute, "issuer", "audience", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	resolver := stubResolver{
		"acme":  {ID: 1, Slug: "acme", Prefix: "ACM", Active: true},
		"other": {ID: 2, Slug: "other", Prefix: "OTH", Active: true},
	}
	auth := NewAuthMiddleware(tokens, resolver, func(err error) bool { return errors.Is(err, errUnknownSlug) })

	app := fiber.New()
	app.Use(Metrics())
	app.Get("/admin/ping", auth.AdminAuthenticate(), func(c fiber.Ctx) error {
		id, _ := GetAdminIDFromContext(c)
		return c.JSON(fiber.Map{"admin_id": id})
	})
	app.Get("/companies/:slug/ping", auth.TenantAuthenticate(), func(c fiber.Ctx) error {
		id, _ := GetCompanyIDFromContext(c)
		tenant, _ := GetTenantFromContext(c)
		return c.JSON(fiber.Map{"company_id": id, "prefix": tenant.Prefix})
	})
	return app, tokens
}

func doRequest(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

func TestAdminAuthenticate(t *testing.T) {
	app, tokens := newTestApp(t)

	access, refresh, err := tokens.GenerateAdminTokens(9)
	require.NoError(t, err)
	companyToken, err := tokens.GenerateCompanyToken(1, "acme")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doRequest(t, app, "/admin/ping", access))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/admin/ping", ""))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/admin/ping", refresh))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/admin/ping", companyToken))

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Token "+access)
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTenantAuthenticate(t *testing.T) {
	app, tokens := newTestApp(t)

	acmeToken, err := tokens.GenerateCompanyToken(1, "acme")
	require.NoError(t, err)
	adminToken, _, err := tokens.GenerateAdminTokens(3)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "own company", path: "/companies/acme/ping", token: acmeToken, status: http.StatusOK},
		{name: "other company", path: "/companies/other/ping", token: acmeToken, status: http.StatusForbidden},
		{name: "admin on any company", path: "/companies/other/ping", token: adminToken, status: http.StatusOK},
		{name: "unknown company with company token", path: "/companies/ghost/ping", token: acmeToken, status: http.StatusForbidden},
		{name: "unknown company with admin token", path: "/companies/ghost/ping", token: adminToken, status: http.StatusNotFound},
		{name: "garbage token", path: "/companies/acme/ping", token: "x.y.z", status: http.StatusUnauthorized},
		{name: "missing token", path: "/companies/acme/ping", status: http.StatusUnauthorized},
		{name: "garbage token on unknown company", path: "/companies/ghost/ping", token: "x.y.z", status: http.StatusUnauthorized},
		{name: "missing token on unknown company", path: "/companies/ghost/ping", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, doRequest(t, app, tt.path, tt.token))
		})
	}

	require.NoError(t, tokens.RevokeToken(acmeToken))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/companies/acme/ping", acmeToken))
}

// countingResolver fails every lookup and records how many were made
type countingResolver struct{ calls int }

func (r *countingResolver) ResolveTenant(context.Context, string) (*services.TenantRef, error) {
	r.calls++
	return nil, errUnknownSlug
}

func TestTenantAuthenticate_SlugIsNotResolvedWithoutValidToken(t *testing.T) {
	tokens, err := services.NewTokenService(time.Minute, time.Hour, time.Minute, "issuer", "audience", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	resolver := &countingResolver{}
	auth := NewAuthMiddleware(tokens, resolver, func(err error) bool { return errors.Is(err, errUnknownSlug) })

	app := fiber.New()
	app.Get("/companies/:slug/ping", auth.TenantAuthenticate(), func(c fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	_, refresh, err := tokens.GenerateAdminTokens(3)
	require.NoError(t, err)

	for _, token := range []string{"", "x.y.z", refresh} {
		assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/companies/ghost/ping", token))
	}
	assert.Zero(t, resolver.calls)
}
