package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/estate-registry/app/middleware"
	"github.com/amirphl/estate-registry/app/services"
	"github.com/amirphl/estate-registry/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routeEcho answers every endpoint with the matched route template
type routeEcho struct{}

func (routeEcho) echo(c fiber.Ctx) error { return c.SendString(c.Route().Path) }

func (e routeEcho) Login(c fiber.Ctx) error          { return e.echo(c) }
func (e routeEcho) Refresh(c fiber.Ctx) error        { return e.echo(c) }
func (e routeEcho) Logout(c fiber.Ctx) error         { return e.echo(c) }
func (e routeEcho) IssueToken(c fiber.Ctx) error     { return e.echo(c) }
func (e routeEcho) Onboard(c fiber.Ctx) error        { return e.echo(c) }
func (e routeEcho) List(c fiber.Ctx) error           { return e.echo(c) }
func (e routeEcho) Get(c fiber.Ctx) error            { return e.echo(c) }
func (e routeEcho) OverridePrefix(c fiber.Ctx) error { return e.echo(c) }
func (e routeEcho) RotateAPIKey(c fiber.Ctx) error   { return e.echo(c) }
func (e routeEcho) Activate(c fiber.Ctx) error       { return e.echo(c) }
func (e routeEcho) Deactivate(c fiber.Ctx) error     { return e.echo(c) }
func (e routeEcho) Remove(c fiber.Ctx) error         { return e.echo(c) }
func (e routeEcho) Register(c fiber.Ctx) error       { return e.echo(c) }
func (e routeEcho) Backfill(c fiber.Ctx) error       { return e.echo(c) }
func (e routeEcho) RepairUIDs(c fiber.Ctx) error     { return e.echo(c) }
func (e routeEcho) Audit(c fiber.Ctx) error          { return e.echo(c) }
func (e routeEcho) ExportAudit(c fiber.Ctx) error    { return e.echo(c) }

var errNoSuchSlug = errors.New("no such slug")

type oneTenant struct{}

func (oneTenant) ResolveTenant(_ context.Context, slug string) (*services.TenantRef, error) {
	if slug == "lamba" {
		return &services.TenantRef{ID: 7, Slug: "lamba", Prefix: "LPL", Active: true}, nil
	}
	return nil, errNoSuchSlug
}

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
		Security: config.SecurityConfig{
			AllowedOrigins:  []string{"http://localhost:3000"},
			AllowedMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:  []string{"Content-Type", "Authorization"},
			AuthRateLimit:   100,
			GlobalRateLimit: 100,
			RateLimitWindow: time.Minute,
		},
		Metrics:    config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Deployment: config.DeploymentConfig{Environment: "development", Version: "test"},
	}
}

func newTestRouter(t *testing.T, checks map[string]HealthCheck) (*fiber.App, services.TokenService) {
	t.Helper()
	tokens, err := services.NewTokenService(time.Minute, time.Hour, time.Minute, "issuer", "audience", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	auth := middleware.NewAuthMiddleware(tokens, oneTenant{}, func(err error) bool { return errors.Is(err, errNoSuchSlug) })
	echo := routeEcho{}
	r := NewFiberRouter(testConfig(), Handlers{
		AdminAuth:   echo,
		CompanyAuth: echo,
		Company:     echo,
		Client:      echo,
		Marketer:    echo,
		Sequence:    echo,
	}, auth, checks, nil)
	r.SetupRoutes()
	return r.GetApp(), tokens
}

func call(t *testing.T, app *fiber.App, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRoutes(t *testing.T) {
	app, tokens := newTestRouter(t, nil)

	adminToken, _, err := tokens.GenerateAdminTokens(1)
	require.NoError(t, err)
	companyToken, err := tokens.GenerateCompanyToken(7, "lamba")
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		token  string
		status int
		route  string
	}{
		{method: http.MethodPost, path: "/api/v1/auth/admin/login", status: http.StatusOK, route: "/api/v1/auth/admin/login"},
		{method: http.MethodPost, path: "/api/v1/auth/company/token", status: http.StatusOK, route: "/api/v1/auth/company/token"},
		{method: http.MethodPost, path: "/api/v1/auth/admin/logout", status: http.StatusUnauthorized},
		{method: http.MethodGet, path: "/api/v1/admin/companies/3", token: adminToken, status: http.StatusOK, route: "/api/v1/admin/companies/:id"},
		{method: http.MethodPut, path: "/api/v1/admin/companies/3/prefix", token: adminToken, status: http.StatusOK, route: "/api/v1/admin/companies/:id/prefix"},
		{method: http.MethodGet, path: "/api/v1/admin/companies/3", token: companyToken, status: http.StatusUnauthorized},
		{method: http.MethodPost, path: "/api/v1/admin/sequences/backfill", token: adminToken, status: http.StatusOK, route: "/api/v1/admin/sequences/backfill"},
		{method: http.MethodGet, path: "/api/v1/admin/sequences/audit/export", token: adminToken, status: http.StatusOK, route: "/api/v1/admin/sequences/audit/export"},
		{method: http.MethodPost, path: "/api/v1/companies/lamba/clients", token: companyToken, status: http.StatusOK, route: "/api/v1/companies/:slug/clients"},
		{method: http.MethodGet, path: "/api/v1/companies/lamba/marketers/4", token: adminToken, status: http.StatusOK, route: "/api/v1/companies/:slug/marketers/:id"},
		{method: http.MethodGet, path: "/api/v1/companies/ghost/clients", token: adminToken, status: http.StatusNotFound},
		{method: http.MethodGet, path: "/api/v1/nowhere", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, body := call(t, app, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, status)
			if tt.route != "" {
				assert.Equal(t, tt.route, body)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestRouter(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})

	status, body := call(t, app, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"database":"ok"`)

	status, body = call(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "estate_registry_http_requests_total")

	status, body = call(t, app, http.MethodGet, "/api/v1/swagger.json", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "/companies/{slug}/clients")

	degraded, _ := newTestRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	status, body = call(t, degraded, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "connection refused")
}
